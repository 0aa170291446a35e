package members

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubforge/clubforge/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListFilters narrows member listings.
type ListFilters struct {
	Search   string
	Kind     Kind
	IsActive *bool
	Limit    int
	Offset   int
}

// List returns members matching the filters plus the unpaginated total.
func (r *Repository) List(ctx context.Context, f ListFilters) ([]Member, int, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, first_name, last_name, email, kind, joined_at, is_active, created_at, updated_at,
			COUNT(*) OVER ()
		FROM members
		WHERE ($1 = '' OR first_name ILIKE '%' || $1 || '%' OR last_name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%')
			AND ($2 = '' OR kind = $2)
			AND ($3::boolean IS NULL OR is_active = $3)
		ORDER BY last_name, first_name
		LIMIT $4 OFFSET $5`,
		f.Search, string(f.Kind), f.IsActive, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		result []Member
		total  int
	)
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.FirstName, &m.LastName, &m.Email, &m.Kind,
			&m.JoinedAt, &m.IsActive, &m.CreatedAt, &m.UpdatedAt, &total); err != nil {
			return nil, 0, err
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// Get fetches a member by ID.
func (r *Repository) Get(ctx context.Context, id int64) (Member, error) {
	var m Member
	err := r.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, kind, joined_at, is_active, created_at, updated_at
		FROM members WHERE id = $1`, id,
	).Scan(&m.ID, &m.FirstName, &m.LastName, &m.Email, &m.Kind, &m.JoinedAt, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Member{}, shared.ErrNotFound
		}
		return Member{}, err
	}
	return m, nil
}

// Create inserts a new member.
func (r *Repository) Create(ctx context.Context, m Member) (Member, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO members (first_name, last_name, email, kind, joined_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		m.FirstName, m.LastName, m.Email, m.Kind, m.JoinedAt, m.IsActive,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Member{}, shared.ErrDuplicate
		}
		return Member{}, err
	}
	return m, nil
}
