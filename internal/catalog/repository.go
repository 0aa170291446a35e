package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubforge/clubforge/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the permission catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns all permissions ordered by name.
func (r *Repository) List(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, display_name, module, action FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.DisplayName, &p.Module, &p.Action); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

// GetByNames fetches the permissions matching the given names. Names with no
// matching row are silently absent from the result.
func (r *Repository) GetByNames(ctx context.Context, names []string) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, display_name, module, action FROM permissions WHERE name = ANY($1) ORDER BY name`, names)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.DisplayName, &p.Module, &p.Action); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

// GetByID fetches a permission by ID.
func (r *Repository) GetByID(ctx context.Context, id int64) (Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx, `SELECT id, name, display_name, module, action FROM permissions WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.DisplayName, &p.Module, &p.Action)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, shared.ErrNotFound
		}
		return Permission{}, err
	}
	return p, nil
}

// Ensure upserts a permission by name, keeping display metadata current.
func (r *Repository) Ensure(ctx context.Context, p Permission) (Permission, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO permissions (name, display_name, module, action)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET display_name = EXCLUDED.display_name
		RETURNING id, name, display_name, module, action`,
		p.Name, p.DisplayName, p.Module, p.Action,
	).Scan(&p.ID, &p.Name, &p.DisplayName, &p.Module, &p.Action)
	if err != nil {
		return Permission{}, err
	}
	return p, nil
}
