package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
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

const userSelect = `
	SELECT u.id, u.email, u.name, u.is_active, u.created_at, u.updated_at,
		COALESCE(array_agg(r.id ORDER BY r.name) FILTER (WHERE r.id IS NOT NULL), '{}'),
		COALESCE(array_agg(r.name ORDER BY r.name) FILTER (WHERE r.id IS NOT NULL), '{}'),
		COALESCE(array_agg(r.display_name ORDER BY r.name) FILTER (WHERE r.id IS NOT NULL), '{}')
	FROM users u
	LEFT JOIN user_roles ur ON ur.user_id = u.id
	LEFT JOIN roles r ON r.id = ur.role_id`

// List returns all users with embedded role summaries.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, userSelect+` GROUP BY u.id ORDER BY u.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// Get fetches a single user with role summaries.
func (r *Repository) Get(ctx context.Context, id int64) (User, error) {
	rows, err := r.pool.Query(ctx, userSelect+` WHERE u.id = $1 GROUP BY u.id`, id)
	if err != nil {
		return User{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return User{}, err
		}
		return User{}, shared.ErrNotFound
	}
	return scanUser(rows)
}

// AddRole assigns a role to a user. Already-assigned roles are a no-op.
func (r *Repository) AddRole(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, userID, roleID)
	return err
}

// RemoveRole removes a role assignment. Removing an absent assignment is a no-op.
func (r *Repository) RemoveRole(ctx context.Context, userID, roleID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND role_id = $2`, userID, roleID)
	return err
}

func scanUser(rows pgx.Rows) (User, error) {
	var (
		user         User
		roleIDs      []int64
		names        []string
		displayNames []string
	)
	if err := rows.Scan(&user.ID, &user.Email, &user.Name, &user.IsActive,
		&user.CreatedAt, &user.UpdatedAt, &roleIDs, &names, &displayNames); err != nil {
		return User{}, err
	}
	if len(names) != len(roleIDs) || len(displayNames) != len(roleIDs) {
		return User{}, errors.New("users: role summary arrays out of sync")
	}
	user.RoleIDs = roleIDs
	user.Roles = make([]RoleSummary, len(roleIDs))
	for i := range roleIDs {
		user.Roles[i] = RoleSummary{ID: roleIDs[i], Name: names[i], DisplayName: displayNames[i]}
	}
	return user, nil
}
