package overrides

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clubforge/clubforge/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence. The unique constraint
// on (user_id, permission_id) plus upsert semantics keeps concurrent admin
// edits last-write-wins without duplicate rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListForUser returns all overrides for a user.
func (r *Repository) ListForUser(ctx context.Context, userID int64) ([]PermissionOverride, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, permission_id, effect, assigned_by, created_at
		FROM permission_overrides
		WHERE user_id = $1
		ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []PermissionOverride
	for rows.Next() {
		var o PermissionOverride
		if err := rows.Scan(&o.ID, &o.UserID, &o.PermissionID, &o.Effect, &o.AssignedBy, &o.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Upsert writes a single override, replacing any prior row for the same
// (user, permission) pair.
func (r *Repository) Upsert(ctx context.Context, o PermissionOverride) (PermissionOverride, error) {
	err := r.pool.QueryRow(ctx, upsertSQL,
		o.UserID, o.PermissionID, o.Effect, o.AssignedBy,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return PermissionOverride{}, err
	}
	return o, nil
}

// UpsertBatch writes a set of overrides atomically so a partially applied
// management-dialog save can never be observed.
func (r *Repository) UpsertBatch(ctx context.Context, items []PermissionOverride) error {
	if len(items) == 0 {
		return nil
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, o := range items {
			if err := tx.QueryRow(ctx, upsertSQL,
				o.UserID, o.PermissionID, o.Effect, o.AssignedBy,
			).Scan(&o.ID, &o.CreatedAt); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes an override if present. Returns the number of rows removed;
// deleting an absent override is a no-op, not an error.
func (r *Repository) Delete(ctx context.Context, userID, permissionID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM permission_overrides
		WHERE user_id = $1 AND permission_id = $2`, userID, permissionID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const upsertSQL = `
	INSERT INTO permission_overrides (user_id, permission_id, effect, assigned_by, created_at)
	VALUES ($1, $2, $3, $4, NOW())
	ON CONFLICT (user_id, permission_id)
	DO UPDATE SET effect = EXCLUDED.effect, assigned_by = EXCLUDED.assigned_by, created_at = NOW()
	RETURNING id, created_at`
