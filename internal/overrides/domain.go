package overrides

import "time"

// Effect is the direction of an individual permission override.
type Effect string

const (
	// EffectGrant adds a permission the user's roles do not provide.
	EffectGrant Effect = "grant"
	// EffectDeny removes a permission regardless of role membership.
	EffectDeny Effect = "deny"
)

// Valid reports whether the effect is one of the known values.
func (e Effect) Valid() bool {
	return e == EffectGrant || e == EffectDeny
}

// PermissionOverride is a per-user exception to role-derived permissions.
// At most one override exists per (UserID, PermissionID) pair; writing a new
// one replaces the previous row.
type PermissionOverride struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	PermissionID int64     `json:"permission_id"`
	Effect       Effect    `json:"effect"`
	AssignedBy   int64     `json:"assigned_by"`
	CreatedAt    time.Time `json:"created_at"`
}
