package access

import (
	"errors"
	"fmt"
	"time"

	"github.com/clubforge/clubforge/internal/overrides"
)

var (
	// ErrSelfLockout indicates a mutation that would strip the acting
	// administrator of a critical permission. Hard block; retrying the same
	// request can never succeed.
	ErrSelfLockout = errors.New("access: operation would lock you out of a critical permission")
	// ErrConfirmationRequired indicates the mutation touches a critical
	// permission and the caller has not confirmed the consequence.
	ErrConfirmationRequired = errors.New("access: operation requires explicit confirmation")
)

// IntegrityError reports a dangling reference between stores: a user points
// at a role that does not exist, or an override points at an unknown
// permission. It is surfaced loudly instead of being folded into "no
// permission" so data corruption cannot hide behind a denied request.
type IntegrityError struct {
	Entity string
	ID     int64
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("access: %s %d referenced but not found", e.Entity, e.ID)
}

// OverrideView is an override enriched with catalog metadata for display.
type OverrideView struct {
	ID             int64             `json:"id"`
	PermissionID   int64             `json:"permission_id"`
	PermissionName string            `json:"permission_name"`
	DisplayName    string            `json:"display_name"`
	Effect         overrides.Effect  `json:"effect"`
	AssignedBy     int64             `json:"assigned_by"`
	CreatedAt      time.Time         `json:"created_at"`
}

// EffectivePermissions is the resolved permission state for one user.
type EffectivePermissions struct {
	UserID              int64          `json:"user_id"`
	RolePermissions     []string       `json:"role_permissions"`
	IndividualOverrides []OverrideView `json:"individual_overrides"`
	Effective           []string       `json:"effective_permissions"`
}

// Has reports whether the named permission is effectively granted.
func (e EffectivePermissions) Has(name string) bool {
	for _, p := range e.Effective {
		if p == name {
			return true
		}
	}
	return false
}
