package roles

import "time"

// Role represents a named permission grouping. System roles are seeded by
// the platform and cannot be deleted or renamed through the management API.
type Role struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	DisplayName     string    `json:"display_name"`
	Description     string    `json:"description"`
	IsSystemRole    bool      `json:"is_system_role"`
	PermissionNames []string  `json:"permission_names"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasPermission reports whether the role grants the named permission.
func (r Role) HasPermission(name string) bool {
	for _, p := range r.PermissionNames {
		if p == name {
			return true
		}
	}
	return false
}
