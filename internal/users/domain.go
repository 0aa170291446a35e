package users

import "time"

// RoleSummary is the role projection embedded in user listings.
type RoleSummary struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

// User represents a user account for management.
type User struct {
	ID        int64         `json:"id"`
	Email     string        `json:"email"`
	Name      string        `json:"name"`
	IsActive  bool          `json:"is_active"`
	RoleIDs   []int64       `json:"role_ids"`
	Roles     []RoleSummary `json:"roles"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
