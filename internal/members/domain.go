package members

import "time"

// Kind distinguishes competing athletes from supporting associates.
type Kind string

const (
	KindAthlete   Kind = "athlete"
	KindAssociate Kind = "associate"
)

// Member represents a club member record.
type Member struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Kind      Kind      `json:"kind"`
	JoinedAt  time.Time `json:"joined_at"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
