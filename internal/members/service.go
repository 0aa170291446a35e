package members

import (
	"context"
	"errors"
	"strings"
	"time"
)

// RepositoryPort defines data access methods for members.
type RepositoryPort interface {
	List(ctx context.Context, f ListFilters) ([]Member, int, error)
	Get(ctx context.Context, id int64) (Member, error)
	Create(ctx context.Context, m Member) (Member, error)
}

// Service handles member business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns members matching the filters.
func (s *Service) List(ctx context.Context, f ListFilters) ([]Member, int, error) {
	return s.repo.List(ctx, f)
}

// Get fetches a single member.
func (s *Service) Get(ctx context.Context, id int64) (Member, error) {
	return s.repo.Get(ctx, id)
}

// Register creates a new member record.
func (s *Service) Register(ctx context.Context, m Member) (Member, error) {
	m.FirstName = strings.TrimSpace(m.FirstName)
	m.LastName = strings.TrimSpace(m.LastName)
	m.Email = strings.TrimSpace(strings.ToLower(m.Email))
	if m.FirstName == "" || m.LastName == "" {
		return Member{}, errors.New("members: first and last name required")
	}
	if m.Kind != KindAthlete && m.Kind != KindAssociate {
		return Member{}, errors.New("members: kind must be athlete or associate")
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = time.Now().UTC()
	}
	m.IsActive = true
	return s.repo.Create(ctx, m)
}
