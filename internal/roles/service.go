package roles

import (
	"context"
	"errors"
	"strings"

	"github.com/clubforge/clubforge/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	List(ctx context.Context) ([]Role, error)
	GetByIDs(ctx context.Context, ids []int64) ([]Role, error)
	Create(ctx context.Context, role Role, permissionIDs []int64) (Role, error)
	Update(ctx context.Context, role Role, permissionIDs []int64) (Role, error)
	Delete(ctx context.Context, id int64) error
}

// Service handles role business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns all roles.
func (s *Service) List(ctx context.Context) ([]Role, error) {
	return s.repo.List(ctx)
}

// GetByIDs fetches roles by id.
func (s *Service) GetByIDs(ctx context.Context, ids []int64) ([]Role, error) {
	return s.repo.GetByIDs(ctx, ids)
}

// Get fetches a single role.
func (s *Service) Get(ctx context.Context, id int64) (Role, error) {
	found, err := s.repo.GetByIDs(ctx, []int64{id})
	if err != nil {
		return Role{}, err
	}
	if len(found) == 0 {
		return Role{}, shared.ErrNotFound
	}
	return found[0], nil
}

// Create inserts a new role with the given permission assignments.
func (s *Service) Create(ctx context.Context, name, displayName, description string, permissionIDs []int64) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("roles: role name required")
	}
	role := Role{
		Name:        name,
		DisplayName: strings.TrimSpace(displayName),
		Description: strings.TrimSpace(description),
	}
	return s.repo.Create(ctx, role, permissionIDs)
}

// Update changes a role. System roles keep their name; everything else about
// them stays editable so administrators can still adjust display metadata.
func (s *Service) Update(ctx context.Context, id int64, name, displayName, description string, permissionIDs []int64) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("roles: role name required")
	}
	current, err := s.Get(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if current.IsSystemRole && current.Name != name {
		return Role{}, shared.ErrSystemRole
	}
	role := Role{
		ID:           id,
		Name:         name,
		DisplayName:  strings.TrimSpace(displayName),
		Description:  strings.TrimSpace(description),
		IsSystemRole: current.IsSystemRole,
	}
	return s.repo.Update(ctx, role, permissionIDs)
}

// Delete removes a role unless it is system protected.
func (s *Service) Delete(ctx context.Context, id int64) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.IsSystemRole {
		return shared.ErrSystemRole
	}
	return s.repo.Delete(ctx, id)
}
