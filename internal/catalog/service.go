package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/clubforge/clubforge/internal/shared"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// RepositoryPort defines data access methods for the permission catalog.
type RepositoryPort interface {
	List(ctx context.Context) ([]Permission, error)
	GetByID(ctx context.Context, id int64) (Permission, error)
	GetByNames(ctx context.Context, names []string) ([]Permission, error)
	Ensure(ctx context.Context, p Permission) (Permission, error)
}

// Service handles catalog business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// List returns all permissions.
func (s *Service) List(ctx context.Context) ([]Permission, error) {
	return s.repo.List(ctx)
}

// Get fetches a single permission.
func (s *Service) Get(ctx context.Context, id int64) (Permission, error) {
	return s.repo.GetByID(ctx, id)
}

// MissingNames reports which of the given permission names have no catalog
// entry. Useful for validating operator supplied permission lists.
func (s *Service) MissingNames(ctx context.Context, names []string) ([]string, error) {
	found, err := s.repo.GetByNames(ctx, names)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(found))
	for _, p := range found {
		known[p.Name] = struct{}{}
	}
	var missing []string
	for _, name := range names {
		if _, ok := known[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing, nil
}

// EnsureBuiltins upserts the permissions shipped with the platform. Called
// at startup so deployments never run with an empty catalog.
func (s *Service) EnsureBuiltins(ctx context.Context) error {
	for _, name := range shared.CoreScopes() {
		p, err := FromName(name)
		if err != nil {
			return err
		}
		if _, err := s.repo.Ensure(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// FromName derives a Permission from its dotted name.
func FromName(name string) (Permission, error) {
	module, action, ok := strings.Cut(strings.TrimSpace(name), ".")
	if !ok || module == "" || action == "" {
		return Permission{}, errors.New("catalog: permission name must be module.action")
	}
	title := cases.Title(language.English)
	return Permission{
		Name:        module + "." + action,
		DisplayName: title.String(action) + " " + title.String(module),
		Module:      module,
		Action:      action,
	}, nil
}
