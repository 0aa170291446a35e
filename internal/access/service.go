package access

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/clubforge/clubforge/internal/catalog"
	"github.com/clubforge/clubforge/internal/overrides"
	"github.com/clubforge/clubforge/internal/roles"
	"github.com/clubforge/clubforge/internal/users"
)

// CatalogStore is the read surface of the permission catalog.
type CatalogStore interface {
	List(ctx context.Context) ([]catalog.Permission, error)
}

// UserStore is the user directory surface the access core needs.
type UserStore interface {
	Get(ctx context.Context, id int64) (users.User, error)
	AddRole(ctx context.Context, userID, roleID int64) error
	RemoveRole(ctx context.Context, userID, roleID int64) error
}

// RoleStore fetches role records for resolution.
type RoleStore interface {
	GetByIDs(ctx context.Context, ids []int64) ([]roles.Role, error)
}

// OverrideStore is the override persistence surface.
type OverrideStore interface {
	ListForUser(ctx context.Context, userID int64) ([]overrides.PermissionOverride, error)
	UpsertBatch(ctx context.Context, items []overrides.PermissionOverride) error
	Delete(ctx context.Context, userID, permissionID int64) (int64, error)
}

// Service orchestrates resolution and guarded mutations. All mutations pass
// through the lockout guard before touching the stores, and every committed
// write synchronously invalidates the user's cached permission set.
type Service struct {
	logger    *slog.Logger
	catalog   CatalogStore
	users     UserStore
	roles     RoleStore
	overrides OverrideStore
	guard     *Guard
	cache     *Cache
	group     singleflight.Group
}

// NewService constructs a Service.
func NewService(logger *slog.Logger, catalogStore CatalogStore, userStore UserStore, roleStore RoleStore, overrideStore OverrideStore, guard *Guard, cache *Cache) *Service {
	return &Service{
		logger:    logger,
		catalog:   catalogStore,
		users:     userStore,
		roles:     roleStore,
		overrides: overrideStore,
		guard:     guard,
		cache:     cache,
	}
}

// Guard exposes the configured lockout guard.
func (s *Service) Guard() *Guard {
	return s.guard
}

type snapshot struct {
	perms     []catalog.Permission
	user      users.User
	roles     []roles.Role
	overrides []overrides.PermissionOverride
}

func (s *Service) load(ctx context.Context, userID int64) (snapshot, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return snapshot{}, err
	}
	perms, err := s.catalog.List(ctx)
	if err != nil {
		return snapshot{}, err
	}
	userRoles, err := s.roles.GetByIDs(ctx, user.RoleIDs)
	if err != nil {
		return snapshot{}, err
	}
	userOverrides, err := s.overrides.ListForUser(ctx, userID)
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{perms: perms, user: user, roles: userRoles, overrides: userOverrides}, nil
}

func (snap snapshot) resolve() (EffectivePermissions, error) {
	return Resolve(snap.perms, snap.user, snap.roles, snap.overrides)
}

// EffectivePermissions resolves the full permission state for the
// management dialog. Always fresh, never served from cache.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) (EffectivePermissions, error) {
	snap, err := s.load(ctx, userID)
	if err != nil {
		return EffectivePermissions{}, err
	}
	return snap.resolve()
}

// EffectiveNames returns the effective permission names for authorization
// checks, served from cache when possible. Concurrent misses for the same
// user collapse into a single resolution.
func (s *Service) EffectiveNames(ctx context.Context, userID int64) ([]string, error) {
	if names, ok, err := s.cache.Get(ctx, userID); err == nil && ok {
		return names, nil
	} else if err != nil && s.logger != nil {
		s.logger.Warn("effective names cache read", slog.Any("error", err))
	}

	v, err, _ := s.group.Do(fmt.Sprintf("effective:%d", userID), func() (any, error) {
		resolved, err := s.EffectivePermissions(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, userID, resolved.Effective); err != nil && s.logger != nil {
			s.logger.Warn("effective names cache write", slog.Any("error", err))
		}
		return resolved.Effective, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// SetOverrides upserts one override per listed permission id. A permission
// id present in both lists resolves to deny, consistent with resolution
// precedence. The guard sees the state as it would be after the whole
// batch.
func (s *Service) SetOverrides(ctx context.Context, actingUserID, userID int64, grants, denies []int64, confirmed bool) (EffectivePermissions, error) {
	snap, err := s.load(ctx, userID)
	if err != nil {
		return EffectivePermissions{}, err
	}

	byPermID := make(map[int64]catalog.Permission, len(snap.perms))
	for _, p := range snap.perms {
		byPermID[p.ID] = p
	}
	for _, id := range append(append([]int64(nil), grants...), denies...) {
		if _, ok := byPermID[id]; !ok {
			return EffectivePermissions{}, &IntegrityError{Entity: "permission", ID: id}
		}
	}

	denySet := make(map[int64]struct{}, len(denies))
	for _, id := range denies {
		denySet[id] = struct{}{}
	}
	effectiveGrants := grants[:0:0]
	for _, id := range grants {
		if _, ok := denySet[id]; !ok {
			effectiveGrants = append(effectiveGrants, id)
		}
	}

	projectedOverrides := applyBatch(snap.overrides, userID, actingUserID, effectiveGrants, denies)
	projected, err := Resolve(snap.perms, snap.user, snap.roles, projectedOverrides)
	if err != nil {
		return EffectivePermissions{}, err
	}

	decision := Decision{Verdict: VerdictAllow}
	for _, id := range denies {
		decision = Worst(decision, s.guard.Evaluate(Intent{
			ActingUserID: actingUserID,
			TargetUserID: userID,
			Permission:   byPermID[id].Name,
			Op:           OpDenyOverride,
		}, projected))
	}
	if err := requireDecision(decision, confirmed); err != nil {
		return EffectivePermissions{}, err
	}

	items := make([]overrides.PermissionOverride, 0, len(effectiveGrants)+len(denies))
	for _, id := range effectiveGrants {
		items = append(items, overrides.PermissionOverride{
			UserID: userID, PermissionID: id, Effect: overrides.EffectGrant, AssignedBy: actingUserID,
		})
	}
	for _, id := range denies {
		items = append(items, overrides.PermissionOverride{
			UserID: userID, PermissionID: id, Effect: overrides.EffectDeny, AssignedBy: actingUserID,
		})
	}
	if err := s.overrides.UpsertBatch(ctx, items); err != nil {
		return EffectivePermissions{}, err
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		return EffectivePermissions{}, err
	}

	return s.EffectivePermissions(ctx, userID)
}

// RemoveOverride deletes an override if present; removing an absent
// override is a no-op. Removing a grant override is guarded since it can
// strip access; removing a deny only restores access.
func (s *Service) RemoveOverride(ctx context.Context, actingUserID, userID, permissionID int64, confirmed bool) (EffectivePermissions, error) {
	snap, err := s.load(ctx, userID)
	if err != nil {
		return EffectivePermissions{}, err
	}

	var existing *overrides.PermissionOverride
	for i := range snap.overrides {
		if snap.overrides[i].PermissionID == permissionID {
			existing = &snap.overrides[i]
			break
		}
	}
	if existing == nil {
		return snap.resolve()
	}

	perm, ok := permByID(snap.perms, permissionID)
	if !ok {
		return EffectivePermissions{}, &IntegrityError{Entity: "permission", ID: permissionID}
	}

	if existing.Effect == overrides.EffectGrant {
		remaining := make([]overrides.PermissionOverride, 0, len(snap.overrides)-1)
		for _, o := range snap.overrides {
			if o.PermissionID != permissionID {
				remaining = append(remaining, o)
			}
		}
		projected, err := Resolve(snap.perms, snap.user, snap.roles, remaining)
		if err != nil {
			return EffectivePermissions{}, err
		}
		decision := s.guard.Evaluate(Intent{
			ActingUserID: actingUserID,
			TargetUserID: userID,
			Permission:   perm.Name,
			Op:           OpRemoveGrantOverride,
		}, projected)
		if err := requireDecision(decision, confirmed); err != nil {
			return EffectivePermissions{}, err
		}
	}

	if _, err := s.overrides.Delete(ctx, userID, permissionID); err != nil {
		return EffectivePermissions{}, err
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		return EffectivePermissions{}, err
	}

	return s.EffectivePermissions(ctx, userID)
}

// AssignRole attaches a role to a user. Adding access needs no guard, but
// the cache still has to drop the stale set.
func (s *Service) AssignRole(ctx context.Context, actingUserID, userID, roleID int64) (EffectivePermissions, error) {
	found, err := s.roles.GetByIDs(ctx, []int64{roleID})
	if err != nil {
		return EffectivePermissions{}, err
	}
	if len(found) == 0 {
		return EffectivePermissions{}, &IntegrityError{Entity: "role", ID: roleID}
	}
	if err := s.users.AddRole(ctx, userID, roleID); err != nil {
		return EffectivePermissions{}, err
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		return EffectivePermissions{}, err
	}
	return s.EffectivePermissions(ctx, userID)
}

// RemoveRole detaches a role from a user, guarded against stripping
// critical permissions whose only source was that role.
func (s *Service) RemoveRole(ctx context.Context, actingUserID, userID, roleID int64, confirmed bool) (EffectivePermissions, error) {
	snap, err := s.load(ctx, userID)
	if err != nil {
		return EffectivePermissions{}, err
	}

	assigned := false
	for _, id := range snap.user.RoleIDs {
		if id == roleID {
			assigned = true
			break
		}
	}
	if !assigned {
		return snap.resolve()
	}

	current, err := snap.resolve()
	if err != nil {
		return EffectivePermissions{}, err
	}

	projectedUser := snap.user
	projectedUser.RoleIDs = nil
	for _, id := range snap.user.RoleIDs {
		if id != roleID {
			projectedUser.RoleIDs = append(projectedUser.RoleIDs, id)
		}
	}
	projectedRoles := make([]roles.Role, 0, len(snap.roles))
	for _, role := range snap.roles {
		if role.ID != roleID {
			projectedRoles = append(projectedRoles, role)
		}
	}
	projected, err := Resolve(snap.perms, projectedUser, projectedRoles, snap.overrides)
	if err != nil {
		return EffectivePermissions{}, err
	}

	decision := Decision{Verdict: VerdictAllow}
	for _, name := range current.Effective {
		if !projected.Has(name) {
			decision = Worst(decision, s.guard.Evaluate(Intent{
				ActingUserID: actingUserID,
				TargetUserID: userID,
				Permission:   name,
				Op:           OpRemoveRole,
			}, projected))
		}
	}
	if err := requireDecision(decision, confirmed); err != nil {
		return EffectivePermissions{}, err
	}

	if err := s.users.RemoveRole(ctx, userID, roleID); err != nil {
		return EffectivePermissions{}, err
	}
	if err := s.cache.Invalidate(ctx, userID); err != nil {
		return EffectivePermissions{}, err
	}

	return s.EffectivePermissions(ctx, userID)
}

func requireDecision(d Decision, confirmed bool) error {
	switch d.Verdict {
	case VerdictBlock:
		return fmt.Errorf("%w: %s", ErrSelfLockout, d.Reason)
	case VerdictWarn:
		if !confirmed {
			return fmt.Errorf("%w: %s", ErrConfirmationRequired, d.Reason)
		}
	}
	return nil
}

func permByID(perms []catalog.Permission, id int64) (catalog.Permission, bool) {
	for _, p := range perms {
		if p.ID == id {
			return p, true
		}
	}
	return catalog.Permission{}, false
}

// applyBatch overlays a grants/denies batch on an override list, mirroring
// the storage upsert so projections match what a commit would produce.
func applyBatch(current []overrides.PermissionOverride, userID, actingUserID int64, grants, denies []int64) []overrides.PermissionOverride {
	byPermID := make(map[int64]overrides.PermissionOverride, len(current))
	order := make([]int64, 0, len(current))
	for _, o := range current {
		if _, seen := byPermID[o.PermissionID]; !seen {
			order = append(order, o.PermissionID)
		}
		byPermID[o.PermissionID] = o
	}
	upsert := func(permID int64, effect overrides.Effect) {
		if _, seen := byPermID[permID]; !seen {
			order = append(order, permID)
		}
		byPermID[permID] = overrides.PermissionOverride{
			UserID: userID, PermissionID: permID, Effect: effect, AssignedBy: actingUserID,
		}
	}
	for _, id := range grants {
		upsert(id, overrides.EffectGrant)
	}
	for _, id := range denies {
		upsert(id, overrides.EffectDeny)
	}
	result := make([]overrides.PermissionOverride, 0, len(order))
	for _, permID := range order {
		result = append(result, byPermID[permID])
	}
	return result
}
