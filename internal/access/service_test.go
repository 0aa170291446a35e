package access

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubforge/clubforge/internal/catalog"
	"github.com/clubforge/clubforge/internal/overrides"
	"github.com/clubforge/clubforge/internal/roles"
	"github.com/clubforge/clubforge/internal/shared"
	"github.com/clubforge/clubforge/internal/users"
)

// ============================================================================
// IN-MEMORY STORES
// ============================================================================

type fakeStores struct {
	perms     []catalog.Permission
	users     map[int64]users.User
	roles     map[int64]roles.Role
	overrides map[int64][]overrides.PermissionOverride
	nextID    int64
}

func newFakeStores() *fakeStores {
	return &fakeStores{
		perms:     testCatalog(),
		users:     make(map[int64]users.User),
		roles:     make(map[int64]roles.Role),
		overrides: make(map[int64][]overrides.PermissionOverride),
		nextID:    1000,
	}
}

func (f *fakeStores) List(ctx context.Context) ([]catalog.Permission, error) {
	return f.perms, nil
}

func (f *fakeStores) Get(ctx context.Context, id int64) (users.User, error) {
	u, ok := f.users[id]
	if !ok {
		return users.User{}, shared.ErrNotFound
	}
	return u, nil
}

func (f *fakeStores) AddRole(ctx context.Context, userID, roleID int64) error {
	u := f.users[userID]
	for _, id := range u.RoleIDs {
		if id == roleID {
			return nil
		}
	}
	u.RoleIDs = append(u.RoleIDs, roleID)
	f.users[userID] = u
	return nil
}

func (f *fakeStores) RemoveRole(ctx context.Context, userID, roleID int64) error {
	u := f.users[userID]
	kept := u.RoleIDs[:0:0]
	for _, id := range u.RoleIDs {
		if id != roleID {
			kept = append(kept, id)
		}
	}
	u.RoleIDs = kept
	f.users[userID] = u
	return nil
}

func (f *fakeStores) GetByIDs(ctx context.Context, ids []int64) ([]roles.Role, error) {
	found := make([]roles.Role, 0, len(ids))
	for _, id := range ids {
		if r, ok := f.roles[id]; ok {
			found = append(found, r)
		}
	}
	return found, nil
}

func (f *fakeStores) ListForUser(ctx context.Context, userID int64) ([]overrides.PermissionOverride, error) {
	return f.overrides[userID], nil
}

func (f *fakeStores) UpsertBatch(ctx context.Context, items []overrides.PermissionOverride) error {
	for _, item := range items {
		replaced := false
		list := f.overrides[item.UserID]
		for i, existing := range list {
			if existing.PermissionID == item.PermissionID {
				item.ID = existing.ID
				item.CreatedAt = time.Now()
				list[i] = item
				replaced = true
				break
			}
		}
		if !replaced {
			f.nextID++
			item.ID = f.nextID
			item.CreatedAt = time.Now()
			f.overrides[item.UserID] = append(list, item)
		}
	}
	return nil
}

func (f *fakeStores) Delete(ctx context.Context, userID, permissionID int64) (int64, error) {
	list := f.overrides[userID]
	kept := list[:0:0]
	var removed int64
	for _, o := range list {
		if o.PermissionID == permissionID {
			removed++
			continue
		}
		kept = append(kept, o)
	}
	f.overrides[userID] = kept
	return removed, nil
}

func newTestService(t *testing.T, stores *fakeStores) (*Service, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	guard := NewGuard([]string{"users.manage", "admin.access"})
	return NewService(nil, stores, stores, stores, stores, guard, NewCache(client, time.Minute)), client
}

func seededStores() *fakeStores {
	f := newFakeStores()
	f.roles[10] = adminRole()
	f.roles[20] = viewerRole()
	f.users[1] = users.User{ID: 1, Email: "admin@clubforge.local", RoleIDs: []int64{10}}
	f.users[2] = users.User{ID: 2, Email: "viewer@clubforge.local", RoleIDs: []int64{20}}
	return f
}

// ============================================================================
// TESTS
// ============================================================================

func TestEffectiveNamesCachesResult(t *testing.T) {
	stores := seededStores()
	svc, client := newTestService(t, stores)
	ctx := context.Background()

	names, err := svc.EffectiveNames(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"members.view"}, names)

	cached, err := client.Get(ctx, "access:effective:2").Result()
	require.NoError(t, err)
	assert.JSONEq(t, `["members.view"]`, cached)
}

func TestSetOverridesGrant(t *testing.T) {
	stores := seededStores()
	svc, _ := newTestService(t, stores)
	ctx := context.Background()

	result, err := svc.SetOverrides(ctx, 1, 2, []int64{4}, nil, false)
	require.NoError(t, err)

	assert.True(t, result.Has("members.edit"))
	require.Len(t, stores.overrides[2], 1)
	assert.Equal(t, overrides.EffectGrant, stores.overrides[2][0].Effect)
	assert.Equal(t, int64(1), stores.overrides[2][0].AssignedBy)
}

func TestSetOverridesIsIdempotent(t *testing.T) {
	stores := seededStores()
	svc, _ := newTestService(t, stores)
	ctx := context.Background()

	first, err := svc.SetOverrides(ctx, 1, 2, []int64{4}, nil, false)
	require.NoError(t, err)
	second, err := svc.SetOverrides(ctx, 1, 2, []int64{4}, nil, false)
	require.NoError(t, err)

	assert.Equal(t, first.Effective, second.Effective)
	assert.Len(t, stores.overrides[2], 1)
}

func TestSetOverridesDenyWinsWhenListedTwice(t *testing.T) {
	stores := seededStores()
	svc, _ := newTestService(t, stores)
	ctx := context.Background()

	result, err := svc.SetOverrides(ctx, 1, 2, []int64{3}, []int64{3}, true)
	require.NoError(t, err)

	assert.False(t, result.Has("members.view"))
	require.Len(t, stores.overrides[2], 1)
	assert.Equal(t, overrides.EffectDeny, stores.overrides[2][0].Effect)
}

func TestSetOverridesUnknownPermission(t *testing.T) {
	stores := seededStores()
	svc, _ := newTestService(t, stores)

	_, err := svc.SetOverrides(context.Background(), 1, 2, []int64{999}, nil, false)

	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, int64(999), integrity.ID)
}

func TestSetOverridesSelfDenyCriticalBlocked(t *testing.T) {
	stores := seededStores()
	svc, _ := newTestService(t, stores)
	ctx := context.Background()

	// users.manage has id 2 in the test catalog
	_, err := svc.SetOverrides(ctx, 1, 1, nil, []int64{2}, true)

	require.ErrorIs(t, err, ErrSelfLockout)
	// the hard block must leave no trace in storage
	assert.Empty(t, stores.overrides[1])
}

func TestSetOverridesDenyCriticalOnOtherNeedsConfirmation(t *testing.T) {
	stores := seededStores()
	stores.users[3] = users.User{ID: 3, RoleIDs: []int64{10}}
	svc, _ := newTestService(t, stores)
	ctx := context.Background()

	_, err := svc.SetOverrides(ctx, 1, 3, nil, []int64{2}, false)
	require.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Empty(t, stores.overrides[3])

	result, err := svc.SetOverrides(ctx, 1, 3, nil, []int64{2}, true)
	require.NoError(t, err)
	assert.False(t, result.Has("users.manage"))
}

func TestMutationInvalidatesCacheSynchronously(t *testing.T) {
	stores := seededStores()
	svc, client := newTestService(t, stores)
	ctx := context.Background()

	_, err := svc.EffectiveNames(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, client.Get(ctx, "access:effective:2").Err())

	_, err = svc.SetOverrides(ctx, 1, 2, nil, []int64{3}, true)
	require.NoError(t, err)

	assert.ErrorIs(t, client.Get(ctx, "access:effective:2").Err(), redis.Nil)

	names, err := svc.EffectiveNames(ctx, 2)
	require.NoError(t, err)
	assert.NotContains(t, names, "members.view")
}

func TestRemoveOverrideAbsentIsNoOp(t *testing.T) {
	stores := seededStores()
	svc, _ := newTestService(t, stores)

	result, err := svc.RemoveOverride(context.Background(), 1, 2, 4, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"members.view"}, result.Effective)
	assert.Empty(t, stores.overrides[2])
}

func TestRemoveDenyOverrideRestoresAccessUnguarded(t *testing.T) {
	stores := seededStores()
	svc, _ := newTestService(t, stores)
	ctx := context.Background()

	_, err := svc.SetOverrides(ctx, 1, 2, nil, []int64{3}, true)
	require.NoError(t, err)

	// restoring access never needs confirmation
	result, err := svc.RemoveOverride(ctx, 1, 2, 3, false)
	require.NoError(t, err)
	assert.True(t, result.Has("members.view"))
}

func TestRemoveGrantOverrideOnCriticalSelfWarns(t *testing.T) {
	stores := seededStores()
	// user 4 holds users.manage purely through a grant override
	stores.users[4] = users.User{ID: 4}
	stores.overrides[4] = []overrides.PermissionOverride{
		{ID: 500, UserID: 4, PermissionID: 2, Effect: overrides.EffectGrant, AssignedBy: 1},
	}
	svc, _ := newTestService(t, stores)
	ctx := context.Background()

	_, err := svc.RemoveOverride(ctx, 4, 4, 2, false)
	require.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Len(t, stores.overrides[4], 1)

	// confirmed self-removal goes through: warn, never block
	result, err := svc.RemoveOverride(ctx, 4, 4, 2, true)
	require.NoError(t, err)
	assert.False(t, result.Has("users.manage"))
	assert.Empty(t, stores.overrides[4])
}

func TestAssignRoleUnknownRole(t *testing.T) {
	stores := seededStores()
	svc, _ := newTestService(t, stores)

	_, err := svc.AssignRole(context.Background(), 1, 2, 999)

	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, "role", integrity.Entity)
}

func TestAssignRoleExpandsAccess(t *testing.T) {
	stores := seededStores()
	svc, _ := newTestService(t, stores)

	result, err := svc.AssignRole(context.Background(), 1, 2, 10)
	require.NoError(t, err)

	assert.True(t, result.Has("admin.access"))
	assert.ElementsMatch(t, []int64{20, 10}, stores.users[2].RoleIDs)
}

func TestRemoveRoleAbsentIsNoOp(t *testing.T) {
	stores := seededStores()
	svc, _ := newTestService(t, stores)

	result, err := svc.RemoveRole(context.Background(), 1, 2, 10, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"members.view"}, result.Effective)
}

func TestRemoveRoleStrippingCriticalNeedsConfirmation(t *testing.T) {
	stores := seededStores()
	stores.users[3] = users.User{ID: 3, RoleIDs: []int64{10}}
	svc, _ := newTestService(t, stores)
	ctx := context.Background()

	_, err := svc.RemoveRole(ctx, 1, 3, 10, false)
	require.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Equal(t, []int64{10}, stores.users[3].RoleIDs)

	result, err := svc.RemoveRole(ctx, 1, 3, 10, true)
	require.NoError(t, err)
	assert.Empty(t, result.Effective)
}

func TestRemoveRoleKeptPermissionsNoConfirmation(t *testing.T) {
	stores := seededStores()
	trainer := roles.Role{ID: 30, Name: "trainer", PermissionNames: []string{"members.view"}}
	stores.roles[30] = trainer
	stores.users[5] = users.User{ID: 5, RoleIDs: []int64{20, 30}}
	svc, _ := newTestService(t, stores)

	// members.view survives through the viewer role, nothing critical lost
	result, err := svc.RemoveRole(context.Background(), 1, 5, 30, false)
	require.NoError(t, err)
	assert.True(t, result.Has("members.view"))
}
