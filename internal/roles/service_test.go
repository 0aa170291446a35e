package roles

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubforge/clubforge/internal/shared"
)

type mockRepository struct {
	roles   map[int64]Role
	nextID  int64
	deleted []int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{roles: make(map[int64]Role), nextID: 1}
}

func (m *mockRepository) List(ctx context.Context) ([]Role, error) {
	out := make([]Role, 0, len(m.roles))
	for _, r := range m.roles {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockRepository) GetByIDs(ctx context.Context, ids []int64) ([]Role, error) {
	out := make([]Role, 0, len(ids))
	for _, id := range ids {
		if r, ok := m.roles[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRepository) Create(ctx context.Context, role Role, permissionIDs []int64) (Role, error) {
	for _, existing := range m.roles {
		if existing.Name == role.Name {
			return Role{}, shared.ErrDuplicate
		}
	}
	role.ID = m.nextID
	m.nextID++
	m.roles[role.ID] = role
	return role, nil
}

func (m *mockRepository) Update(ctx context.Context, role Role, permissionIDs []int64) (Role, error) {
	if _, ok := m.roles[role.ID]; !ok {
		return Role{}, shared.ErrNotFound
	}
	m.roles[role.ID] = role
	return role, nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	delete(m.roles, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func seededRepo() *mockRepository {
	repo := newMockRepository()
	repo.roles[1] = Role{ID: 1, Name: "admin", DisplayName: "Administrator", IsSystemRole: true}
	repo.roles[2] = Role{ID: 2, Name: "trainer", DisplayName: "Trainer"}
	repo.nextID = 3
	return repo
}

func TestCreateRequiresName(t *testing.T) {
	svc := NewService(seededRepo())

	_, err := svc.Create(context.Background(), "  ", "Display", "", nil)
	require.Error(t, err)
}

func TestCreateDuplicateName(t *testing.T) {
	svc := NewService(seededRepo())

	_, err := svc.Create(context.Background(), "trainer", "Trainer Again", "", nil)
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestGetNotFound(t *testing.T) {
	svc := NewService(seededRepo())

	_, err := svc.Get(context.Background(), 99)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateSystemRoleRenameBlocked(t *testing.T) {
	svc := NewService(seededRepo())

	_, err := svc.Update(context.Background(), 1, "superadmin", "Administrator", "", nil)
	require.ErrorIs(t, err, shared.ErrSystemRole)
}

func TestUpdateSystemRoleMetadataAllowed(t *testing.T) {
	svc := NewService(seededRepo())

	updated, err := svc.Update(context.Background(), 1, "admin", "Club Administrator", "full access", nil)
	require.NoError(t, err)

	assert.Equal(t, "Club Administrator", updated.DisplayName)
	assert.True(t, updated.IsSystemRole)
}

func TestUpdateRegularRoleRename(t *testing.T) {
	svc := NewService(seededRepo())

	updated, err := svc.Update(context.Background(), 2, "coach", "Coach", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "coach", updated.Name)
}

func TestDeleteSystemRoleBlocked(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo)

	err := svc.Delete(context.Background(), 1)
	require.ErrorIs(t, err, shared.ErrSystemRole)
	assert.Empty(t, repo.deleted)
}

func TestDeleteRegularRole(t *testing.T) {
	repo := seededRepo()
	svc := NewService(repo)

	require.NoError(t, svc.Delete(context.Background(), 2))
	assert.Equal(t, []int64{2}, repo.deleted)
}

func TestRoleHasPermission(t *testing.T) {
	role := Role{PermissionNames: []string{"members.view", "members.edit"}}

	assert.True(t, role.HasPermission("members.view"))
	assert.False(t, role.HasPermission("finance.view"))
}
