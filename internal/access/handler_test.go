package access

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubforge/clubforge/internal/authz"
	"github.com/clubforge/clubforge/internal/overrides"
	"github.com/clubforge/clubforge/internal/platform/httpx"
	"github.com/clubforge/clubforge/internal/shared"
	"github.com/clubforge/clubforge/internal/users"
	_ "github.com/clubforge/clubforge/testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func usersFixture(id int64, roleIDs ...int64) users.User {
	return users.User{ID: id, RoleIDs: roleIDs}
}

func overrideFixture(id, userID, permissionID int64) overrides.PermissionOverride {
	return overrides.PermissionOverride{
		ID: id, UserID: userID, PermissionID: permissionID,
		Effect: overrides.EffectGrant, AssignedBy: 1,
	}
}

func newTestRouter(t *testing.T, stores *fakeStores) (chi.Router, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	guard := NewGuard([]string{"users.manage", "admin.access"})
	svc := NewService(nil, stores, stores, stores, stores, guard, NewCache(client, time.Minute))
	sessions := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	handler := NewHandler(discardLogger(), svc, authz.Middleware{Source: svc})

	r := chi.NewRouter()
	r.Route("/users", handler.MountRoutes)
	return r, sessions
}

func authedRequest(t *testing.T, sessions *shared.SessionManager, method, target, body, userID string) *http.Request {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetUser(userID)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestHandlerEffectivePermissions(t *testing.T) {
	router, sessions := newTestRouter(t, seededStores())

	req := authedRequest(t, sessions, http.MethodGet, "/users/2/permissions", "", "1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resolved EffectivePermissions
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resolved))
	assert.Equal(t, int64(2), resolved.UserID)
	assert.Equal(t, []string{"members.view"}, resolved.Effective)
}

func TestHandlerRequiresUsersManage(t *testing.T) {
	router, sessions := newTestRouter(t, seededStores())

	// user 2 only holds members.view
	req := authedRequest(t, sessions, http.MethodGet, "/users/1/permissions", "", "2")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerRejectsAnonymous(t *testing.T) {
	router, _ := newTestRouter(t, seededStores())

	req := httptest.NewRequest(http.MethodGet, "/users/1/permissions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerSetOverrides(t *testing.T) {
	stores := seededStores()
	router, sessions := newTestRouter(t, stores)

	req := authedRequest(t, sessions, http.MethodPost, "/users/2/permissions",
		`{"grants":[4],"denies":[]}`, "1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resolved EffectivePermissions
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resolved))
	assert.True(t, resolved.Has("members.edit"))
}

func TestHandlerSelfLockoutConflict(t *testing.T) {
	router, sessions := newTestRouter(t, seededStores())

	// admin denying users.manage (id 2) to themselves
	req := authedRequest(t, sessions, http.MethodPost, "/users/1/permissions",
		`{"grants":[],"denies":[2],"confirmed":true}`, "1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "urn:clubforge:self-lockout", problem.Type)
}

func TestHandlerConfirmationRequiredConflict(t *testing.T) {
	stores := seededStores()
	stores.users[3] = usersFixture(3, 10)
	router, sessions := newTestRouter(t, stores)

	req := authedRequest(t, sessions, http.MethodPost, "/users/3/permissions",
		`{"grants":[],"denies":[2]}`, "1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	var problem httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "urn:clubforge:confirmation-required", problem.Type)
}

func TestHandlerRemoveOverrideConfirmedQuery(t *testing.T) {
	stores := seededStores()
	stores.users[4] = usersFixture(4)
	stores.overrides[4] = append(stores.overrides[4], overrideFixture(500, 4, 2))
	router, sessions := newTestRouter(t, stores)

	req := authedRequest(t, sessions, http.MethodDelete, "/users/4/permissions/2?confirmed=true", "", "1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, stores.overrides[4])
}

func TestHandlerIntegrityErrorIsServerError(t *testing.T) {
	stores := seededStores()
	stores.overrides[2] = append(stores.overrides[2], overrideFixture(600, 2, 999))
	router, sessions := newTestRouter(t, stores)

	req := authedRequest(t, sessions, http.MethodGet, "/users/2/permissions", "", "1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Data Integrity Error")
}

func TestHandlerUnknownUser(t *testing.T) {
	router, sessions := newTestRouter(t, seededStores())

	req := authedRequest(t, sessions, http.MethodGet, "/users/999/permissions", "", "1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerAssignRole(t *testing.T) {
	stores := seededStores()
	router, sessions := newTestRouter(t, stores)

	req := authedRequest(t, sessions, http.MethodPost, "/users/2/roles", `{"role_id":10}`, "1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, stores.users[2].RoleIDs, int64(10))
}

func TestHandlerRemoveRoleNeedsConfirmation(t *testing.T) {
	stores := seededStores()
	stores.users[3] = usersFixture(3, 10)
	router, sessions := newTestRouter(t, stores)

	req := authedRequest(t, sessions, http.MethodDelete, "/users/3/roles/10", "", "1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)

	req = authedRequest(t, sessions, http.MethodDelete, "/users/3/roles/10?confirmed=true", "", "1")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, stores.users[3].RoleIDs)
}
