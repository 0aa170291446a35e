package authz_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubforge/clubforge/internal/authz"
	"github.com/clubforge/clubforge/internal/shared"
	_ "github.com/clubforge/clubforge/testing"
)

type stubSource struct {
	names map[int64][]string
	err   error
}

func (s *stubSource) EffectiveNames(ctx context.Context, userID int64) ([]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.names[userID], nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestWithUser(t *testing.T, userID string) *http.Request {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sessions.Load(context.Background(), req)
	require.NoError(t, err)
	if userID != "" {
		sess.SetUser(userID)
	}
	return req.WithContext(shared.ContextWithSession(req.Context(), sess))
}

func TestRequireAnyGranted(t *testing.T) {
	m := authz.Middleware{Source: &stubSource{names: map[int64][]string{7: {"members.view"}}}}
	rec := httptest.NewRecorder()

	m.RequireAny("members.view", "users.manage")(okHandler()).ServeHTTP(rec, requestWithUser(t, "7"))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAnyDenied(t *testing.T) {
	m := authz.Middleware{Source: &stubSource{names: map[int64][]string{7: {"members.view"}}}}
	rec := httptest.NewRecorder()

	m.RequireAny("users.manage")(okHandler()).ServeHTTP(rec, requestWithUser(t, "7"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAllNeedsEveryPermission(t *testing.T) {
	m := authz.Middleware{Source: &stubSource{names: map[int64][]string{7: {"roles.view", "roles.edit"}}}}

	rec := httptest.NewRecorder()
	m.RequireAll("roles.view", "roles.edit")(okHandler()).ServeHTTP(rec, requestWithUser(t, "7"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	m.RequireAll("roles.view", "users.manage")(okHandler()).ServeHTTP(rec, requestWithUser(t, "7"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAnyNoSession(t *testing.T) {
	m := authz.Middleware{Source: &stubSource{}}
	rec := httptest.NewRecorder()

	m.RequireAny("members.view")(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAnyAnonymousSession(t *testing.T) {
	m := authz.Middleware{Source: &stubSource{}}
	rec := httptest.NewRecorder()

	m.RequireAny("members.view")(okHandler()).ServeHTTP(rec, requestWithUser(t, ""))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAnySourceFailure(t *testing.T) {
	m := authz.Middleware{Source: &stubSource{err: errors.New("store down")}}
	rec := httptest.NewRecorder()

	m.RequireAny("members.view")(okHandler()).ServeHTTP(rec, requestWithUser(t, "7"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequireAnyCaseInsensitive(t *testing.T) {
	m := authz.Middleware{Source: &stubSource{names: map[int64][]string{7: {"Members.View"}}}}
	rec := httptest.NewRecorder()

	m.RequireAny("MEMBERS.VIEW")(okHandler()).ServeHTTP(rec, requestWithUser(t, "7"))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEmptyRequirementPassesThrough(t *testing.T) {
	m := authz.Middleware{Source: &stubSource{}}
	rec := httptest.NewRecorder()

	m.RequireAny()(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
