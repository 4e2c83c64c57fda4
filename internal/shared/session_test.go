package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestSessionManager(t *testing.T) *SessionManager {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "mitra_session", "test-secret", time.Hour, false)
}

func commitCookie(t *testing.T, sm *SessionManager, sess *Session) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	require.NoError(t, sm.Commit(context.Background(), rec, req, sess))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[0]
}

func TestSessionRoundTrip(t *testing.T) {
	sm := newTestSessionManager(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetUser("42")
	sess.Set("locale", "id")

	cookie := commitCookie(t, sm, sess)
	require.Equal(t, "mitra_session", cookie.Name)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, http.SameSiteStrictMode, cookie.SameSite)

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookie)
	loaded, err := sm.Load(context.Background(), req2)
	require.NoError(t, err)
	require.Equal(t, "42", loaded.User())
	require.Equal(t, "id", loaded.Get("locale"))
}

func TestSessionDestroy(t *testing.T) {
	sm := newTestSessionManager(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetUser("42")
	cookie := commitCookie(t, sm, sess)

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookie)
	loaded, err := sm.Load(context.Background(), req2)
	require.NoError(t, err)
	sm.Destroy(loaded)

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rec, req2, loaded))
	expired := rec.Result().Cookies()
	require.NotEmpty(t, expired)
	require.Equal(t, -1, expired[0].MaxAge)

	req3 := httptest.NewRequest(http.MethodGet, "/", nil)
	req3.AddCookie(cookie)
	fresh, err := sm.Load(context.Background(), req3)
	require.NoError(t, err)
	require.Empty(t, fresh.User())
}

func TestSessionExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sm := NewSessionManager(client, "mitra_session", "test-secret", time.Minute, false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	sess.SetUser("42")
	cookie := commitCookie(t, sm, sess)

	mr.FastForward(2 * time.Minute)

	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.AddCookie(cookie)
	loaded, err := sm.Load(context.Background(), req2)
	require.NoError(t, err)
	require.Empty(t, loaded.User(), "expired sessions come back empty")
}
