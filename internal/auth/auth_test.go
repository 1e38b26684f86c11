package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/securecookie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessions() *Sessions {
	return NewSessions(securecookie.GenerateRandomKey(32), securecookie.GenerateRandomKey(32))
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong horse"))
}

func TestSessions_RoundTrip(t *testing.T) {
	s := newSessions()
	rec := httptest.NewRecorder()
	require.NoError(t, s.Set(rec, httptest.NewRequest("POST", "/login", nil), Operator{ID: 7, Username: "ops"}))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(cookies[0])
	sess, ok := s.Get(req)
	require.True(t, ok)
	assert.Equal(t, Session{OperatorID: 7, Username: "ops"}, sess)

	other := newSessions()
	_, ok = other.Get(req)
	assert.False(t, ok, "cookie from another key pair must not decode")
}

func TestSessions_Clear(t *testing.T) {
	rec := httptest.NewRecorder()
	newSessions().Clear(rec)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestRequireAuth(t *testing.T) {
	s := newSessions()
	h := s.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := FromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(sess.Username))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	login := httptest.NewRecorder()
	require.NoError(t, s.Set(login, httptest.NewRequest("POST", "/login", nil), Operator{ID: 1, Username: "ops"}))
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(login.Result().Cookies()[0])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops", rec.Body.String())
}
