package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

const (
	cookieName = "srtreserve_session"
	sessionTTL = 14 * 24 * time.Hour
)

type ctxKey struct{}

// Session is the signed, encrypted cookie payload.
type Session struct {
	OperatorID int64
	Username   string
}

type Sessions struct {
	sc *securecookie.SecureCookie
}

func NewSessions(hashKey, blockKey []byte) *Sessions {
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(sessionTTL.Seconds()))
	return &Sessions{sc: sc}
}

func (s *Sessions) Set(w http.ResponseWriter, r *http.Request, op Operator) error {
	encoded, err := s.sc.Encode(cookieName, Session{OperatorID: op.ID, Username: op.Username})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   int(sessionTTL.Seconds()),
	})
	return nil
}

func (s *Sessions) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (s *Sessions) Get(r *http.Request) (Session, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return Session{}, false
	}
	var sess Session
	if err := s.sc.Decode(cookieName, c.Value, &sess); err != nil || sess.OperatorID <= 0 {
		return Session{}, false
	}
	return sess, true
}

// RequireAuth sends visitors without a session to /login.
func (s *Sessions) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.Get(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sess)))
	})
}

func FromContext(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(ctxKey{}).(Session)
	return sess, ok
}
