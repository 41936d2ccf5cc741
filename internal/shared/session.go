package shared

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// SessionManager issues the cookie that scopes per-browser state such as
// persisted ledger filters.
type SessionManager struct {
	cookieName string
	ttl        time.Duration
	secure     bool
}

// Session identifies one browser session.
type Session struct {
	ID    string
	isNew bool
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(cookieName string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{cookieName: cookieName, ttl: ttl, secure: secure}
}

// Load returns the session named by the request cookie or starts a new one.
func (sm *SessionManager) Load(r *http.Request) *Session {
	cookie, err := r.Cookie(sm.cookieName)
	if err == nil {
		if id, parseErr := uuid.Parse(cookie.Value); parseErr == nil {
			return &Session{ID: id.String()}
		}
	}
	return &Session{ID: uuid.NewString(), isNew: true}
}

// Commit writes the session cookie, refreshing its expiry.
func (sm *SessionManager) Commit(w http.ResponseWriter, sess *Session) {
	if sess == nil || sess.ID == "" {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(sm.ttl),
	})
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

// IsNew reports whether the session was created by this request.
func (s *Session) IsNew() bool {
	return s != nil && s.isNew
}
