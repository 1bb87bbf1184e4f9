package sdk

import (
	"sync"
	"time"

	"github.com/curaious/ors/pkg/fleet"
	"github.com/golang-jwt/jwt/v5"
)

// SessionStore holds the authenticated identity for the lifetime of the
// process. Nothing is persisted.
type SessionStore struct {
	mu      sync.RWMutex
	session fleet.Session
	now     func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{now: time.Now}
}

// Current returns the session if one is set and its token has not expired.
func (s *SessionStore) Current() (fleet.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.session.Authenticated() || s.session.Expired(s.now()) {
		return fleet.Session{}, false
	}
	return s.session, true
}

// Token implements adapters.TokenSource.
func (s *SessionStore) Token() string {
	session, ok := s.Current()
	if !ok {
		return ""
	}
	return session.Token
}

// Set stores session, reading ExpiresAt from the token when it is a JWT.
func (s *SessionStore) Set(session fleet.Session) {
	session.ExpiresAt = tokenExpiry(session.Token)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
}

func (s *SessionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = fleet.Session{}
}

// tokenExpiry reads the exp claim without verifying the signature; the
// backend remains the authority on whether a token is valid.
func tokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
