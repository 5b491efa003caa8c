// Package calendarsvc holds OAuth tokens for calendar integrations, keyed by
// user id. Bookings are pushed to a host's external calendar when a token is
// on file.
package calendarsvc

import (
	"sync"
	"time"
)

type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

func (t Token) Expired() bool {
	return !t.ExpiresAt.IsZero() && time.Now().After(t.ExpiresAt)
}

// TokenStore keeps per-user calendar credentials. Each entry belongs to
// exactly one user; there is no process-wide shared token.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[int]Token
}

func NewTokenStore() *TokenStore {
	return &TokenStore{tokens: make(map[int]Token)}
}

func (s *TokenStore) Put(userID int, t Token) {
	s.mu.Lock()
	s.tokens[userID] = t
	s.mu.Unlock()
}

func (s *TokenStore) Get(userID int) (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[userID]
	if !ok || t.Expired() {
		return Token{}, false
	}
	return t, true
}

func (s *TokenStore) Delete(userID int) {
	s.mu.Lock()
	delete(s.tokens, userID)
	s.mu.Unlock()
}
