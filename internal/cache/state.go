package cache

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// StateStore remembers the anti-forgery state of OAuth redirects until the
// provider calls back.
type StateStore struct {
	states Cache[string, string]
	ttl    time.Duration
}

func NewStateStore(ttl time.Duration) *StateStore {
	return &StateStore{states: NewSimpleCache[string, string](), ttl: ttl}
}

// Issue creates a fresh state bound to provider.
func (s *StateStore) Issue(provider string) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	state := hex.EncodeToString(b)
	s.states.PurgeExpired()
	s.states.Set(state, provider, s.ttl)
	return state, nil
}

// Consume reports whether state was issued for provider. A state is valid once.
func (s *StateStore) Consume(provider, state string) bool {
	if state == "" {
		return false
	}
	got, ok := s.states.Take(state)
	return ok && got == provider
}
