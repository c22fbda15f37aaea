package auth

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"filedrop/pkg/oauth"
)

// PendingAttempt is the ephemeral record of an in-flight authorization
// attempt: the PKCE code verifier and the CSRF state. It lives only in the
// memory of the process that started the attempt and is consumed exactly
// once on callback, whether the callback succeeds or fails.
type PendingAttempt struct {
	// ID correlates the attempt with log lines and messenger traffic.
	ID string

	// CodeVerifier is the PKCE secret sent to the token endpoint.
	CodeVerifier string

	// State is the CSRF token round-tripped through the authorization server.
	State string

	// CreatedAt is when the attempt was started.
	CreatedAt time.Time
}

// NewPendingAttempt creates an attempt from freshly generated PKCE material.
func NewPendingAttempt(pkce *oauth.PKCEChallenge, state string) *PendingAttempt {
	return &PendingAttempt{
		ID:           uuid.NewString(),
		CodeVerifier: pkce.CodeVerifier,
		State:        state,
		CreatedAt:    time.Now(),
	}
}

// AttemptStore holds at most one PendingAttempt for this process. It is the
// process-scoped analogue of per-tab storage: attempts are never shared
// across processes and do not survive a restart.
type AttemptStore struct {
	mu      sync.Mutex
	attempt *PendingAttempt
}

// NewAttemptStore creates an empty attempt store.
func NewAttemptStore() *AttemptStore {
	return &AttemptStore{}
}

// Put stores an attempt, replacing any prior one. A stale verifier/state
// from an abandoned attempt must never be reused.
func (s *AttemptStore) Put(a *PendingAttempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempt = a
}

// Take consumes the stored attempt. The second and any later call returns
// nil: an attempt can complete at most one callback.
func (s *AttemptStore) Take() *PendingAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.attempt
	s.attempt = nil
	return a
}

// Clear discards any stored attempt without consuming it.
func (s *AttemptStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempt = nil
}
