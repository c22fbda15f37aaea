package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"filedrop/pkg/oauth"
)

// sessionFileName is the session file inside the storage directory.
const sessionFileName = "session.json"

// watchDebounceInterval is the time to wait after the last file change
// before notifying the watcher callback. Editors and atomic writes produce
// bursts of events for a single logical change.
const watchDebounceInterval = 500 * time.Millisecond

// Session is the persisted authentication record shared by every filedrop
// process of the same user. It exists if and only if the last successful
// exchange or refresh has not been superseded by a logout or a terminal
// refresh failure.
type Session struct {
	// AccessToken is the bearer token attached to API requests.
	AccessToken string `json:"access_token"`

	// RefreshToken is used to obtain new access tokens (optional).
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresAt is the absolute access-token expiry, computed once when the
	// tokens were received.
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	// User is the identity profile. It is immutable once set; only a fresh
	// login replaces it.
	User oauth.UserInfo `json:"user"`

	// UpdatedAt is when the record was last written.
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionStore persists the Session as a JSON file with owner-only
// permissions. Concurrent processes share the file; each process reads it
// at startup (and optionally watches it, see Watch).
//
// SECURITY: the file is created 0600 inside a 0700 directory, and token
// values are never logged.
type SessionStore struct {
	mu   sync.Mutex
	path string
}

// NewSessionStore creates a store rooted at dir, creating the directory
// if needed.
func NewSessionStore(dir string) (*SessionStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session storage directory: %w", err)
	}

	return &SessionStore{path: filepath.Join(dir, sessionFileName)}, nil
}

// Path returns the session file path.
func (s *SessionStore) Path() string {
	return s.path
}

// Load hydrates the session from disk. A missing file means no session
// (nil, nil). A file that cannot be parsed is discarded and deleted: a
// corrupt session must not wedge the unauthenticated flow.
func (s *SessionStore) Load() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		slog.Warn("Discarding unparseable session file",
			"path", s.path,
			"error", err.Error(),
		)
		_ = os.Remove(s.path)
		return nil, nil
	}

	return &session, nil
}

// Save persists the session, stamping UpdatedAt.
func (s *SessionStore) Save(session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	return nil
}

// Clear removes the persisted session. Clearing an absent session is not
// an error.
func (s *SessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// Watch invokes onChange whenever another process rewrites or removes the
// session file, until stop is called. Change push is opt-in: the baseline
// behavior of every component is to read the session at startup only, and
// processes started before a login elsewhere will not observe it without
// reloading.
//
// Events are debounced so an atomic write (create, write, rename) produces
// a single notification.
func (s *SessionStore) Watch(onChange func()) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create session watcher: %w", err)
	}

	// Watch the directory, not the file: the file may not exist yet, and
	// atomic replaces swap the inode out from under a file watch.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch session directory: %w", err)
	}

	done := make(chan struct{})
	go func() {
		var debounce *time.Timer
		defer func() {
			if debounce != nil {
				debounce.Stop()
			}
		}()

		for {
			select {
			case <-done:
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != sessionFileName {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(watchDebounceInterval, onChange)

			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("Session watcher error", "error", watchErr.Error())
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
