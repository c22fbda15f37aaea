package auth

import (
	"log/slog"
	"sync"

	"filedrop/pkg/oauth"
)

// Message types exchanged between the callback handler and the waiting
// login flow.
const (
	MessageAuthSuccess = "AUTH_SUCCESS"
	MessageAuthError   = "AUTH_ERROR"
)

// AuthMessage carries the outcome of an authorization attempt from the
// callback side back to the flow that opened it.
type AuthMessage struct {
	// Type is MessageAuthSuccess or MessageAuthError.
	Type string `json:"type"`

	// Origin identifies the sender; the receiving side discards messages
	// from any origin other than its own.
	Origin string `json:"origin"`

	// AttemptID correlates the message with the originating attempt.
	AttemptID string `json:"attempt_id,omitempty"`

	// Token fields, present on AUTH_SUCCESS.
	Token        string          `json:"token,omitempty"`
	RefreshToken string          `json:"refresh_token,omitempty"`
	ExpiresIn    int             `json:"expires_in,omitempty"`
	User         *oauth.UserInfo `json:"user,omitempty"`

	// Error is the failure description, present on AUTH_ERROR.
	Error string `json:"error,omitempty"`
}

// Messenger is the in-process channel between the callback handler (the
// popup side) and the login flow that is waiting for a result (the opener
// side). A receiver subscribes before the flow starts; the callback
// handler delivers exactly one message. Messages whose Origin does not
// match the messenger's own origin are discarded silently.
//
// When no receiver is subscribed the flow is running in redirect mode and
// the callback side persists the session itself instead of delivering.
type Messenger struct {
	mu       sync.Mutex
	origin   string
	receiver chan AuthMessage
}

// NewMessenger creates a messenger scoped to the given origin.
func NewMessenger(origin string) *Messenger {
	return &Messenger{origin: origin}
}

// Subscribe registers the receiving side and returns its message channel.
// Only one receiver exists at a time; subscribing replaces the prior one.
func (m *Messenger) Subscribe() <-chan AuthMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.receiver = make(chan AuthMessage, 1)
	return m.receiver
}

// Unsubscribe removes the receiving side.
func (m *Messenger) Unsubscribe() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receiver = nil
}

// HasReceiver reports whether a receiver is subscribed. The callback side
// uses this to choose between delivery and the direct-persist fallback.
func (m *Messenger) HasReceiver() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.receiver != nil
}

// Deliver hands a message to the subscribed receiver. The origin check
// happens here, at the receiving boundary: a message declaring any origin
// other than the messenger's own is dropped without notice. Returns true
// if the message reached the receiver.
func (m *Messenger) Deliver(msg AuthMessage) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if msg.Origin != m.origin {
		slog.Debug("Discarding auth message from foreign origin",
			"expected", m.origin,
			"received", msg.Origin,
		)
		return false
	}

	if m.receiver == nil {
		return false
	}

	select {
	case m.receiver <- msg:
		return true
	default:
		return false
	}
}
