package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessengerDeliverToReceiver(t *testing.T) {
	m := NewMessenger("http://localhost:8913")
	ch := m.Subscribe()

	ok := m.Deliver(AuthMessage{
		Type:   MessageAuthSuccess,
		Origin: "http://localhost:8913",
		Token:  "access-token",
	})
	require.True(t, ok)

	msg := <-ch
	assert.Equal(t, MessageAuthSuccess, msg.Type)
	assert.Equal(t, "access-token", msg.Token)
}

func TestMessengerDropsForeignOrigin(t *testing.T) {
	m := NewMessenger("http://localhost:8913")
	ch := m.Subscribe()

	ok := m.Deliver(AuthMessage{
		Type:   MessageAuthSuccess,
		Origin: "http://evil.example.com",
		Token:  "stolen",
	})
	assert.False(t, ok, "foreign origin must be dropped")

	select {
	case msg := <-ch:
		t.Fatalf("unexpected message delivered: %+v", msg)
	default:
	}
}

func TestMessengerNoReceiver(t *testing.T) {
	m := NewMessenger("http://localhost:8913")

	assert.False(t, m.HasReceiver())
	assert.False(t, m.Deliver(AuthMessage{Type: MessageAuthError, Origin: "http://localhost:8913"}))
}

func TestMessengerUnsubscribe(t *testing.T) {
	m := NewMessenger("http://localhost:8913")
	m.Subscribe()
	require.True(t, m.HasReceiver())

	m.Unsubscribe()
	assert.False(t, m.HasReceiver())
	assert.False(t, m.Deliver(AuthMessage{Type: MessageAuthSuccess, Origin: "http://localhost:8913"}))
}

func TestMessengerSubscribeReplacesReceiver(t *testing.T) {
	m := NewMessenger("http://localhost:8913")
	old := m.Subscribe()
	current := m.Subscribe()

	require.True(t, m.Deliver(AuthMessage{Type: MessageAuthSuccess, Origin: "http://localhost:8913"}))

	select {
	case <-old:
		t.Fatal("replaced receiver must not get messages")
	default:
	}

	msg := <-current
	assert.Equal(t, MessageAuthSuccess, msg.Type)
}
