package auth

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filedrop/pkg/oauth"
)

func newTestStore(t *testing.T) *SessionStore {
	t.Helper()

	store, err := NewSessionStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestSessionStoreLoadMissing(t *testing.T) {
	store := newTestStore(t)

	session, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, session, "missing file means no session, not an error")
}

func TestSessionStoreSaveAndLoad(t *testing.T) {
	store := newTestStore(t)

	saved := &Session{
		AccessToken:  "access-token-value",
		RefreshToken: "refresh-token-value",
		ExpiresAt:    time.Now().Add(time.Hour).UTC().Truncate(time.Second),
		User: oauth.UserInfo{
			Sub:   "user-123",
			Name:  "Test User",
			Email: "test@example.com",
		},
	}
	require.NoError(t, store.Save(saved))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, saved.AccessToken, loaded.AccessToken)
	assert.Equal(t, saved.RefreshToken, loaded.RefreshToken)
	assert.True(t, saved.ExpiresAt.Equal(loaded.ExpiresAt))
	assert.Equal(t, saved.User, loaded.User)
	assert.False(t, loaded.UpdatedAt.IsZero(), "Save stamps UpdatedAt")
}

func TestSessionStoreFilePermissions(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(&Session{AccessToken: "tok"}))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSessionStoreCorruptFileDiscarded(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0600))

	session, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, session)

	_, statErr := os.Stat(store.Path())
	assert.True(t, os.IsNotExist(statErr), "corrupt file is removed")
}

func TestSessionStoreClear(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(&Session{AccessToken: "tok"}))

	require.NoError(t, store.Clear())

	session, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, session)

	assert.NoError(t, store.Clear(), "clearing an absent session is not an error")
}

func TestSessionStoreWatch(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSessionStore(dir)
	require.NoError(t, err)

	changed := make(chan struct{}, 1)
	stop, err := store.Watch(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	defer stop()

	require.NoError(t, store.Save(&Session{AccessToken: "tok"}))

	select {
	case <-changed:
	case <-time.After(3 * time.Second):
		t.Fatal("expected change notification after session write")
	}
}

func TestSessionStoreWatchIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewSessionStore(dir)
	require.NoError(t, err)

	changed := make(chan struct{}, 1)
	stop, err := store.Watch(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	defer stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.json"), []byte("{}"), 0600))

	select {
	case <-changed:
		t.Fatal("unrelated file must not trigger a notification")
	case <-time.After(time.Second):
	}
}
