package auth

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filedrop/pkg/oauth"
)

func newTestInitiator(scopes string) (*Initiator, *AttemptStore, *[]string) {
	attempts := NewAttemptStore()
	opened := &[]string{}

	initiator := NewInitiator(
		oauth.EndpointsForIssuer("https://auth.example.com"),
		"test-client",
		"http://localhost:8913/callback",
		scopes,
		attempts,
	)
	initiator.openBrowser = func(u string) error {
		*opened = append(*opened, u)
		return nil
	}

	return initiator, attempts, opened
}

func TestInitiateAuthorizeURL(t *testing.T) {
	initiator, attempts, _ := newTestInitiator("")

	authURL, err := initiator.Initiate(ModeRedirect)
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "https", u.Scheme)
	assert.Equal(t, "auth.example.com", u.Host)
	assert.Equal(t, "/oauth/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "test-client", q.Get("client_id"))
	assert.Equal(t, "http://localhost:8913/callback", q.Get("redirect_uri"))
	assert.Equal(t, oauth.DefaultScopes, q.Get("scope"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.NotEmpty(t, q.Get("state"))

	attempt := attempts.Take()
	require.NotNil(t, attempt)
	assert.Equal(t, q.Get("state"), attempt.State)
	assert.Equal(t, oauth.ChallengeS256(attempt.CodeVerifier), q.Get("code_challenge"))
}

func TestInitiateReplacesStaleAttempt(t *testing.T) {
	initiator, attempts, _ := newTestInitiator("")

	_, err := initiator.Initiate(ModeRedirect)
	require.NoError(t, err)
	stale := attempts.Take()
	require.NotNil(t, stale)
	attempts.Put(stale)

	secondURL, err := initiator.Initiate(ModeRedirect)
	require.NoError(t, err)

	current := attempts.Take()
	require.NotNil(t, current)
	assert.NotEqual(t, stale.ID, current.ID)
	assert.NotEqual(t, stale.CodeVerifier, current.CodeVerifier)

	q, err := url.Parse(secondURL)
	require.NoError(t, err)
	assert.Equal(t, current.State, q.Query().Get("state"))
}

func TestInitiatePopupOpensBrowser(t *testing.T) {
	initiator, _, opened := newTestInitiator("")

	authURL, err := initiator.Initiate(ModePopup)
	require.NoError(t, err)

	require.Len(t, *opened, 1)
	assert.Equal(t, authURL, (*opened)[0])
}

func TestInitiateRedirectDoesNotOpenBrowser(t *testing.T) {
	initiator, _, opened := newTestInitiator("")

	_, err := initiator.Initiate(ModeRedirect)
	require.NoError(t, err)
	assert.Empty(t, *opened)
}

func TestInitiateBrowserFailureKeepsAttempt(t *testing.T) {
	initiator, attempts, _ := newTestInitiator("")
	initiator.openBrowser = func(string) error {
		return assert.AnError
	}

	authURL, err := initiator.Initiate(ModePopup)
	require.NoError(t, err, "browser failure falls back to manual navigation")
	assert.NotEmpty(t, authURL)
	assert.NotNil(t, attempts.Take(), "the attempt stays pending for a manual flow")
}

func TestInitiateCustomScopes(t *testing.T) {
	initiator, _, _ := newTestInitiator("openid offline_access")

	authURL, err := initiator.Initiate(ModeRedirect)
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "openid offline_access", u.Query().Get("scope"))
}
