package auth

import (
	"fmt"
	"log/slog"
	"net/url"

	"filedrop/pkg/oauth"
)

// Mode selects how the authorization URL is presented to the user.
type Mode string

const (
	// ModePopup opens the system browser and waits for the callback, the
	// CLI equivalent of a popup window with an opener.
	ModePopup Mode = "popup"

	// ModeRedirect hands the URL back for the caller to present; the user
	// navigates manually. There is no opener, so the callback path persists
	// the session itself.
	ModeRedirect Mode = "redirect"
)

// Initiator starts authorization attempts. It owns the fixed authorization
// parameters (client ID, redirect URI, scopes) for one login flow.
type Initiator struct {
	endpoints   oauth.Endpoints
	clientID    string
	redirectURI string
	scopes      string
	attempts    *AttemptStore

	// openBrowser is swapped out in tests.
	openBrowser func(string) error
}

// NewInitiator creates an initiator writing attempts into the given store.
func NewInitiator(endpoints oauth.Endpoints, clientID, redirectURI, scopes string, attempts *AttemptStore) *Initiator {
	if scopes == "" {
		scopes = oauth.DefaultScopes
	}

	return &Initiator{
		endpoints:   endpoints,
		clientID:    clientID,
		redirectURI: redirectURI,
		scopes:      scopes,
		attempts:    attempts,
		openBrowser: OpenBrowser,
	}
}

// Initiate begins a new authorization attempt. Any previously stored
// attempt is cleared first: a stale verifier/state from an abandoned flow
// must never complete a later callback (switching accounts mid-flow would
// otherwise fail token exchange silently).
//
// It generates fresh PKCE material, stores the pending attempt, and builds
// the authorize URL. In popup mode the system browser is opened; in
// redirect mode presentation is left to the caller. Completion always
// arrives asynchronously through the callback.
func (i *Initiator) Initiate(mode Mode) (string, error) {
	i.attempts.Clear()

	pkce, err := oauth.GeneratePKCE()
	if err != nil {
		return "", fmt.Errorf("failed to generate PKCE material: %w", err)
	}

	state, err := oauth.GenerateState()
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	attempt := NewPendingAttempt(pkce, state)
	i.attempts.Put(attempt)

	authURL, err := i.buildAuthorizeURL(state, pkce)
	if err != nil {
		i.attempts.Clear()
		return "", err
	}

	slog.Debug("Authorization attempt started",
		"attempt_id", attempt.ID,
		"mode", string(mode),
	)

	if mode == ModePopup {
		if err := i.openBrowser(authURL); err != nil {
			// The attempt stays pending: the user can still open the URL
			// by hand and the callback will complete it.
			slog.Warn("Failed to open browser, falling back to manual navigation",
				"error", err.Error(),
			)
		}
	}

	return authURL, nil
}

// buildAuthorizeURL constructs the authorization request URL with the
// fixed parameter set.
func (i *Initiator) buildAuthorizeURL(state string, pkce *oauth.PKCEChallenge) (string, error) {
	u, err := url.Parse(i.endpoints.Authorize)
	if err != nil {
		return "", fmt.Errorf("invalid authorize endpoint: %w", err)
	}

	params := url.Values{
		"response_type":         {"code"},
		"client_id":             {i.clientID},
		"redirect_uri":          {i.redirectURI},
		"scope":                 {i.scopes},
		"state":                 {state},
		"code_challenge":        {pkce.CodeChallenge},
		"code_challenge_method": {pkce.CodeChallengeMethod},
	}

	u.RawQuery = params.Encode()
	return u.String(), nil
}
