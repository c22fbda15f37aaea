package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"filedrop/pkg/oauth"
)

// ExchangeResult is the outcome of a successful callback: the issued
// tokens and the authenticated identity. The caller is responsible for
// persisting it into the session store.
type ExchangeResult struct {
	Token *oauth.Token
	User  *oauth.UserInfo
}

// Exchanger validates authorization callbacks and exchanges the code for
// tokens. Each validation step short-circuits to a typed failure, and the
// pending attempt is consumed on every path so it can never be replayed.
type Exchanger struct {
	httpClient  *http.Client
	endpoints   oauth.Endpoints
	clientID    string
	redirectURI string
	attempts    *AttemptStore
}

// NewExchanger creates an exchanger consuming attempts from the given store.
func NewExchanger(httpClient *http.Client, endpoints oauth.Endpoints, clientID, redirectURI string, attempts *AttemptStore) *Exchanger {
	return &Exchanger{
		httpClient:  httpClient,
		endpoints:   endpoints,
		clientID:    clientID,
		redirectURI: redirectURI,
		attempts:    attempts,
	}
}

// HandleCallback processes the query parameters of an authorization
// redirect. Steps, in order, each short-circuiting to failure:
//
//  1. extract code: ErrMissingCode if absent
//  2. consume the pending attempt: ErrMissingVerifier if absent
//  3. compare state: ErrStateMismatch on any difference (CSRF signal)
//  4. exchange the code at the token endpoint: ErrExchangeFailed on non-2xx
//  5. fetch the identity profile: ErrUserInfoFailed on non-2xx
//
// The pending attempt is gone after this call regardless of outcome.
func (e *Exchanger) HandleCallback(ctx context.Context, query url.Values) (*ExchangeResult, error) {
	code := query.Get("code")
	if code == "" {
		// No callback may leave an attempt behind for later replay.
		e.attempts.Clear()
		if errParam := query.Get("error"); errParam != "" {
			return nil, fmt.Errorf("%w: authorization server returned %q (%s)",
				ErrMissingCode, errParam, query.Get("error_description"))
		}
		return nil, ErrMissingCode
	}

	attempt := e.attempts.Take()
	if attempt == nil {
		return nil, ErrMissingVerifier
	}

	// Constant-time comparison: the state is a browser-local secret, so
	// timing safety is hardening rather than a hard requirement, but the
	// comparison must not short-circuit on content. Differing lengths
	// compare unequal.
	received := query.Get("state")
	if subtle.ConstantTimeCompare([]byte(received), []byte(attempt.State)) != 1 {
		slog.Warn("State mismatch on authorization callback, possible CSRF",
			"attempt_id", attempt.ID,
			"expected_len", len(attempt.State),
			"received_len", len(received),
		)
		return nil, ErrStateMismatch
	}

	token, err := e.exchangeCode(ctx, code, attempt.CodeVerifier)
	if err != nil {
		return nil, err
	}

	user, err := e.fetchUserInfo(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	slog.Debug("Authorization code exchange completed",
		"attempt_id", attempt.ID,
		"sub", user.Sub,
	)

	return &ExchangeResult{Token: token, User: user}, nil
}

// exchangeCode POSTs the authorization code and verifier to the token
// endpoint and computes the absolute expiry from expires_in.
func (e *Exchanger) exchangeCode(ctx context.Context, code, codeVerifier string) (*oauth.Token, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {e.redirectURI},
		"client_id":     {e.clientID},
		"code_verifier": {codeVerifier},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoints.Token, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: token endpoint returned %d: %s",
			ErrExchangeFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var token oauth.Token
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("%w: malformed token response: %v", ErrExchangeFailed, err)
	}
	token.SetExpiresAtFromExpiresIn()

	return &token, nil
}

// fetchUserInfo GETs the userinfo endpoint with the fresh access token.
func (e *Exchanger) fetchUserInfo(ctx context.Context, accessToken string) (*oauth.UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.endpoints.UserInfo, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserInfoFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserInfoFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: userinfo endpoint returned %d", ErrUserInfoFailed, resp.StatusCode)
	}

	var user oauth.UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("%w: malformed userinfo response: %v", ErrUserInfoFailed, err)
	}

	return &user, nil
}
