package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"filedrop/pkg/oauth"
)

// ManagerConfig configures a Manager. IssuerURL and ClientID are required;
// everything else has a sensible default.
type ManagerConfig struct {
	// IssuerURL is the base URL of the authorization server.
	IssuerURL string

	// ClientID is the public OAuth client identifier. There is no client
	// secret anywhere; PKCE replaces it.
	ClientID string

	// CallbackPort is the loopback port for the callback server.
	// 0 selects DefaultCallbackPort.
	CallbackPort int

	// StorageDir is where the session file lives.
	StorageDir string

	// Scopes is the space-separated scope string. Empty selects
	// oauth.DefaultScopes.
	Scopes string

	// HTTPClient is used for token-endpoint and userinfo traffic.
	// Nil selects a client with a 30s timeout.
	HTTPClient *http.Client

	// OpenBrowser overrides how popup-mode login opens the authorization
	// URL. Nil selects OpenBrowser.
	OpenBrowser func(string) error

	// OnSessionExpired is invoked whenever the session is cleared by a
	// terminal refresh failure. May be nil.
	OnSessionExpired func()
}

// Manager composes the full authentication lifecycle: login (callback
// server, PKCE attempt, exchange, cross-flow messaging), persisted session
// state, scheduled refresh, and the authenticated HTTP client.
//
// One Manager per process. The session file underneath it is shared with
// other processes of the same user.
type Manager struct {
	endpoints    oauth.Endpoints
	clientID     string
	scopes       string
	callbackPort int
	httpClient   *http.Client
	openBrowser  func(string) error

	store       *SessionStore
	attempts    *AttemptStore
	coordinator *RefreshCoordinator
	apiClient   *http.Client
}

// NewManager creates a manager and hydrates nothing: the session is read
// lazily from disk on first use. Call Resume to re-arm the refresh
// schedule for an existing session.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.IssuerURL == "" {
		return nil, errors.New("issuer URL is required")
	}
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}

	store, err := NewSessionStore(cfg.StorageDir)
	if err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	openBrowser := cfg.OpenBrowser
	if openBrowser == nil {
		openBrowser = OpenBrowser
	}

	scopes := cfg.Scopes
	if scopes == "" {
		scopes = oauth.DefaultScopes
	}

	m := &Manager{
		endpoints:    oauth.EndpointsForIssuer(cfg.IssuerURL),
		clientID:     cfg.ClientID,
		scopes:       scopes,
		callbackPort: cfg.CallbackPort,
		httpClient:   httpClient,
		openBrowser:  openBrowser,
		store:        store,
		attempts:     NewAttemptStore(),
	}

	m.coordinator = NewRefreshCoordinator(store, httpClient, m.endpoints, cfg.ClientID, cfg.OnSessionExpired)
	m.apiClient = &http.Client{
		Transport: NewTransport(store, m.coordinator, nil),
		Timeout:   60 * time.Second,
	}

	return m, nil
}

// Login runs a complete authorization flow and returns the established
// session. promptURL, if non-nil, is called with the authorization URL so
// the caller can display it (popup mode shows it as a fallback in case the
// browser did not open; redirect mode requires it).
//
// In popup mode the browser is opened and the flow side subscribes to the
// messenger; the callback side delivers the outcome as a typed message and
// this side persists it. In redirect mode there is no subscriber, so the
// callback side persists the session directly and Login reloads it.
func (m *Manager) Login(ctx context.Context, mode Mode, promptURL func(string)) (*Session, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, CallbackTimeout)
		defer cancel()
	}

	server := NewCallbackServer(m.callbackPort)
	redirectURI, err := server.Start(ctx)
	if err != nil {
		return nil, err
	}
	defer server.Stop()

	messenger := NewMessenger(server.Origin())

	initiator := NewInitiator(m.endpoints, m.clientID, redirectURI, m.scopes, m.attempts)
	initiator.openBrowser = m.openBrowser
	exchanger := NewExchanger(m.httpClient, m.endpoints, m.clientID, redirectURI, m.attempts)

	var resultCh <-chan AuthMessage
	if mode == ModePopup {
		resultCh = messenger.Subscribe()
		defer messenger.Unsubscribe()
	}

	// renderCh feeds the browser page the real exchange outcome; doneCh
	// signals redirect-mode completion to this function.
	renderCh := make(chan error, 1)
	doneCh := make(chan error, 1)

	server.SetResultRenderer(func() error {
		select {
		case err := <-renderCh:
			return err
		case <-time.After(30 * time.Second):
			return errors.New("login did not complete in time")
		}
	})

	go m.completeCallback(ctx, server, exchanger, messenger, renderCh, doneCh)

	authURL, err := initiator.Initiate(mode)
	if err != nil {
		return nil, err
	}
	if promptURL != nil {
		promptURL(authURL)
	}

	if mode == ModePopup {
		select {
		case msg := <-resultCh:
			if msg.Type != MessageAuthSuccess {
				return nil, fmt.Errorf("login failed: %s", msg.Error)
			}
			return m.persistFromMessage(msg)
		case <-ctx.Done():
			m.attempts.Clear()
			return nil, ctx.Err()
		}
	}

	select {
	case err := <-doneCh:
		if err != nil {
			return nil, err
		}
		return m.store.Load()
	case <-ctx.Done():
		m.attempts.Clear()
		return nil, ctx.Err()
	}
}

// completeCallback is the callback side of the flow: it waits for the
// redirect, performs the exchange, and reports the outcome three ways (the
// browser page, the messenger if someone subscribed, and doneCh for
// redirect mode).
func (m *Manager) completeCallback(ctx context.Context, server *CallbackServer, exchanger *Exchanger, messenger *Messenger, renderCh, doneCh chan<- error) {
	query, err := server.WaitForCallback(ctx)
	if err != nil {
		doneCh <- err
		return
	}

	result, err := exchanger.HandleCallback(ctx, query)
	if err != nil {
		renderCh <- err
		messenger.Deliver(AuthMessage{
			Type:   MessageAuthError,
			Origin: server.Origin(),
			Error:  err.Error(),
		})
		doneCh <- err
		return
	}

	if messenger.HasReceiver() {
		delivered := messenger.Deliver(AuthMessage{
			Type:         MessageAuthSuccess,
			Origin:       server.Origin(),
			Token:        result.Token.AccessToken,
			RefreshToken: result.Token.RefreshToken,
			ExpiresIn:    result.Token.ExpiresIn,
			User:         result.User,
		})
		if delivered {
			renderCh <- nil
			doneCh <- nil
			return
		}
	}

	// No receiver: redirect mode. Persist here so the session exists when
	// Login reloads it.
	err = m.persistResult(result)
	renderCh <- err
	doneCh <- err
}

// persistFromMessage builds and saves the session from a delivered
// AUTH_SUCCESS message. The absolute expiry is computed here, once, at
// receipt.
func (m *Manager) persistFromMessage(msg AuthMessage) (*Session, error) {
	session := &Session{
		AccessToken:  msg.Token,
		RefreshToken: msg.RefreshToken,
	}
	if msg.ExpiresIn > 0 {
		session.ExpiresAt = time.Now().Add(time.Duration(msg.ExpiresIn) * time.Second)
	}
	if msg.User != nil {
		session.User = *msg.User
	}

	if err := m.store.Save(session); err != nil {
		return nil, err
	}

	m.coordinator.ScheduleRefresh()

	slog.Info("Logged in", "sub", session.User.Sub)

	return session, nil
}

// persistResult saves the session from a direct exchange result.
func (m *Manager) persistResult(result *ExchangeResult) error {
	session := &Session{
		AccessToken:  result.Token.AccessToken,
		RefreshToken: result.Token.RefreshToken,
		ExpiresAt:    result.Token.ExpiresAt,
	}
	if result.User != nil {
		session.User = *result.User
	}

	if err := m.store.Save(session); err != nil {
		return err
	}

	m.coordinator.ScheduleRefresh()

	slog.Info("Logged in", "sub", session.User.Sub)

	return nil
}

// Logout revokes the tokens best-effort, cancels the refresh schedule, and
// clears the session. Revocation failures are logged and swallowed: the
// local session is cleared regardless, and logout never fails on network
// conditions.
func (m *Manager) Logout(ctx context.Context) error {
	session, err := m.store.Load()
	if err != nil {
		return err
	}

	if session != nil && m.endpoints.Revoke != "" {
		m.revokeToken(ctx, session.AccessToken, "access_token")
		if session.RefreshToken != "" {
			m.revokeToken(ctx, session.RefreshToken, "refresh_token")
		}
	}

	m.coordinator.Stop()
	m.attempts.Clear()

	if err := m.store.Clear(); err != nil {
		return err
	}

	slog.Info("Logged out")
	return nil
}

func (m *Manager) revokeToken(ctx context.Context, token, hint string) {
	form := url.Values{
		"token":           {token},
		"token_type_hint": {hint},
		"client_id":       {m.clientID},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoints.Revoke, strings.NewReader(form.Encode()))
	if err != nil {
		slog.Warn("Failed to build revocation request", "hint", hint, "error", err.Error())
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		slog.Warn("Token revocation failed", "hint", hint, "error", err.Error())
		return
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("Token revocation rejected", "hint", hint, "status", resp.StatusCode)
	}
}

// CurrentSession returns the persisted session, or nil when logged out.
func (m *Manager) CurrentSession() (*Session, error) {
	return m.store.Load()
}

// Resume re-validates the refresh schedule against the stored expiry.
// Call it after process start or wake-up.
func (m *Manager) Resume(ctx context.Context) error {
	return m.coordinator.Resume(ctx)
}

// HTTPClient returns the authenticated client. Requests fail with
// ErrSessionExpired when no usable session exists.
func (m *Manager) HTTPClient() *http.Client {
	return m.apiClient
}

// TokenSource exposes the session as an oauth2.TokenSource for clients
// built on golang.org/x/oauth2.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return TokenSource(ctx, m.store, m.coordinator)
}

// Store exposes the session store, primarily for cross-process watching.
func (m *Manager) Store() *SessionStore {
	return m.store
}

// Close cancels background work. It does not touch the persisted session.
func (m *Manager) Close() {
	m.coordinator.Stop()
}
