package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"filedrop/pkg/oauth"
)

// RefreshBuffer is how long before access-token expiry a refresh is
// performed. A request arriving inside the buffer is treated as expired.
const RefreshBuffer = 5 * time.Minute

// RefreshCoordinator owns proactive and on-demand token refresh for one
// process. It is constructed at the composition root and passed to
// whatever needs it; there is no package-level instance.
//
// Invariants:
//   - at most one refresh network call is outstanding at any time;
//     concurrent callers share the outcome of that call (single-flight)
//   - at most one scheduled timer is pending; rescheduling cancels the
//     prior timer
//   - refresh failure is terminal: the session is cleared, the expiry
//     notification fires, and nothing is retried
type RefreshCoordinator struct {
	store      *SessionStore
	httpClient *http.Client
	endpoints  oauth.Endpoints
	clientID   string

	// group collapses concurrent refresh demand into one network call;
	// the in-flight call itself is the single source of truth, not a flag.
	group singleflight.Group

	mu    sync.Mutex
	timer *time.Timer

	// onExpired is invoked after a terminal refresh failure has cleared
	// the session.
	onExpired func()

	// now is swapped out in tests.
	now func() time.Time
}

// NewRefreshCoordinator creates a coordinator persisting into store.
// onExpired may be nil.
func NewRefreshCoordinator(store *SessionStore, httpClient *http.Client, endpoints oauth.Endpoints, clientID string, onExpired func()) *RefreshCoordinator {
	return &RefreshCoordinator{
		store:      store,
		httpClient: httpClient,
		endpoints:  endpoints,
		clientID:   clientID,
		onExpired:  onExpired,
		now:        time.Now,
	}
}

// refreshDelay computes how long to wait before refreshing a token that
// expires at expiresAt. A non-positive result means refresh now.
func refreshDelay(expiresAt, now time.Time) time.Duration {
	return expiresAt.Sub(now) - RefreshBuffer
}

// ScheduleRefresh arms a single timer to refresh the current session's
// token RefreshBuffer before it expires. If the remaining time is already
// inside the buffer the refresh runs immediately instead. Rescheduling is
// idempotent: any previously armed timer is cancelled first.
func (c *RefreshCoordinator) ScheduleRefresh() {
	c.cancelTimer()

	session, err := c.store.Load()
	if err != nil || session == nil || session.ExpiresAt.IsZero() {
		return
	}

	delay := refreshDelay(session.ExpiresAt, c.now())
	if delay <= 0 {
		go func() {
			_, _ = c.Refresh(context.Background())
		}()
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.timer = time.AfterFunc(delay, func() {
		_, _ = c.Refresh(context.Background())
	})

	slog.Debug("Token refresh scheduled", "delay", delay.String())
}

// Refresh obtains a new access token using the stored refresh token.
// It is single-flight: while a refresh is outstanding, every caller waits
// on that same call and receives its outcome, so several parallel requests
// hitting a 401 trigger exactly one token-endpoint call. This also avoids
// consuming a rotating refresh token twice.
//
// On success the session's token and expiry fields are updated in place
// (identity is immutable) and the schedule is re-armed. On failure the
// session is cleared and the session-expired notification fires; the
// failure is terminal and never retried.
func (c *RefreshCoordinator) Refresh(ctx context.Context) (bool, error) {
	_, err, _ := c.group.Do("refresh", func() (interface{}, error) {
		return nil, c.doRefresh(ctx)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *RefreshCoordinator) doRefresh(ctx context.Context) error {
	session, err := c.store.Load()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	if session == nil || session.RefreshToken == "" {
		c.terminalFailure()
		return fmt.Errorf("%w: no refresh token available", ErrRefreshFailed)
	}

	token, err := c.requestRefresh(ctx, session.RefreshToken)
	if err != nil {
		c.terminalFailure()
		return err
	}

	// Reload before persisting: a logout that raced this refresh must win.
	// Writing the fresh tokens over a cleared session would resurrect
	// credentials the user just discarded.
	current, err := c.store.Load()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	if current == nil {
		slog.Debug("Discarding refresh result, session was cleared mid-flight")
		return fmt.Errorf("%w: session cleared during refresh", ErrRefreshFailed)
	}

	current.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		current.RefreshToken = token.RefreshToken
	}
	current.ExpiresAt = token.ExpiresAt

	if err := c.store.Save(current); err != nil {
		return fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	slog.Debug("Access token refreshed",
		"expires_at", token.ExpiresAt.Format(time.RFC3339),
		"rotated_refresh_token", token.RefreshToken != "",
	)

	c.ScheduleRefresh()
	return nil
}

// requestRefresh POSTs the refresh grant to the token endpoint.
func (c *RefreshCoordinator) requestRefresh(ctx context.Context, refreshToken string) (*oauth.Token, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {c.clientID},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.Token, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: token endpoint returned %d: %s",
			ErrRefreshFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var token oauth.Token
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("%w: malformed token response: %v", ErrRefreshFailed, err)
	}
	token.SetExpiresAtFromExpiresIn()

	return &token, nil
}

// Resume re-validates the schedule after the process was suspended (the
// timer is not trusted across suspension). If the stored expiry is already
// inside the refresh buffer the refresh runs immediately; otherwise the
// schedule is re-armed.
func (c *RefreshCoordinator) Resume(ctx context.Context) error {
	session, err := c.store.Load()
	if err != nil {
		return err
	}
	if session == nil || session.ExpiresAt.IsZero() {
		c.cancelTimer()
		return nil
	}

	if refreshDelay(session.ExpiresAt, c.now()) <= 0 {
		_, err := c.Refresh(ctx)
		return err
	}

	c.ScheduleRefresh()
	return nil
}

// Stop cancels any pending scheduled refresh. Used by logout; an in-flight
// refresh that completes afterwards finds the session cleared and discards
// its result.
func (c *RefreshCoordinator) Stop() {
	c.cancelTimer()
}

// terminalFailure clears the session and notifies the application. The
// pending timer is cancelled so a cleared session is never refreshed.
func (c *RefreshCoordinator) terminalFailure() {
	c.cancelTimer()

	if err := c.store.Clear(); err != nil {
		slog.Warn("Failed to clear session after refresh failure", "error", err.Error())
	}

	slog.Warn("Token refresh failed terminally, session cleared")

	if c.onExpired != nil {
		c.onExpired()
	}
}

func (c *RefreshCoordinator) cancelTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
