package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"
)

// Transport is an http.RoundTripper that attaches the session's bearer
// token to every request and transparently recovers from a 401 exactly
// once by refreshing and retrying. Callers never see the first 401 of a
// recoverable pair; they see either the retried response or
// ErrSessionExpired.
//
// Non-auth failures (403, 5xx, timeouts) pass through unmodified; the
// transport draws a hard line between "your session is gone" and "your
// request failed".
type Transport struct {
	store       *SessionStore
	coordinator *RefreshCoordinator
	base        http.RoundTripper
}

// NewTransport wires a transport over base. A nil base uses
// http.DefaultTransport.
func NewTransport(store *SessionStore, coordinator *RefreshCoordinator, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}

	return &Transport{
		store:       store,
		coordinator: coordinator,
		base:        base,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	session, err := t.store.Load()
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionExpired
	}

	resp, err := t.send(req, session.AccessToken)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// One recovery attempt: refresh, then replay the request with the new
	// token. The refresh is single-flight, so a burst of 401s from parallel
	// requests funds exactly one token call.
	resp.Body.Close()

	slog.Debug("Request returned 401, attempting token refresh",
		"method", req.Method,
		"url", req.URL.Redacted(),
	)

	if _, err := t.coordinator.Refresh(req.Context()); err != nil {
		return nil, ErrSessionExpired
	}

	session, err = t.store.Load()
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionExpired
	}

	retry, err := t.send(req, session.AccessToken)
	if err != nil {
		return nil, err
	}
	if retry.StatusCode == http.StatusUnauthorized {
		// The refreshed token was rejected too. The session is not usable.
		retry.Body.Close()
		if err := t.store.Clear(); err != nil {
			slog.Warn("Failed to clear session after repeated 401", "error", err.Error())
		}
		t.coordinator.Stop()
		return nil, ErrSessionExpired
	}

	return retry, nil
}

// send clones the request, attaches the bearer token, and dispatches it.
// Cloning keeps RoundTrip contract-clean (the caller's request is never
// mutated) and gives the retry a fresh body via GetBody.
func (t *Transport) send(req *http.Request, accessToken string) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if req.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("failed to rewind request body: %w", err)
		}
		clone.Body = body
	}

	clone.Header.Set("Authorization", "Bearer "+accessToken)

	return t.base.RoundTrip(clone)
}

// sessionTokenSource adapts the session store and refresh coordinator to
// oauth2.TokenSource so third-party clients built on golang.org/x/oauth2
// can ride the same session.
type sessionTokenSource struct {
	ctx         context.Context
	store       *SessionStore
	coordinator *RefreshCoordinator
}

// TokenSource returns an oauth2.TokenSource backed by the session. Token()
// refreshes through the coordinator when the stored expiry is inside the
// refresh buffer, so every consumer shares the single-flight guarantee.
func TokenSource(ctx context.Context, store *SessionStore, coordinator *RefreshCoordinator) oauth2.TokenSource {
	return &sessionTokenSource{ctx: ctx, store: store, coordinator: coordinator}
}

// Token implements oauth2.TokenSource.
func (s *sessionTokenSource) Token() (*oauth2.Token, error) {
	session, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionExpired
	}

	if !session.ExpiresAt.IsZero() && refreshDelay(session.ExpiresAt, s.coordinator.now()) <= 0 {
		if _, err := s.coordinator.Refresh(s.ctx); err != nil {
			return nil, ErrSessionExpired
		}
		session, err = s.store.Load()
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, ErrSessionExpired
		}
	}

	return &oauth2.Token{
		AccessToken:  session.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: session.RefreshToken,
		Expiry:       session.ExpiresAt,
	}, nil
}
