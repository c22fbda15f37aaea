package auth

import "errors"

// Callback-path errors. These are reported to the initiating flow (or shown
// in-page by the callback server) and never silently retried; the user must
// re-initiate login.
var (
	// ErrMissingCode indicates the authorization callback carried no code
	// parameter.
	ErrMissingCode = errors.New("authorization callback missing code parameter")

	// ErrMissingVerifier indicates no pending authorization attempt exists
	// in this process. A callback without a matching attempt cannot be
	// completed; a process that did not originate the attempt must not be
	// able to finish it.
	ErrMissingVerifier = errors.New("no pending authorization attempt")

	// ErrStateMismatch indicates the state returned by the authorization
	// server differs from the stored state. Treated as a CSRF signal; the
	// code is never exchanged.
	ErrStateMismatch = errors.New("state parameter mismatch")

	// ErrExchangeFailed indicates the token endpoint rejected the
	// authorization code exchange.
	ErrExchangeFailed = errors.New("authorization code exchange failed")

	// ErrUserInfoFailed indicates the userinfo endpoint rejected the
	// freshly issued access token.
	ErrUserInfoFailed = errors.New("userinfo request failed")
)

// Session-lifecycle errors. These are the only errors that cascade into a
// forced logout.
var (
	// ErrRefreshFailed indicates a terminal token refresh failure: the
	// refresh token is absent, invalid, or revoked. The session is cleared
	// and the failure is not retried.
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrSessionExpired is surfaced to callers of the authenticated
	// transport once the session has been cleared.
	ErrSessionExpired = errors.New("session expired")
)
