// Package auth implements the client-side OAuth 2.0 Authorization Code
// with PKCE session manager for filedrop.
//
// The package is organized around a small set of collaborating components,
// all owned by a Manager constructed at the composition root:
//
//   - AttemptStore holds the ephemeral per-process PKCE attempt
//     (code verifier + state). An attempt is consumed exactly once.
//   - Initiator starts an authorization attempt: it clears any stale
//     attempt, generates fresh PKCE material, and builds the authorize URL.
//   - CallbackServer is a single-shot loopback HTTP server that receives
//     the authorization redirect.
//   - Exchanger validates the callback (state comparison, CSRF defense)
//     and exchanges the authorization code for tokens, then fetches the
//     user's identity profile.
//   - Messenger delivers the exchange result from the callback handler to
//     the waiting login flow over an origin-checked message channel, with
//     a direct-persist fallback when no receiver is registered.
//   - SessionStore persists the session (tokens, expiry, identity) as a
//     JSON file shared by every filedrop process of the same user.
//   - RefreshCoordinator schedules and single-flights token refresh;
//     refresh failure is terminal and cascades into a forced logout.
//   - Transport attaches the bearer token to outbound requests and
//     retries exactly once through the coordinator on a 401.
//
// Error handling is sentinel-based: every failure mode of the callback
// and refresh paths maps to one of the exported Err* values and can be
// tested with errors.Is.
package auth
