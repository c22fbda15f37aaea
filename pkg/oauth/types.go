package oauth

import (
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Token represents an OAuth access token with associated metadata.
type Token struct {
	// AccessToken is the bearer token used for authorization.
	AccessToken string `json:"access_token"`

	// TokenType is typically "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// RefreshToken is used to obtain new access tokens (optional).
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresIn is the token lifetime in seconds (from the token response).
	ExpiresIn int `json:"expires_in,omitempty"`

	// ExpiresAt is the absolute expiration timestamp, computed once at the
	// moment the token response was received. It is never recomputed from
	// the token itself.
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	// Scope is the granted scope(s), space-separated.
	Scope string `json:"scope,omitempty"`
}

// SetExpiresAtFromExpiresIn calculates and sets ExpiresAt from ExpiresIn.
func (t *Token) SetExpiresAtFromExpiresIn() {
	if t.ExpiresIn > 0 && t.ExpiresAt.IsZero() {
		t.ExpiresAt = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
}

// IsExpiredWithMargin checks if the token has expired or will expire within
// the margin. Tokens without an expiration never expire.
func (t *Token) IsExpiredWithMargin(margin time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(margin).After(t.ExpiresAt)
}

// Scopes returns the scope as a slice of individual scopes.
func (t *Token) Scopes() []string {
	if t.Scope == "" {
		return nil
	}
	return strings.Fields(t.Scope)
}

// ToOAuth2Token converts the Token to an oauth2.Token for compatibility
// with golang.org/x/oauth2.
func (t *Token) ToOAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt,
	}
}

// UserInfo holds the identity claims returned by the userinfo endpoint.
type UserInfo struct {
	// Sub is the unique user identifier.
	Sub string `json:"sub"`

	// Name is the user's display name.
	Name string `json:"name,omitempty"`

	// Email is the user's email address.
	Email string `json:"email,omitempty"`

	// EmailVerified indicates whether the email has been verified by the IdP.
	EmailVerified bool `json:"email_verified,omitempty"`

	// Picture is a URL to the user's profile picture.
	Picture string `json:"picture,omitempty"`

	// Role is an optional application-level role claim.
	Role string `json:"role,omitempty"`
}

// DefaultScopes is the scope set requested on every authorization. The
// three identity scopes are fixed; the session manager does not request
// resource-specific scopes.
const DefaultScopes = "openid profile email"

// Endpoints holds the authorization-server endpoint set, derived from a
// configured issuer base URL.
type Endpoints struct {
	// Authorize is the browser navigation target for the authorization request.
	Authorize string

	// Token is the token endpoint for code exchange and refresh.
	Token string

	// UserInfo is the OIDC userinfo endpoint.
	UserInfo string

	// Revoke is the token revocation endpoint.
	Revoke string
}

// EndpointsForIssuer derives the fixed endpoint set from an issuer base URL.
func EndpointsForIssuer(issuer string) Endpoints {
	base := strings.TrimSuffix(issuer, "/")
	return Endpoints{
		Authorize: base + "/oauth/authorize",
		Token:     base + "/oauth/token",
		UserInfo:  base + "/oauth/userinfo",
		Revoke:    base + "/oauth/revoke",
	}
}
