package oauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToken_SetExpiresAtFromExpiresIn(t *testing.T) {
	tok := &Token{AccessToken: "at", ExpiresIn: 3600}

	before := time.Now().Add(3600 * time.Second)
	tok.SetExpiresAtFromExpiresIn()
	after := time.Now().Add(3600 * time.Second)

	assert.False(t, tok.ExpiresAt.IsZero())
	assert.True(t, !tok.ExpiresAt.Before(before) && !tok.ExpiresAt.After(after))

	// A second call must not move the expiry.
	fixed := tok.ExpiresAt
	tok.SetExpiresAtFromExpiresIn()
	assert.Equal(t, fixed, tok.ExpiresAt)
}

func TestToken_SetExpiresAtFromExpiresIn_NoExpiresIn(t *testing.T) {
	tok := &Token{AccessToken: "at"}
	tok.SetExpiresAtFromExpiresIn()
	assert.True(t, tok.ExpiresAt.IsZero())
}

func TestToken_IsExpiredWithMargin(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
		margin    time.Duration
		want      bool
	}{
		{
			name:      "no expiry never expires",
			expiresAt: time.Time{},
			margin:    time.Hour,
			want:      false,
		},
		{
			name:      "far future",
			expiresAt: time.Now().Add(time.Hour),
			margin:    time.Minute,
			want:      false,
		},
		{
			name:      "already expired",
			expiresAt: time.Now().Add(-time.Minute),
			margin:    0,
			want:      true,
		},
		{
			name:      "inside margin",
			expiresAt: time.Now().Add(2 * time.Minute),
			margin:    5 * time.Minute,
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := &Token{ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, tok.IsExpiredWithMargin(tt.margin))
		})
	}
}

func TestToken_ToOAuth2Token(t *testing.T) {
	expiry := time.Now().Add(time.Hour)
	tok := &Token{
		AccessToken:  "at",
		TokenType:    "Bearer",
		RefreshToken: "rt",
		ExpiresAt:    expiry,
	}

	o2 := tok.ToOAuth2Token()
	assert.Equal(t, "at", o2.AccessToken)
	assert.Equal(t, "Bearer", o2.TokenType)
	assert.Equal(t, "rt", o2.RefreshToken)
	assert.Equal(t, expiry, o2.Expiry)
}

func TestToken_Scopes(t *testing.T) {
	assert.Nil(t, (&Token{}).Scopes())
	assert.Equal(t, []string{"openid", "profile", "email"}, (&Token{Scope: "openid profile email"}).Scopes())
}

func TestEndpointsForIssuer(t *testing.T) {
	tests := []struct {
		issuer string
	}{
		{"https://auth.example.com"},
		{"https://auth.example.com/"},
	}

	for _, tt := range tests {
		ep := EndpointsForIssuer(tt.issuer)
		assert.Equal(t, "https://auth.example.com/oauth/authorize", ep.Authorize)
		assert.Equal(t, "https://auth.example.com/oauth/token", ep.Token)
		assert.Equal(t, "https://auth.example.com/oauth/userinfo", ep.UserInfo)
		assert.Equal(t, "https://auth.example.com/oauth/revoke", ep.Revoke)
	}
}
