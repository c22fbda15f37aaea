package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	// pkceVerifierBytes is the number of random bytes for the PKCE code verifier.
	// 32 bytes provides 256 bits of entropy and encodes to 43 base64url
	// characters, the RFC 7636 minimum verifier length.
	pkceVerifierBytes = 32

	// stateBytes is the number of random bytes for the OAuth state parameter.
	// 16 bytes provides 128 bits of entropy, sufficient for CSRF protection.
	stateBytes = 16
)

// PKCEChallenge represents a PKCE (Proof Key for Code Exchange) challenge.
// PKCE binds an authorization code to the client that requested it,
// preventing code interception attacks in public clients.
type PKCEChallenge struct {
	// CodeVerifier is the cryptographically random string (base64url-encoded).
	// This is kept secret and sent only to the token endpoint.
	CodeVerifier string

	// CodeChallenge is the SHA256 hash of the verifier (base64url-encoded).
	// This is sent in the authorization request.
	CodeChallenge string

	// CodeChallengeMethod is always "S256".
	CodeChallengeMethod string
}

// GeneratePKCE generates a new PKCE code verifier and challenge.
// The code verifier is 32 random bytes (256 bits), base64url-encoded without
// padding. The code challenge is the S256 (SHA256) hash of the verifier.
func GeneratePKCE() (*PKCEChallenge, error) {
	verifierBytes := make([]byte, pkceVerifierBytes)
	if _, err := rand.Read(verifierBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes for PKCE: %w", err)
	}

	verifier := base64.RawURLEncoding.EncodeToString(verifierBytes)

	return &PKCEChallenge{
		CodeVerifier:        verifier,
		CodeChallenge:       ChallengeS256(verifier),
		CodeChallengeMethod: "S256",
	}, nil
}

// ChallengeS256 computes the S256 code challenge for a verifier:
// base64url(SHA256(verifier)), unpadded.
func ChallengeS256(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// GenerateState generates a random state parameter for OAuth.
// The state is round-tripped through the authorization server to detect
// cross-site request forgery on the callback.
//
// Returns a base64url-encoded random string.
func GenerateState() (string, error) {
	buf := make([]byte, stateBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}
