// Package oauth provides the shared OAuth 2.0 building blocks used by the
// filedrop authentication stack: PKCE material generation, token and
// identity wire types, and endpoint derivation from a configured issuer.
//
// The package implements the client side of the Authorization Code flow
// with PKCE (RFC 7636). Only the S256 challenge method is supported; the
// plain method is deliberately not implemented.
//
// All random material comes from crypto/rand. A failure of the system
// random source is returned as an error and never degraded to a weaker
// source.
package oauth
