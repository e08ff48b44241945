// Package auth signs and validates the JWT bearer tokens of the FileMill API.
package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenType distinguishes access tokens from refresh tokens. Refresh
// tokens are only good for minting new pairs; API routes demand access
// tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the payload of a FileMill token. UserID is what the API
// resolves to owner_id; every file and job a request touches is scoped
// to it.
type Claims struct {
	jwt.RegisteredClaims

	// UserID is the owning user's UUID.
	UserID string `json:"uid"`

	// Email is the login identity the token was issued for.
	Email string `json:"email"`

	// Role is "user" or "admin".
	Role string `json:"role"`

	// TokenType marks the token as access or refresh.
	TokenType TokenType `json:"token_type"`
}

// IsAccessToken reports whether the token authorizes API calls.
func (c *Claims) IsAccessToken() bool {
	return c.TokenType == TokenTypeAccess
}

// IsRefreshToken reports whether the token can mint a new pair.
func (c *Claims) IsRefreshToken() bool {
	return c.TokenType == TokenTypeRefresh
}
