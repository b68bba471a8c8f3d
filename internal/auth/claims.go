package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// Email is carried in the token so the call log can denormalize it at write
// time without a user lookup.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	TokenType TokenType `json:"token_type"`
}
