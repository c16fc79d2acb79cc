package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// RegisteredClaims.ID (jti) identifies a token for revocation.
type Claims struct {
	jwt.RegisteredClaims

	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}

// Identity is the authenticated caller.
type Identity struct {
	UserID int64
	Email  string
	Role   string
}
