package identity

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the access token claims the client cares about
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// ParseAccessToken decodes the claims of an access token without verifying
// its signature. The client never holds the signing key; the auth endpoint
// remains the authority on whether a token is valid.
func ParseAccessToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("empty access token")
	}

	token, _, err := jwt.NewParser().ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse access token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", token.Claims)
	}

	return claims, nil
}
