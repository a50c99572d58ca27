package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ExpiryHint extracts the expiry claim from a JWT-shaped access token without
// verifying the signature. The gateway never trusts the token contents, the
// hint only drives proactive refresh scheduling. Tokens that do not parse as
// JWTs stay fully opaque and get a zero expiry.
func ExpiryHint(tokenValue string) time.Time {
	claims := jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	_, _, err := parser.ParseUnverified(tokenValue, &claims)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time.UTC()
}
