package models

import (
	"fmt"
	"time"
)

type TokenType string

const AccessTokenType TokenType = "access"
const RefreshTokenType TokenType = "refresh"

// AuthToken is a struct used to store and work with access and refresh tokens.
// The token value is opaque to the gateway, the expiry is a best effort hint.
type AuthToken struct {
	ID        string
	Value     string
	Type      TokenType
	ExpiresAt time.Time
}

// String implements the Stringer interface so that token values never end up in logs
func (t AuthToken) String() string {
	return fmt.Sprintf(
		"%s<ID: %s, Value: redacted, ExpiresAt: %s>",
		t.Type,
		t.ID,
		t.ExpiresAt,
	)
}

// Expired returns true only when an expiry hint is known and has passed
func (t AuthToken) Expired() bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().UTC().After(t.ExpiresAt)
}

// ExpiresSoon returns true when the token expires within the provided margin
func (t AuthToken) ExpiresSoon(margin time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().UTC().Add(margin).After(t.ExpiresAt)
}

// TokenPair is the live access/refresh token pair owned by the token store
type TokenPair struct {
	AccessToken  AuthToken
	RefreshToken AuthToken
}

func (p *TokenPair) Validate() error {
	if p.AccessToken.Value != "" && p.AccessToken.Type != AccessTokenType {
		return fmt.Errorf("invalid type %s for access token %s", p.AccessToken.Type, p.AccessToken.ID)
	}
	if p.RefreshToken.Value != "" && p.RefreshToken.Type != RefreshTokenType {
		return fmt.Errorf("invalid type %s for refresh token %s", p.RefreshToken.Type, p.RefreshToken.ID)
	}
	return nil
}
