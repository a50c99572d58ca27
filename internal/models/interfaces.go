package models

import "context"

type IDGenerator interface {
	ID() (string, error)
}

type TokenPairGetter interface {
	GetTokenPair(ctx context.Context) (TokenPair, error)
}

type TokenPairSetter interface {
	SetTokenPair(ctx context.Context, pair TokenPair) error
}

type TokenPairRemover interface {
	RemoveTokenPair(ctx context.Context) error
}

// TokenRepository is the persistence contract for the live token pair
type TokenRepository interface {
	TokenPairGetter
	TokenPairSetter
	TokenPairRemover
}
