// Package tokenstore holds the live access/refresh token pair for the gateway.
package tokenstore

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/codearena/portal-gateway/internal/gwerrors"
	"github.com/codearena/portal-gateway/internal/models"
)

// TokenStore is the single owner of the current token pair. Reads and writes
// are safe from any number of concurrent request paths. When a token
// repository is configured every write goes through to it so that a restarted
// gateway can resume the session, but the in-memory pair stays authoritative
// and persistence failures are never fatal.
type TokenStore struct {
	lock        sync.RWMutex
	pair        models.TokenPair
	hasPair     bool
	tokenRepo   models.TokenRepository
	idGenerator models.IDGenerator
}

// AccessToken returns the current access token, if any
func (s *TokenStore) AccessToken() (models.AuthToken, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if !s.hasPair || s.pair.AccessToken.Value == "" {
		return models.AuthToken{}, false
	}
	return s.pair.AccessToken, true
}

// RefreshToken returns the current refresh token, if any
func (s *TokenStore) RefreshToken() (models.AuthToken, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if !s.hasPair || s.pair.RefreshToken.Value == "" {
		return models.AuthToken{}, false
	}
	return s.pair.RefreshToken, true
}

// SetTokenPair replaces the current token pair. An empty refresh token value
// keeps the existing refresh token, which covers backends that do not rotate
// refresh tokens on renewal.
func (s *TokenStore) SetTokenPair(ctx context.Context, accessValue string, refreshValue string) (models.TokenPair, error) {
	id, err := s.idGenerator.ID()
	if err != nil {
		return models.TokenPair{}, err
	}
	pair := models.TokenPair{
		AccessToken: models.AuthToken{
			ID:        id,
			Value:     accessValue,
			Type:      models.AccessTokenType,
			ExpiresAt: models.ExpiryHint(accessValue),
		},
	}

	s.lock.Lock()
	if refreshValue != "" {
		pair.RefreshToken = models.AuthToken{
			ID:    id,
			Value: refreshValue,
			Type:  models.RefreshTokenType,
		}
	} else if s.hasPair {
		pair.RefreshToken = s.pair.RefreshToken
	}
	if err := pair.Validate(); err != nil {
		s.lock.Unlock()
		return models.TokenPair{}, err
	}
	s.pair = pair
	s.hasPair = true
	s.lock.Unlock()

	s.persist(ctx, pair)
	return pair, nil
}

// SetAccessToken replaces only the access token, keeping the current refresh
// token in place
func (s *TokenStore) SetAccessToken(ctx context.Context, accessValue string) (models.AuthToken, error) {
	pair, err := s.SetTokenPair(ctx, accessValue, "")
	if err != nil {
		return models.AuthToken{}, err
	}
	return pair.AccessToken, nil
}

// SetRefreshToken replaces only the refresh token, keeping the current access
// token in place
func (s *TokenStore) SetRefreshToken(ctx context.Context, refreshValue string) (models.AuthToken, error) {
	id, err := s.idGenerator.ID()
	if err != nil {
		return models.AuthToken{}, err
	}
	token := models.AuthToken{
		ID:    id,
		Value: refreshValue,
		Type:  models.RefreshTokenType,
	}

	s.lock.Lock()
	pair := s.pair
	pair.RefreshToken = token
	if err := pair.Validate(); err != nil {
		s.lock.Unlock()
		return models.AuthToken{}, err
	}
	s.pair = pair
	s.hasPair = true
	s.lock.Unlock()

	s.persist(ctx, pair)
	return token, nil
}

// Clear destroys the current token pair, in memory and in the repository
func (s *TokenStore) Clear(ctx context.Context) {
	s.lock.Lock()
	s.pair = models.TokenPair{}
	s.hasPair = false
	s.lock.Unlock()

	if s.tokenRepo == nil {
		return
	}
	if err := s.tokenRepo.RemoveTokenPair(ctx); err != nil {
		slog.Error("TOKEN STORE", "message", "RemoveTokenPair failed", "error", err)
	}
}

// Hydrate loads a previously persisted token pair into the store. A missing
// pair in the repository is not an error, the store just starts empty.
func (s *TokenStore) Hydrate(ctx context.Context) error {
	if s.tokenRepo == nil {
		return nil
	}
	pair, err := s.tokenRepo.GetTokenPair(ctx)
	if err != nil {
		if errors.Is(err, gwerrors.ErrMissingDBResource) {
			return nil
		}
		return err
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.pair = pair
	s.hasPair = true
	return nil
}

func (s *TokenStore) persist(ctx context.Context, pair models.TokenPair) {
	if s.tokenRepo == nil {
		return
	}
	if err := s.tokenRepo.SetTokenPair(ctx, pair); err != nil {
		slog.Error("TOKEN STORE", "message", "SetTokenPair failed", "error", err)
	}
}

type TokenStoreOption func(*TokenStore) error

func WithTokenRepository(repo models.TokenRepository) TokenStoreOption {
	return func(s *TokenStore) error {
		s.tokenRepo = repo
		return nil
	}
}

func WithIDGenerator(generator models.IDGenerator) TokenStoreOption {
	return func(s *TokenStore) error {
		s.idGenerator = generator
		return nil
	}
}

// NewTokenStore creates a TokenStore, by default in-memory only with ULID token IDs
func NewTokenStore(options ...TokenStoreOption) (*TokenStore, error) {
	store := TokenStore{idGenerator: models.ULIDGenerator{}}
	for _, opt := range options {
		err := opt(&store)
		if err != nil {
			return nil, err
		}
	}
	return &store, nil
}
