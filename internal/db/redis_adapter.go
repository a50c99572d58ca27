// Package db contains adapters for persisting gateway state in redis.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/codearena/portal-gateway/internal/config"
	"github.com/codearena/portal-gateway/internal/gwerrors"
	"github.com/codearena/portal-gateway/internal/models"
	"github.com/mitchellh/mapstructure"
	"github.com/redis/go-redis/v9"
)

const tokenPairKey string = "portalTokens-current"

// LimitedRedisClient is the limited set of functionality expected from the redis
// client in this adapter. This allows for easy mocking and swapping of the client.
// The universal redis client interface is way too big.
type LimitedRedisClient interface {
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisAdapter persists the live token pair as a redis hash
type RedisAdapter struct {
	rdb LimitedRedisClient
}

// persistedTokenPair is the flat hash layout of a token pair in redis
type persistedTokenPair struct {
	ID              string
	AccessValue     string
	AccessExpiresAt string
	RefreshValue    string
}

func (r RedisAdapter) SetTokenPair(ctx context.Context, pair models.TokenPair) error {
	expiresAt := ""
	if !pair.AccessToken.ExpiresAt.IsZero() {
		expiresAt = pair.AccessToken.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}
	return r.rdb.HSet(
		ctx,
		tokenPairKey,
		"ID", pair.AccessToken.ID,
		"AccessValue", pair.AccessToken.Value,
		"AccessExpiresAt", expiresAt,
		"RefreshValue", pair.RefreshToken.Value,
	).Err()
}

func (r RedisAdapter) GetTokenPair(ctx context.Context) (models.TokenPair, error) {
	hash, err := r.rdb.HGetAll(ctx, tokenPairKey).Result()
	if err != nil {
		return models.TokenPair{}, err
	}
	if len(hash) == 0 {
		// HGetAll returns an empty map when the key is not present in the DB
		return models.TokenPair{}, gwerrors.ErrMissingDBResource
	}
	var persisted persistedTokenPair
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: &persisted})
	if err != nil {
		return models.TokenPair{}, err
	}
	if err := decoder.Decode(hash); err != nil {
		return models.TokenPair{}, err
	}
	pair := models.TokenPair{
		AccessToken: models.AuthToken{
			ID:    persisted.ID,
			Value: persisted.AccessValue,
			Type:  models.AccessTokenType,
		},
	}
	if persisted.AccessExpiresAt != "" {
		expiresAt, err := time.Parse(time.RFC3339Nano, persisted.AccessExpiresAt)
		if err != nil {
			return models.TokenPair{}, fmt.Errorf("cannot parse the persisted token expiry: %w", err)
		}
		pair.AccessToken.ExpiresAt = expiresAt
	}
	if persisted.RefreshValue != "" {
		pair.RefreshToken = models.AuthToken{
			ID:    persisted.ID,
			Value: persisted.RefreshValue,
			Type:  models.RefreshTokenType,
		}
	}
	return pair, nil
}

func (r RedisAdapter) RemoveTokenPair(ctx context.Context) error {
	return r.rdb.Del(ctx, tokenPairKey).Err()
}

type RedisAdapterOption func(*RedisAdapter) error

func WithRedisConfig(redisConfig config.RedisConfig) RedisAdapterOption {
	return func(r *RedisAdapter) error {
		switch redisConfig.Type {
		case config.DBTypeRedis:
			if redisConfig.IsSentinel {
				rdb := redis.NewFailoverClient(&redis.FailoverOptions{
					MasterName:       redisConfig.MasterName,
					SentinelAddrs:    redisConfig.Addresses,
					Password:         string(redisConfig.Password),
					DB:               redisConfig.DBIndex,
					SentinelPassword: string(redisConfig.Password),
				})
				r.rdb = rdb
				return nil
			}
			rdb := redis.NewClient(&redis.Options{
				Password: string(redisConfig.Password),
				DB:       redisConfig.DBIndex,
				Addr:     redisConfig.Addresses[0],
			})
			r.rdb = rdb
			return nil
		case config.DBTypeRedisMock:
			// in-process redis, only allowed in development
			mock, err := miniredis.Run()
			if err != nil {
				return err
			}
			r.rdb = redis.NewClient(&redis.Options{Addr: mock.Addr()})
			return nil
		default:
			return fmt.Errorf("unrecognized persistence type %v", redisConfig.Type)
		}
	}
}

// WithRedisClient injects an already initialized redis client, used in tests
// to point the adapter at miniredis.
func WithRedisClient(client LimitedRedisClient) RedisAdapterOption {
	return func(r *RedisAdapter) error {
		r.rdb = client
		return nil
	}
}

func NewRedisAdapter(options ...RedisAdapterOption) (RedisAdapter, error) {
	rdb := RedisAdapter{}
	for _, opt := range options {
		err := opt(&rdb)
		if err != nil {
			return RedisAdapter{}, err
		}
	}
	if rdb.rdb == nil {
		return RedisAdapter{}, fmt.Errorf("redis client not initialized")
	}
	return rdb, nil
}
