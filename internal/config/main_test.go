package config

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getValidUpstreamConfig(t *testing.T) UpstreamConfig {
	baseURL, err := url.Parse("https://portal.example.org")
	require.NoError(t, err)
	return UpstreamConfig{
		BaseURL:               baseURL,
		RefreshPath:           "/auth/refresh",
		RequestTimeoutSeconds: 30,
	}
}

func getValidConfig(t *testing.T) Config {
	return Config{
		RunningEnvironment: Production,
		Upstream:           getValidUpstreamConfig(t),
		Refresh: RefreshConfig{
			ProactiveEnabled:         true,
			ExpiryMarginSeconds:      180,
			ProactiveIntervalSeconds: 60,
		},
		Redis: RedisConfig{
			Type:      DBTypeRedis,
			Addresses: []string{"localhost:6379"},
		},
	}
}

func TestValidConfig(t *testing.T) {
	config := getValidConfig(t)

	err := config.Validate()

	assert.NoError(t, err)
}

func TestInvalidUpstreamConfig(t *testing.T) {
	config := getValidConfig(t)
	config.Upstream.BaseURL = nil

	err := config.Validate()

	assert.Error(t, err)
}

func TestMissingRefreshPath(t *testing.T) {
	config := getValidConfig(t)
	config.Upstream.RefreshPath = ""

	err := config.Validate()

	assert.Error(t, err)
}

func TestInvalidRefreshConfig(t *testing.T) {
	config := getValidConfig(t)
	config.Refresh.ProactiveIntervalSeconds = 0

	err := config.Validate()

	assert.Error(t, err)
}

func TestInvalidRedisConfig(t *testing.T) {
	config := getValidConfig(t)
	config.Redis.Type = DBTypeRedisMock

	err := config.Validate()

	assert.Error(t, err)

	config.RunningEnvironment = Development
	assert.NoError(t, config.Validate())
}
