package config

import (
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createMainFile(t *testing.T, fpath string) {
	contents := `---
runningenvironment: development
upstream:
  baseurl: https://portal.example.org
  refreshpath: /auth/refresh
  requesttimeoutseconds: 30
refresh:
  proactiveenabled: false
  expirymarginseconds: 180
redis:
  type: redis-mock
monitoring:
  sentry:
    enabled: false
`
	require.NoError(t, os.WriteFile(fpath, []byte(contents), 0666))
}

func createSecretFile(t *testing.T, fpath string) {
	contents := `---
redis:
  password: redis-password-from-secret-file
monitoring:
  sentry:
    dsn: sentry-dsn-from-secret-file
`
	require.NoError(t, os.WriteFile(fpath, []byte(contents), 0666))
}

func TestReadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CONFIG_LOCATION", tmpDir)
	createMainFile(t, path.Join(tmpDir, "config.yaml"))
	createSecretFile(t, path.Join(tmpDir, "secret_config.yaml"))

	ch := NewConfigHandler()
	config, err := ch.Config()
	require.NoError(t, err)
	assert.NotEqual(t, config, Config{})
	assert.Equal(t, "https://portal.example.org", config.Upstream.BaseURL.String())
	assert.Equal(t, "/auth/refresh", config.Upstream.RefreshPath)
	assert.Equal(t, RedactedString("redis-password-from-secret-file"), config.Redis.Password)
	assert.Equal(t, RedactedString("sentry-dsn-from-secret-file"), config.Monitoring.Sentry.Dsn)
}

func TestReadConfigWithEnvVars(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CONFIG_LOCATION", tmpDir)
	createMainFile(t, path.Join(tmpDir, "config.yaml"))
	createSecretFile(t, path.Join(tmpDir, "secret_config.yaml"))
	t.Setenv("GATEWAY_REDIS_PASSWORD", "env-var-redis-password")
	t.Setenv("GATEWAY_UPSTREAM_BASEURL", "https://staging.example.org")
	// this key appears in neither config file
	t.Setenv("GATEWAY_DEBUGMODE", "true")

	ch := NewConfigHandler()
	config, err := ch.Config()
	require.NoError(t, err)
	assert.Equal(t, "https://staging.example.org", config.Upstream.BaseURL.String())
	assert.Equal(t, RedactedString("env-var-redis-password"), config.Redis.Password)
	assert.Equal(t, RedactedString("sentry-dsn-from-secret-file"), config.Monitoring.Sentry.Dsn)
	assert.True(t, config.DebugMode)
}

func TestReadConfigNoSecretFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("CONFIG_LOCATION", tmpDir)
	createMainFile(t, path.Join(tmpDir, "config.yaml"))
	t.Setenv("GATEWAY_REDIS_PASSWORD", "env-var-redis-password")

	ch := NewConfigHandler()
	config, err := ch.Config()
	require.NoError(t, err)
	assert.Equal(t, RedactedString("env-var-redis-password"), config.Redis.Password)
}
