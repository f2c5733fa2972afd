package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/2beens/gymprogress/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigContent = `
[development]
host = "localhost"
port = 8080
log_level = "trace"
log_to_stdout = true
sentry_enabled = false
redis_host = "localhost"
redis_port = "6379"
prometheus_metrics_host = "localhost"
prometheus_metrics_port = 2112
new_session_rate_limit_per_min = 60
weekly_goal_default = 3
analytics_cache_size_mb = 10

[production]
host = ""
port = 9000
log_level = "debug"
logs_path = "/var/log/gymprogress/service.log"
sentry_enabled = true
redis_host = "redis.internal"
redis_port = "6379"
prometheus_metrics_port = 2112
new_session_rate_limit_per_min = 30
weekly_goal_default = 3
analytics_cache_size_mb = 50
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigContent), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeTestConfig(t)

	cfg, err := config.Load("development", path)
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "trace", cfg.LogLevel)
	assert.True(t, cfg.LogToStdout)
	assert.False(t, cfg.SentryEnabled)
	assert.Equal(t, "6379", cfg.RedisPort)
	assert.Equal(t, 2112, cfg.PrometheusMetricsPort)
	assert.Equal(t, 60, cfg.NewSessionRateLimitPerMin)
	assert.Equal(t, 3, cfg.WeeklyGoalDefault)
	assert.Equal(t, 10, cfg.AnalyticsCacheSizeMB)

	prodCfg, err := config.Load("prod", path)
	require.NoError(t, err)
	assert.Equal(t, 9000, prodCfg.Port)
	assert.Equal(t, "prod", prodCfg.Environment)
	assert.True(t, prodCfg.SentryEnabled)
	assert.Equal(t, "redis.internal", prodCfg.RedisHost)
}

func TestLoad_UnknownEnv(t *testing.T) {
	path := writeTestConfig(t)
	_, err := config.Load("staging", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown env")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load("development", "/no/such/config.toml")
	assert.Error(t, err)
}

func TestToml_Get(t *testing.T) {
	devCfg := &config.Config{Port: 1}
	prodCfg := &config.Config{Port: 2}
	tomlCfg := &config.Toml{Development: devCfg, Production: prodCfg}

	for env, want := range map[string]*config.Config{
		"dev":         devCfg,
		"development": devCfg,
		"prod":        prodCfg,
		"production":  prodCfg,
		"PROD":        prodCfg,
	} {
		got, err := tomlCfg.Get(env)
		require.NoError(t, err)
		assert.Same(t, want, got, env)
	}

	_, err := tomlCfg.Get("nope")
	assert.Error(t, err)
}
