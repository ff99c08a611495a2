package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		yaml      string
		envVars   map[string]string
		wantErr   string
		checkFunc func(t *testing.T, cfg *Config)
	}{
		{
			name: "valid minimal config",
			yaml: `
jushuitan:
  app_key: my-app
  app_secret: my-secret
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "my-app", cfg.Jushuitan.AppKey)
				assert.Equal(t, "my-secret", cfg.Jushuitan.AppSecret)
			},
		},
		{
			name: "defaults applied for optional fields",
			yaml: `{}`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "https://openapi.jushuitan.com", cfg.Jushuitan.BaseURL)
				assert.Equal(t, 30*time.Second, cfg.Jushuitan.Timeout)
				assert.Equal(t, 7200*time.Second, cfg.Jushuitan.TokenTTL)
				assert.False(t, cfg.Jushuitan.LogTokens)
				assert.Equal(t, "file", cfg.Cache.Backend)
				assert.Equal(t, DefaultTokenFile(), cfg.Cache.File.Path)
				assert.Equal(t, "jushuitan_tokens", cfg.Cache.NATS.Bucket)
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "text", cfg.Logging.Format)
				assert.False(t, cfg.Tracing.Enabled())
				assert.InDelta(t, 1.0, cfg.Tracing.SampleRatio, 0)
				assert.Equal(t, "127.0.0.1:8089", cfg.Server.Addr())
			},
		},
		{
			name: "env var substitution",
			yaml: `
jushuitan:
  app_key: my-app
  app_secret: "${TEST_JST_SECRET}"
cache:
  backend: redis
  redis:
    addr: "${TEST_JST_REDIS}"
`,
			envVars: map[string]string{
				"TEST_JST_SECRET": "secret123",
				"TEST_JST_REDIS":  "localhost:6379",
			},
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "secret123", cfg.Jushuitan.AppSecret)
				assert.Equal(t, "localhost:6379", cfg.Cache.Redis.Addr)
			},
		},
		{
			name: "invalid base url",
			yaml: `
jushuitan:
  base_url: "not a url"
`,
			wantErr: `jushuitan.base_url: failed "url" check`,
		},
		{
			name: "invalid discord webhook",
			yaml: `
notify:
  discord_webhook_url: "discord"
`,
			wantErr: `notify.discord_webhook_url: failed "url" check`,
		},
		{
			name: "discord webhook",
			yaml: `
notify:
  discord_webhook_url: "https://discord.com/api/webhooks/1/abc"
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "https://discord.com/api/webhooks/1/abc", cfg.Notify.DiscordWebhookURL)
			},
		},
		{
			name: "invalid log level",
			yaml: `
logging:
  level: trace
`,
			wantErr: `logging.level: failed "oneof" check`,
		},
		{
			name: "invalid tracing endpoint",
			yaml: `
tracing:
  endpoint: "http://collector"
`,
			wantErr: `tracing.endpoint: failed "hostname_port" check`,
		},
		{
			name: "invalid cache backend",
			yaml: `
cache:
  backend: memcached
`,
			wantErr: `cache.backend must be one of: file, memory, redis, nats, postgres, none (got "memcached")`,
		},
		{
			name: "redis backend missing addr",
			yaml: `
cache:
  backend: redis
`,
			wantErr: "cache.redis.addr is required when backend is redis",
		},
		{
			name: "nats backend missing url",
			yaml: `
cache:
  backend: nats
`,
			wantErr: "cache.nats.url is required when backend is nats",
		},
		{
			name: "postgres backend missing dsn",
			yaml: `
cache:
  backend: postgres
`,
			wantErr: "cache.postgres.dsn is required when backend is postgres",
		},
		{
			name:    "invalid YAML",
			yaml:    `{{{not valid yaml`,
			wantErr: "parsing config YAML",
		},
		{
			name: "full config with overrides",
			yaml: `
jushuitan:
  app_key: prod-app
  app_secret: prod-secret
  base_url: https://dev-api.jushuitan.com
  timeout: 10s
  token_ttl: 1h
  log_tokens: true
  headers:
    X-Partner: acme
cache:
  backend: postgres
  postgres:
    dsn: postgres://jst:jst@db:5432/jst
    max_conns: 8
    migrate: true
logging:
  level: debug
  format: json
tracing:
  endpoint: otel-collector:4317
  insecure: true
  sample_ratio: 0.25
server:
  host: 0.0.0.0
  port: 9090
`,
			checkFunc: func(t *testing.T, cfg *Config) {
				t.Helper()
				assert.Equal(t, "https://dev-api.jushuitan.com", cfg.Jushuitan.BaseURL)
				assert.Equal(t, 10*time.Second, cfg.Jushuitan.Timeout)
				assert.Equal(t, time.Hour, cfg.Jushuitan.TokenTTL)
				assert.True(t, cfg.Jushuitan.LogTokens)
				assert.Equal(t, map[string]string{"X-Partner": "acme"}, cfg.Jushuitan.Headers)
				assert.Equal(t, "postgres", cfg.Cache.Backend)
				assert.Equal(t, int32(8), cfg.Cache.Postgres.MaxConns)
				assert.True(t, cfg.Cache.Postgres.Migrate)
				assert.Equal(t, "json", cfg.Logging.Format)
				assert.True(t, cfg.Tracing.Enabled())
				assert.True(t, cfg.Tracing.Insecure)
				assert.InDelta(t, 0.25, cfg.Tracing.SampleRatio, 1e-9)
				assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Only parallelize tests that don't modify env vars.
			if len(tt.envVars) == 0 {
				t.Parallel()
			}

			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			dir := t.TempDir()
			path := filepath.Join(dir, "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			cfg, err := Load(path)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)

			if tt.checkFunc != nil {
				tt.checkFunc(t, cfg)
			}
		})
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	t.Parallel()

	_, err := Load("/nonexistent/path/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Logging.Format = "xml"
	cfg.Cache.Backend = "redis"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.format")
	assert.Contains(t, err.Error(), "cache.redis.addr is required")
}

func TestJushuitanConfig_ComponentConfig(t *testing.T) {
	t.Parallel()

	j := Default().Jushuitan
	j.AppKey = "k"
	j.AppSecret = "s"
	j.Headers = map[string]string{"X-A": "b"}

	cc := j.ComponentConfig()
	assert.Equal(t, "k", cc.AppKey)
	assert.Equal(t, "s", cc.AppSecret)
	assert.Equal(t, 7200*time.Second, cc.TokenTTL)
	assert.Len(t, cc.ClientOptions, 3)
}
