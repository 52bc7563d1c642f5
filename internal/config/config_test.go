package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "PROVIDER", "HISTORY_LIMIT", "PROVIDER_TIMEOUT", "ALWAYS_INCLUDE_USERS", "RATE_LIMIT_RPS"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, ProviderMemory, cfg.Provider)
	assert.Equal(t, 100, cfg.HistoryLimit)
	assert.Equal(t, 15*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 5.0, cfg.RateLimitRPS)
	assert.Empty(t, cfg.AlwaysIncludeUsers)
	require.NoError(t, cfg.Validate())
}

func TestFromEnvParsesValues(t *testing.T) {
	t.Setenv("PROVIDER", ProviderSlack)
	t.Setenv("SLACK_WORLD_TOKEN", "xoxb-world")
	t.Setenv("ALWAYS_INCLUDE_USERS", " U1, ,U2 ")
	t.Setenv("HISTORY_LIMIT", "25")
	t.Setenv("SWEEP_CONCURRENCY", "not-a-number")
	t.Setenv("PROVIDER_TIMEOUT", "3s")
	t.Setenv("RATE_LIMIT_WHITELIST", "10.0.0.0/8,127.0.0.1")

	cfg := FromEnv()
	assert.Equal(t, []string{"U1", "U2"}, cfg.AlwaysIncludeUsers)
	assert.Equal(t, 25, cfg.HistoryLimit)
	assert.Equal(t, 8, cfg.SweepConcurrency)
	assert.Equal(t, 3*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.RateLimitWhitelist)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"memory in development", Config{Env: "development", Provider: ProviderMemory}, ""},
		{"slack without token", Config{Env: "development", Provider: ProviderSlack}, "SLACK_WORLD_TOKEN"},
		{"unknown provider", Config{Env: "development", Provider: "irc"}, "unknown PROVIDER"},
		{"production memory", Config{Env: "production", Provider: ProviderMemory}, "PROVIDER=slack"},
		{"production without directory", Config{Env: "production", Provider: ProviderSlack, SlackWorldToken: "x"}, "DATABASE_URL"},
		{"production without admin key", Config{Env: "production", Provider: ProviderSlack, SlackWorldToken: "x", DirectoryFile: "d.yaml"}, "ADMIN_KEY_HASH"},
		{"production complete", Config{Env: "production", Provider: ProviderSlack, SlackWorldToken: "x", DatabaseURL: "postgres://", AdminKeyHash: "$2a$"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadPanicsOnInvalidProduction(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("PROVIDER", ProviderMemory)
	assert.Panics(t, func() { Load() })
}
