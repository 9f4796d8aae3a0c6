package bootstrap

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mmk-ui-web/config"
)

// loadTestConfig parses the environment from an empty working directory so a
// developer's .env never leaks into tests.
func loadTestConfig(t *testing.T, env map[string]string) config.AppConfig {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("NODE_ENV", "")
	for k, v := range env {
		t.Setenv(k, v)
	}
	cfg, err := LoadConfig()
	require.NoError(t, err)
	return cfg
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := loadTestConfig(t, map[string]string{"NUXT_API_URL": "https://backend.example.com"})

	assert.Equal(t, config.AuthModeJWT, cfg.Auth.Mode)
	assert.Equal(t, "/api/", cfg.API.Prefix)
	assert.Equal(t, "/login", cfg.Auth.Redirects.Login)
	assert.Equal(t, "auth_token", cfg.Auth.TokenCookie)
	assert.False(t, cfg.IsDev)
	assert.NoError(t, ValidateConfig(&cfg))
}

func TestLoadConfig_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("NUXT_API_URL=https://dotenv.example.com\n"), 0o600))
	// godotenv never overrides variables that are already set.
	t.Setenv("NUXT_API_URL", "")
	require.NoError(t, os.Unsetenv("NUXT_API_URL"))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://dotenv.example.com", cfg.API.URL)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.AppConfig)
		wantErr string
	}{
		{name: "valid"},
		{name: "missing api url", mutate: func(c *config.AppConfig) { c.API.URL = "" }, wantErr: "NUXT_API_URL"},
		{name: "mock outside dev", mutate: func(c *config.AppConfig) { c.Auth.Mode = config.AuthModeMock }, wantErr: "DEV=true"},
		{name: "mock in dev", mutate: func(c *config.AppConfig) { c.Auth.Mode, c.IsDev = config.AuthModeMock, true }},
		{name: "oauth without discovery", mutate: func(c *config.AppConfig) { c.Auth.Mode = config.AuthModeOAuth }, wantErr: "OAUTH_DISCOVERY_URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.AppConfig{API: config.APIConfig{URL: "https://backend.example.com", Prefix: "/api/"}}
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			err := ValidateConfig(&cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
	assert.Error(t, ValidateConfig(nil))
}

func TestSetDebug(t *testing.T) {
	t.Cleanup(func() { SetDebug(false) })

	SetDebug(true)
	assert.Equal(t, slog.LevelDebug, logLevel.Level())
	SetDebug(false)
	assert.Equal(t, slog.LevelInfo, logLevel.Level())
}
