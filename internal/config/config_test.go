package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresServiceAccount(t *testing.T) {
	t.Setenv("FIREBASE_SERVICE_ACCOUNT", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FIREBASE_SERVICE_ACCOUNT")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FIREBASE_SERVICE_ACCOUNT", `{"client_email":"svc@example.com"}`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://oauth2.googleapis.com/token", cfg.TokenEndpoint)
	assert.Equal(t, "https://fcm.googleapis.com", cfg.FCMEndpoint)
	assert.Equal(t, "admin_fcm_token", cfg.AdminTokenSettingKey)
	assert.True(t, cfg.TokenCacheEnabled)
	assert.Equal(t, 0.9, cfg.TokenRefreshRatio)
	assert.Equal(t, 5*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FIREBASE_SERVICE_ACCOUNT", `{}`)
	t.Setenv("TOKEN_CACHE_ENABLED", "false")
	t.Setenv("PROVIDER_TIMEOUT", "2s")
	t.Setenv("WORKER_COUNT", "not-a-number")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.TokenCacheEnabled)
	assert.Equal(t, 2*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 2, cfg.WorkerCount)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
}

func TestLoadRejectsBadRefreshRatio(t *testing.T) {
	t.Setenv("FIREBASE_SERVICE_ACCOUNT", `{}`)
	t.Setenv("TOKEN_REFRESH_RATIO", "1.5")

	_, err := Load()
	assert.ErrorContains(t, err, "TOKEN_REFRESH_RATIO")
}
