package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{EnvRelayURL, EnvIdentity, EnvLogLevel, EnvPort, EnvLogJSON, EnvStompMinutes, EnvKothMinutes, EnvAllowedOrigins} {
		t.Setenv(k, "")
	}

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "persisted", cfg.Identity)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Nil(t, cfg.AllowedOrigins)
	assert.ErrorIs(t, cfg.RequireRelay(), ErrMissingRelay)
}

func TestLoadDotEnv(t *testing.T) {
	for _, k := range []string{EnvRelayURL, EnvKothMinutes, EnvLogJSON, EnvAllowedOrigins} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	path := filepath.Join(t.TempDir(), ".env")
	content := "TOWER_RELAY_URL=ws://localhost:8080/ws\nTOWER_KOTH_MINUTES=4\nTOWER_LOG_JSON=true\nTOWER_ALLOWED_ORIGINS=http://a.test, http://b.test\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws", cfg.RelayURL)
	assert.Equal(t, 4, cfg.KothMinutes)
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.NoError(t, cfg.RequireRelay())
}

func TestLoadBadNumber(t *testing.T) {
	t.Setenv(EnvStompMinutes, "three")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.ErrorContains(t, err, EnvStompMinutes)
}
