package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"API_URL", "API_TOKEN", "API_TIMEOUT", "COMMIT_CLEAR_DELAY", "READ_WORKERS", "SERVER_PORT", "CORS_ORIGINS", "SESSION_TTL", "UNITS_SHEET", "UNITS_FROM_API", "GOOGLE_SHEET_URL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:3000/api", cfg.APIURL)
	assert.Equal(t, 10*time.Second, cfg.APITimeout)
	assert.Equal(t, 2*time.Second, cfg.CommitClearDelay)
	assert.Equal(t, 8, cfg.ReadWorkers)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.False(t, cfg.UnitsFromAPI)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("API_URL", "https://api.adonel.example/api")
	t.Setenv("API_TIMEOUT", "30s")
	t.Setenv("COMMIT_CLEAR_DELAY", "200")
	t.Setenv("CORS_ORIGINS", "http://localhost:5173, https://painel.adonel.example")
	t.Setenv("UNITS_FROM_API", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.adonel.example/api", cfg.APIURL)
	assert.Equal(t, 30*time.Second, cfg.APITimeout)
	assert.Equal(t, 200*time.Millisecond, cfg.CommitClearDelay)
	assert.Equal(t, []string{"http://localhost:5173", "https://painel.adonel.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.UnitsFromAPI)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Run("relative api url", func(t *testing.T) {
		t.Setenv("API_URL", "/api")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("API_TIMEOUT", "soon")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("units sheet without spreadsheet", func(t *testing.T) {
		t.Setenv("GOOGLE_SHEET_URL", "")
		t.Setenv("UNITS_SHEET", "Unidades")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("bad boolean", func(t *testing.T) {
		t.Setenv("UNITS_FROM_API", "talvez")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("port out of range", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "70000")
		_, err := Load()
		assert.Error(t, err)
	})
}
