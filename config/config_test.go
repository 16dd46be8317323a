package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("WHATSAPP_BATCH_SIZE", "")
	cfg := Load()

	assert.Equal(t, "2121", cfg.Port)
	assert.Equal(t, "972", cfg.Phone.CountryCode)
	assert.Equal(t, 7, cfg.Phone.MinDigits)
	assert.Equal(t, 5, cfg.Session.MaxReconnectAttempts)
	assert.Equal(t, 10, cfg.Dispatch.BatchSize)
	assert.Equal(t, 5*time.Minute, cfg.Dispatch.BatchDelay)
	assert.Equal(t, int64(10<<20), cfg.MediaMaxBytes)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("WHATSAPP_BATCH_SIZE", "25")
	t.Setenv("WHATSAPP_BATCH_DELAY", "300000")
	t.Setenv("WHATSAPP_MESSAGE_DELAY", "2s")
	t.Setenv("WHATSAPP_LOGOUT_ON_SHUTDOWN", "false")
	t.Setenv("CORS_ALLOW_ORIGINS", "http://a.test, ,http://b.test")
	t.Setenv("PHONE_DEFAULT_COUNTRY_CODE", "62")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 25, cfg.Dispatch.BatchSize)
	assert.Equal(t, 5*time.Minute, cfg.Dispatch.BatchDelay)
	assert.Equal(t, 2*time.Second, cfg.Dispatch.MessageDelay)
	assert.False(t, cfg.Session.LogoutOnClose)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowOrigins)
	assert.Equal(t, "62", cfg.Phone.CountryCode)
}

func TestGetEnvDurationFallback(t *testing.T) {
	t.Setenv("SOME_DELAY", "soon")
	assert.Equal(t, time.Second, getEnvDuration("SOME_DELAY", time.Second))
}
