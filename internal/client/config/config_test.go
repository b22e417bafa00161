package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8080", c.APIBaseURL)
	assert.Equal(t, "fleet.db", c.DatabasePath)
	assert.Equal(t, 3*time.Second, c.OnlineCheckInterval)

	assert.True(t, c.PaymentAlertsEnabled)
	assert.True(t, c.LicenseAlertsEnabled)
	assert.Equal(t, 10, c.PaymentDelayDays)
	assert.Equal(t, float64(10000), c.OilChangeKm)
	assert.Equal(t, 30, c.LicenseWarnDays)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "http://127.0.0.1:8080", cfg.APIBaseURL)
	assert.Equal(t, 3*time.Second, cfg.OnlineCheckInterval)
}
