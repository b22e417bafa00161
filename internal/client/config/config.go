// Package config loads runtime settings for the FleetSync client.
package config

import "time"

// Config holds runtime settings for the FleetSync client.
//
// Alert thresholds are copied into an immutable alerts.Config snapshot when
// the notification feed is recomputed; the engine never reads this struct
// directly.
type Config struct {
	// APIBaseURL is the base URL of the hosted remote store.
	APIBaseURL string

	// DatabasePath is the path of the local SQLite database file.
	DatabasePath string

	// OnlineCheckInterval is how often the client probes remote
	// reachability. Each probe that flips the client back online triggers a
	// drain of the offline event queue.
	OnlineCheckInterval time.Duration

	// Alert rule toggles and thresholds.
	PaymentAlertsEnabled     bool
	TripDataAlertsEnabled    bool
	MaintenanceAlertsEnabled bool
	LicenseAlertsEnabled     bool
	PaymentDelayDays         int
	OilChangeKm              float64
	LicenseWarnDays          int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:8080"
	c.DatabasePath = "fleet.db"
	c.OnlineCheckInterval = 3 * time.Second

	c.PaymentAlertsEnabled = true
	c.TripDataAlertsEnabled = true
	c.MaintenanceAlertsEnabled = true
	c.LicenseAlertsEnabled = true
	c.PaymentDelayDays = 10
	c.OilChangeKm = 10000
	c.LicenseWarnDays = 30
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
