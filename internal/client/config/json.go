package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/mkravets/fleetsync/internal/flagx"
	"github.com/mkravets/fleetsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "3s"
// or as integer nanoseconds. Pointer fields distinguish "absent" from
// zero-valued so the JSON layer only overrides what it actually sets.
type JsonConfig struct {
	APIBaseURL          string          `json:"api_base_url"`
	DatabasePath        string          `json:"database_path"`
	OnlineCheckInterval *timex.Duration `json:"online_check_interval"`

	PaymentAlertsEnabled     *bool    `json:"payment_alerts_enabled"`
	TripDataAlertsEnabled    *bool    `json:"trip_data_alerts_enabled"`
	MaintenanceAlertsEnabled *bool    `json:"maintenance_alerts_enabled"`
	LicenseAlertsEnabled     *bool    `json:"license_alerts_enabled"`
	PaymentDelayDays         *int     `json:"payment_delay_days"`
	OilChangeKm              *float64 `json:"oil_change_km"`
	LicenseWarnDays          *int     `json:"license_warn_days"`
}

// parseJson overlays Config with values loaded from a JSON file. The file
// path comes from the -c or -config flags; if neither is present, no JSON is
// loaded. Read or unmarshal errors panic (the process has no useful way to
// continue with half a config).
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.APIBaseURL != "" {
		cfg.APIBaseURL = jc.APIBaseURL
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.OnlineCheckInterval != nil {
		cfg.OnlineCheckInterval = time.Duration(jc.OnlineCheckInterval.Duration)
	}
	if jc.PaymentAlertsEnabled != nil {
		cfg.PaymentAlertsEnabled = *jc.PaymentAlertsEnabled
	}
	if jc.TripDataAlertsEnabled != nil {
		cfg.TripDataAlertsEnabled = *jc.TripDataAlertsEnabled
	}
	if jc.MaintenanceAlertsEnabled != nil {
		cfg.MaintenanceAlertsEnabled = *jc.MaintenanceAlertsEnabled
	}
	if jc.LicenseAlertsEnabled != nil {
		cfg.LicenseAlertsEnabled = *jc.LicenseAlertsEnabled
	}
	if jc.PaymentDelayDays != nil {
		cfg.PaymentDelayDays = *jc.PaymentDelayDays
	}
	if jc.OilChangeKm != nil {
		cfg.OilChangeKm = *jc.OilChangeKm
	}
	if jc.LicenseWarnDays != nil {
		cfg.LicenseWarnDays = *jc.LicenseWarnDays
	}
}
