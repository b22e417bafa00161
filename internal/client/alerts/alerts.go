// Package alerts derives the notification feed from the entity graph.
//
// Compute is a pure function of (trips, vehicles, drivers, config, now): the
// full feed is recomputed on every relevant state change, never maintained
// incrementally. Alert ids are deterministic functions of the rule kind and
// the source entity, so the read flag of a previously seen alert survives
// recomputation via PreserveRead.
package alerts

import (
	"fmt"
	"time"

	"github.com/mkravets/fleetsync/internal/client/models"
)

// maintenanceWarnRatio fires the maintenance rule once 90% of the service
// interval has been driven.
const maintenanceWarnRatio = 0.9

// dateLayout is the form trip and license dates are entered in. Malformed
// values skip only that record's alert.
const dateLayout = "2006-01-02"

// Config is an immutable snapshot of the alerting configuration. Each rule is
// independently toggleable.
type Config struct {
	PaymentDelayEnabled bool
	TripDataEnabled     bool
	MaintenanceEnabled  bool
	LicenseEnabled      bool

	// PaymentDelayDays is how many days after the return date an unpaid
	// trip becomes overdue.
	PaymentDelayDays int

	// DefaultOilChangeKm applies to vehicles without a configured interval.
	DefaultOilChangeKm float64

	// LicenseWarnDays is the expiring-soon window.
	LicenseWarnDays int
}

// DefaultConfig returns the engine defaults with every rule enabled.
func DefaultConfig() Config {
	return Config{
		PaymentDelayEnabled: true,
		TripDataEnabled:     true,
		MaintenanceEnabled:  true,
		LicenseEnabled:      true,
		PaymentDelayDays:    10,
		DefaultOilChangeKm:  10000,
		LicenseWarnDays:     30,
	}
}

// ID builds the deterministic alert id for a rule kind and source entity.
func ID(kind models.AlertKind, entityID string) string {
	return fmt.Sprintf("%s:%s", kind, entityID)
}

// LicenseID builds the id for a license alert; the subtype keeps "expired"
// and "expiring soon" distinct while the precedence rule guarantees at most
// one of them exists per driver at a time.
func LicenseID(subtype, driverID string) string {
	return fmt.Sprintf("%s:%s:%s", models.AlertLicense, subtype, driverID)
}

// Compute derives the complete notification set. It is deterministic given
// identical inputs and a fixed now, and has no failure mode: records with
// malformed dates simply produce no alert.
func Compute(trips []models.Trip, vehicles []models.Vehicle, drivers []models.Driver, cfg Config, now time.Time) []models.Alert {
	var out []models.Alert

	if cfg.PaymentDelayEnabled {
		out = append(out, paymentDelayAlerts(trips, cfg, now)...)
	}
	if cfg.TripDataEnabled {
		out = append(out, tripDataAlerts(trips, now)...)
	}
	if cfg.MaintenanceEnabled {
		out = append(out, maintenanceAlerts(vehicles, cfg, now)...)
	}
	if cfg.LicenseEnabled {
		out = append(out, licenseAlerts(drivers, cfg, now)...)
	}

	return out
}

func paymentDelayAlerts(trips []models.Trip, cfg Config, now time.Time) []models.Alert {
	var out []models.Alert
	for _, trip := range trips {
		if trip.PaymentStatus == models.PaymentStatusPaid || trip.ReturnDate == "" {
			continue
		}
		returned, err := time.Parse(dateLayout, trip.ReturnDate)
		if err != nil {
			continue
		}
		days := int(now.Sub(returned).Hours() / 24)
		if days < cfg.PaymentDelayDays {
			continue
		}
		id := trip.Identity().Value()
		out = append(out, models.Alert{
			ID:              ID(models.AlertPaymentDelay, id),
			Kind:            models.AlertPaymentDelay,
			Title:           "Payment overdue",
			Message:         fmt.Sprintf("Trip %s to %s returned %d days ago and is not fully paid", trip.Origin, trip.Destination, days),
			Timestamp:       now,
			RelatedEntityID: id,
		})
	}
	return out
}

func tripDataAlerts(trips []models.Trip, now time.Time) []models.Alert {
	var out []models.Alert
	for _, trip := range trips {
		if trip.DistanceKm > 0 && trip.FuelCost > 0 {
			continue
		}
		id := trip.Identity().Value()
		out = append(out, models.Alert{
			ID:              ID(models.AlertIncompleteData, id),
			Kind:            models.AlertIncompleteData,
			Title:           "Incomplete trip data",
			Message:         fmt.Sprintf("Trip %s to %s is missing distance or fuel cost", trip.Origin, trip.Destination),
			Timestamp:       now,
			RelatedEntityID: id,
		})
	}
	return out
}

func maintenanceAlerts(vehicles []models.Vehicle, cfg Config, now time.Time) []models.Alert {
	var out []models.Alert
	for _, v := range vehicles {
		interval := v.OilChangeKm
		if interval <= 0 {
			interval = cfg.DefaultOilChangeKm
		}
		driven := v.TotalKm - v.LastMaintenanceKm
		if driven < maintenanceWarnRatio*interval {
			continue
		}
		id := v.Identity().Value()
		out = append(out, models.Alert{
			ID:              ID(models.AlertMaintenance, id),
			Kind:            models.AlertMaintenance,
			Title:           "Maintenance due",
			Message:         fmt.Sprintf("Vehicle %s has driven %.0f km since the last oil change (interval %.0f km)", v.Plate, driven, interval),
			Timestamp:       now,
			RelatedEntityID: id,
		})
	}
	return out
}

func licenseAlerts(drivers []models.Driver, cfg Config, now time.Time) []models.Alert {
	var out []models.Alert
	for _, d := range drivers {
		if d.CNHValidity == "" {
			continue
		}
		expiry, err := time.Parse(dateLayout, d.CNHValidity)
		if err != nil {
			continue
		}
		id := d.Identity().Value()

		// expired takes precedence: once expired, the expiring-soon rule
		// must not also fire
		if expiry.Before(now) {
			out = append(out, models.Alert{
				ID:              LicenseID("expired", id),
				Kind:            models.AlertLicense,
				Title:           "License expired",
				Message:         fmt.Sprintf("License of %s expired on %s", d.Name, d.CNHValidity),
				Timestamp:       now,
				RelatedEntityID: id,
			})
			continue
		}
		if expiry.Sub(now) <= time.Duration(cfg.LicenseWarnDays)*24*time.Hour {
			out = append(out, models.Alert{
				ID:              LicenseID("expiring_soon", id),
				Kind:            models.AlertLicense,
				Title:           "License expiring soon",
				Message:         fmt.Sprintf("License of %s expires on %s", d.Name, d.CNHValidity),
				Timestamp:       now,
				RelatedEntityID: id,
			})
		}
	}
	return out
}

// PreserveRead carries Read=true forward from a previous feed onto the
// recomputed one, matched by alert id. Ids that disappeared take their read
// state with them.
func PreserveRead(previous, next []models.Alert) []models.Alert {
	if len(previous) == 0 {
		return next
	}
	read := make(map[string]bool, len(previous))
	for _, a := range previous {
		if a.Read {
			read[a.ID] = true
		}
	}
	for i := range next {
		if read[next[i].ID] {
			next[i].Read = true
		}
	}
	return next
}
