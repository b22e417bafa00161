// Package app wires the FleetSync client together: local database, remote
// store client, sync services and the online-status watcher.
package app

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/mkravets/fleetsync/internal/client/alerts"
	"github.com/mkravets/fleetsync/internal/client/config"
	"github.com/mkravets/fleetsync/internal/client/remote"
	"github.com/mkravets/fleetsync/internal/client/services"
	"github.com/mkravets/fleetsync/internal/logging"
	"github.com/mkravets/fleetsync/internal/netx"
)

const pingTimeout = 3 * time.Second

type App struct {
	config *config.Config
	log    logging.Logger

	repos  *Repositories
	store  *remote.HTTPStore
	Fleet  *services.Fleet
	Photos *services.Photos
}

// NewApp builds the full client from configuration.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	repos, err := InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	store := remote.NewHTTPStore(cfg.APIBaseURL)
	queue := services.NewOfflineQueue(repos.Events, log)
	fleet := services.NewFleet(store, queue, repos.SyncState, alertConfig(cfg), log)
	photos := services.NewPhotos(repos.Blobs, store, netx.UploadPresigned, log)

	if err := fleet.LoadAlertReadState(ctx); err != nil {
		_ = repos.Close()
		return nil, err
	}

	return &App{
		config: cfg,
		log:    log.With("component", "app"),
		repos:  repos,
		store:  store,
		Fleet:  fleet,
		Photos: photos,
	}, nil
}

// SetTokens hands fresh auth tokens to the remote client.
func (a *App) SetTokens(accessToken, refreshToken string) {
	a.store.SetTokens(accessToken, refreshToken)
}

// Close releases the local database.
func (a *App) Close() error { return a.repos.Close() }

// Run starts the online-status watcher and blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) {
	a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)
}

// StartOnlineStatusWatcher polls remote reachability on a ticker. Every
// probe updates the Fleet's online flag; a probe that finds the remote
// reachable also drains the offline queue and pushes staged photo uploads,
// so queued work flows out as soon as connectivity returns.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) probe(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := a.store.Ping(pingCtx)
	cancel()

	wasOnline := a.Fleet.Online()
	online := err == nil
	a.Fleet.SetOnline(online)

	switch {
	case online && !wasOnline:
		a.log.Info(ctx, "remote store reachable, switching online")
	case !online && wasOnline:
		a.log.Warn(ctx, "remote store unreachable, switching offline", "error", err)
	}

	if !online {
		return
	}

	res, err := a.Fleet.DrainQueue(ctx)
	if err != nil {
		a.log.Error(ctx, "queue drain failed", "error", err)
	} else if res.Applied > 0 {
		a.log.Info(ctx, "queued events replayed", "applied", res.Applied, "remaining", res.Remaining)
	}

	if n, err := a.Photos.UploadPending(ctx); err != nil {
		a.log.Error(ctx, "photo upload pass failed", "error", err)
	} else if n > 0 {
		a.log.Info(ctx, "staged photos uploaded", "count", n)
	}
}

func alertConfig(cfg *config.Config) alerts.Config {
	return alerts.Config{
		PaymentDelayEnabled: cfg.PaymentAlertsEnabled,
		TripDataEnabled:     cfg.TripDataAlertsEnabled,
		MaintenanceEnabled:  cfg.MaintenanceAlertsEnabled,
		LicenseEnabled:      cfg.LicenseAlertsEnabled,
		PaymentDelayDays:    cfg.PaymentDelayDays,
		DefaultOilChangeKm:  cfg.OilChangeKm,
		LicenseWarnDays:     cfg.LicenseWarnDays,
	}
}
