package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"blitzmap-server/internal/blitzortung"
	"blitzmap-server/internal/config"
	"blitzmap-server/internal/db"
	"blitzmap-server/internal/hass"
	"blitzmap-server/internal/httpapi"
	"blitzmap-server/internal/mapprofile"
	"blitzmap-server/internal/migrate"
	lightning "blitzmap-server/internal/modules/lightning"
	"blitzmap-server/internal/modules/lightning/repository"
	"blitzmap-server/internal/modules/lightning/service"
	"blitzmap-server/internal/mqtt"
	"blitzmap-server/internal/render"
)

func Run(ctx context.Context, cfg config.Config, version string) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"storageDir", cfg.StorageDir,
		"sqliteDriver", cfg.SQLiteDriver,
		"sqlitePath", cfg.SQLitePath,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttDiscoveryPrefix", cfg.MQTTDiscoveryPrefix,
		"mqttBaseTopic", cfg.MQTTBaseTopic,
		"mapProfile", cfg.MapProfile,
		"fetchInterval", cfg.FetchInterval,
	)

	logger := slog.Default()

	dbConn, err := db.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	if err := migrate.Run(dbConn); err != nil {
		return err
	}

	profile, err := mapprofile.Lookup(cfg.MapProfile)
	if err != nil {
		return err
	}

	// An operator-supplied background map is picked up when present; the
	// generated graticule map is the fallback.
	renderer, err := render.New(profile, time.Local, filepath.Join(cfg.StorageDir, "background.png"))
	if err != nil {
		return err
	}

	defaults := repository.SettingsDefaults(cfg)
	strikesRepo := repository.NewStrikeRepository(dbConn)
	settingsRepo := repository.NewSettingsRepository(dbConn, defaults)

	feed := blitzortung.New(cfg.Username, cfg.Password, profile, logger)

	// Bad credentials are a configuration error and fatal; a flaky network
	// is not, the update loop retries every cycle anyway.
	testCtx, testCancel := context.WithTimeout(ctx, 15*time.Second)
	err = feed.TestConnection(testCtx)
	testCancel()
	switch {
	case errors.Is(err, blitzortung.ErrAuthentication):
		return err
	case err != nil:
		slog.Warn("feed connection test failed (continuing)", "error", err)
	default:
		slog.Info("feed connection test successful")
	}

	mqttClient := mqtt.NewClient(cfg, logger)
	hassService := hass.NewService(cfg, mqttClient, logger, version)

	store := service.NewFrameStore(filepath.Join(cfg.StorageDir, "frames"), logger)
	svc := service.New(service.Options{
		Feed:      feed,
		Strikes:   strikesRepo,
		Settings:  settingsRepo,
		Renderer:  renderer,
		Store:     store,
		Publisher: hassService,
		Logger:    logger,
		Interval:  cfg.FetchInterval,
	})

	// Subscriptions are registered before Connect so queued commands are
	// delivered right after CONNACK.
	if err := hassService.SubscribeCommands(svc); err != nil {
		return err
	}

	// Short timeout for the initial connect so startup is not blocked when
	// the broker is down; the client keeps retrying in the background.
	connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
	err = mqttClient.Connect(connectCtx)
	connectCancel()
	if err != nil {
		slog.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
	} else {
		if err := hassService.PublishDiscovery(); err != nil {
			slog.Warn("discovery publish failed", "error", err)
		}
		if settings, err := settingsRepo.Load(); err == nil {
			hassService.PublishSettings(settings)
		} else {
			slog.Warn("initial settings publish failed", "error", err)
		}
	}

	mux := httpapi.NewMux(dbConn)
	lightning.RegisterFeature(mux, svc, strikesRepo)

	loopCtx, loopCancel := context.WithCancel(ctx)
	defer loopCancel()
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		svc.Run(loopCtx)
	}()

	srv := httpapi.NewServer(cfg, mux)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	slog.Info("stopping update loop")
	loopCancel()
	select {
	case <-loopDone:
	case <-shutdownCtx.Done():
		slog.Warn("update loop did not stop in time")
	}

	slog.Info("mqtt disconnecting")
	mqttClient.Disconnect()

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
