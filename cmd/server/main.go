package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/ewaste-pickup/internal/bins"
	"github.com/example/ewaste-pickup/internal/config"
	"github.com/example/ewaste-pickup/internal/geocode"
	httpapi "github.com/example/ewaste-pickup/internal/http"
	"github.com/example/ewaste-pickup/internal/logging"
	"github.com/example/ewaste-pickup/internal/notify"
	"github.com/example/ewaste-pickup/internal/requests"
	"github.com/example/ewaste-pickup/internal/route"
)

func main() {
	cfg, err := config.Load()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	nominatim := geocode.NewClient(cfg.GeocoderBaseURL)
	nominatim.SearchLimit = cfg.SearchLimit
	nominatim.MinQueryLen = cfg.MinQueryLen

	var cacheStore geocode.Store
	if cfg.RedisAddr != "" {
		cacheStore = geocode.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.GeocodeCacheTTL)
		logger.Info("geocode cache backed by redis", "addr", cfg.RedisAddr)
	} else {
		cacheStore = geocode.NewMemoryStore(cfg.GeocodeCacheTTL)
	}
	geocoder := geocode.NewCached(nominatim, cacheStore)

	var notifier notify.Notifier = notify.Nop{}
	if cfg.NotifyWebhookURL != "" {
		notifier = notify.NewWebhook(cfg.NotifyWebhookURL, logger)
		logger.Info("decision webhook enabled", "endpoint", cfg.NotifyWebhookURL)
	}

	srv := httpapi.NewServer(httpapi.Deps{
		Logger:         logger,
		Geocoder:       geocoder,
		Position:       geocode.NoPosition(),
		Optimizer:      route.WithFallback(route.NewClient(cfg.RouteBaseURL)),
		Store:          requests.NewStore(cfg.BackendBaseURL, logger),
		Bins:           bins.NewClient(cfg.BackendBaseURL, logger),
		Profiles:       httpapi.NewBackendProfiles(cfg.BackendBaseURL),
		Notifier:       notifier,
		BackendBaseURL: cfg.BackendBaseURL,
	})

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(cfg.AllowedOrigins),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("gateway listening", "addr", cfg.HTTPAddr, "backend", cfg.BackendBaseURL)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown incomplete", "error", err)
	}
	logger.Info("gateway stopped")
}
