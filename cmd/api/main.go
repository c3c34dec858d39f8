package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"adcraft/internal/adapter/repo"
	"adcraft/internal/http/handlers"
	"adcraft/internal/http/httpapi"
	"adcraft/internal/infra"
	"adcraft/internal/infra/geoip"
	"adcraft/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()

	objects, err := newObjectStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: storage configuration failed")
	}
	results := storage.NewResultStore(objects)

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("api: geoip disabled")
	}

	analytics := repo.NewAnalyticsRepository(pool)
	app := handlers.NewApp(repo.NewJobRepository(pool), results, analytics, logger)

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:         logger,
		AllowedOrigins: cfg.AllowedOrigins,
		ServiceToken:   cfg.ServiceToken,
		DefaultLocale:  cfg.DefaultLocale,
		RateLimit:      cfg.RateLimitPerMin,
		Analytics:      analytics,
		GeoIP:          resolver,
	})

	server := infra.NewHTTPServer(cfg, router)
	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api: http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: shutdown failed")
	}
	logger.Info().Msg("api: stopped")
}

// newObjectStore prefers S3-compatible storage; without an endpoint it falls
// back to the local filesystem for development.
func newObjectStore(ctx context.Context, cfg *infra.Config, logger infra.Logger) (storage.ObjectStore, error) {
	client, err := infra.NewMinioClient(cfg)
	if err != nil {
		return nil, err
	}
	if client != nil {
		store := storage.NewS3Store(client, cfg.S3Bucket, cfg.S3Region)
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	}
	logger.Warn().Str("path", cfg.StoragePath).Msg("no S3 endpoint configured, using filesystem storage")
	return storage.NewFileStore(cfg.StoragePath)
}
