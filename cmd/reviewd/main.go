// Command reviewd serves the operator approval surface.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"contentpipe/internal/httpapi"
	"contentpipe/internal/infra"
	"contentpipe/internal/infra/geoip"
	"contentpipe/internal/storage"
	"contentpipe/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv).With().Str("cmd", "reviewd").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("reviewd: db connection failed")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	fileStore, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("reviewd: failed to configure storage")
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("reviewd: geoip unavailable")
	}

	app := httpapi.NewApp(postgres.NewContentStore(runner), fileStore, resolver, logger)
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, cfg.RateLimitPerMin))

	go func() {
		logger.Info().Str("addr", server.Addr()).Msg("reviewd: listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("reviewd: server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("reviewd: shutdown failed")
	}
	logger.Info().Msg("reviewd: stopped")
}
