//	@title			Stagebox API
//	@version		1.0
//	@description	Relay for staged browser uploads into S3-compatible object storage.
//
//	@host		localhost:8080
//	@BasePath	/api
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**. Required only when JWT_SECRET is set.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stagebox/service/internal/config"
	"github.com/stagebox/service/internal/db"
	"github.com/stagebox/service/internal/logging"
	"github.com/stagebox/service/internal/relay"
	"github.com/stagebox/service/internal/storage"

	_ "github.com/stagebox/service/docs/swagger"
)

func main() {
	cfg := config.Load()
	logger := logging.New(os.Stderr, cfg.AppEnv, cfg.LogLevel)
	if !cfg.EnvFileLoaded {
		logger.Debug("no .env file found, using process environment")
	}

	ctx := context.Background()

	var ledger relay.Ledger
	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("database connection failed", "err", err)
		}
		defer pool.Close()

		if err := db.Migrate(cfg.DatabaseURL, logger); err != nil {
			logger.Fatal("database migration failed", "err", err)
		}
		ledger = relay.NewRepository(pool)
	} else {
		logger.Warn("DATABASE_URL not set, upload ledger disabled")
	}

	store, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("object storage init failed", "driver", cfg.Storage.Driver, "err", err)
	}

	// Wire dependencies: repository → service → handler
	relaySvc := relay.NewService(store, ledger, logger, relay.Options{
		Prefix:   cfg.StoragePrefix,
		MaxFiles: cfg.UploadMaxFiles,
	})
	relayHandler := relay.NewHandler(relaySvc, cfg.UploadMaxMemory, cfg.UploadMaxBytes)

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, upload API is unauthenticated")
	}

	srv := newServer(cfg, newRouter(cfg, relayHandler, logger))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server listening", "addr", srv.Addr, "env", cfg.AppEnv)
		logger.Infof("swagger UI at http://localhost:%s/swagger/", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", "err", err)
		}
	}()

	<-quit
	logger.Info("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", "err", err)
		return
	}

	logger.Info("server stopped")
}
