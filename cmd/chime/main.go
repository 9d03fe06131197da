package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rowanhale/chime/internal/database"
	"github.com/rowanhale/chime/internal/logging"
	"github.com/rowanhale/chime/internal/push"
	"github.com/rowanhale/chime/internal/server"
	"github.com/rowanhale/chime/internal/storage"
)

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := logging.Setup(os.Getenv("CHIME_LOG_LEVEL"))

	port := env("CHIME_PORT", "8080")
	dbPath := env("CHIME_DB_PATH", "chime.db")
	baseURL := env("CHIME_BASE_URL", "http://localhost:"+port)

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("open database", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cfg := server.Config{
		BaseURL:    baseURL,
		SweepToken: os.Getenv("CHIME_SWEEP_TOKEN"),
		Push: push.Config{
			Subject:         env("CHIME_VAPID_SUBJECT", "mailto:admin@localhost"),
			VAPIDPublicKey:  os.Getenv("CHIME_VAPID_PUBLIC_KEY"),
			VAPIDPrivateKey: os.Getenv("CHIME_VAPID_PRIVATE_KEY"),
		},
		Storage: storage.Config{
			Endpoint:  os.Getenv("CHIME_S3_ENDPOINT"),
			Bucket:    os.Getenv("CHIME_S3_BUCKET"),
			Region:    env("CHIME_S3_REGION", "us-east-1"),
			AccessKey: os.Getenv("CHIME_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("CHIME_S3_SECRET_KEY"),
		},
	}

	if !cfg.Push.Enabled() {
		logger.Warn("VAPID keys not configured, push notifications disabled")
	}

	srv := server.New(db, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sweeper := srv.Sweeper(); sweeper != nil {
		sweeper.Start(ctx)
		defer sweeper.Stop()
	}

	// Hourly cleanup of expired sessions and stale rate-limit buckets
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("session cleanup", "error", err)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("chime listening", "addr", httpServer.Addr, "base_url", baseURL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
