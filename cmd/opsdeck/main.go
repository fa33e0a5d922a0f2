package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opsdeck/opsdeck/internal/auth"
	"github.com/opsdeck/opsdeck/internal/backup"
	"github.com/opsdeck/opsdeck/internal/database"
	"github.com/opsdeck/opsdeck/internal/logging"
	"github.com/opsdeck/opsdeck/internal/server"
)

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := logging.Setup(env("OPSDECK_LOG_LEVEL", "info"), os.Getenv("OPSDECK_LOG_FORMAT"))

	port := env("OPSDECK_PORT", "8080")
	dbPath := env("OPSDECK_DB_PATH", "opsdeck.db")

	secret := os.Getenv("OPSDECK_JWT_SECRET")
	tokens, err := auth.NewTokenManager(secret, 12*time.Hour)
	if err != nil {
		log.Fatalf("token manager: %v", err)
	}

	db, err := database.Open(dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	backupCfg := backup.Config{
		S3: backup.S3Config{
			Endpoint:  os.Getenv("OPSDECK_S3_ENDPOINT"),
			Bucket:    os.Getenv("OPSDECK_S3_BUCKET"),
			Region:    env("OPSDECK_S3_REGION", "us-east-1"),
			AccessKey: os.Getenv("OPSDECK_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("OPSDECK_S3_SECRET_KEY"),
		},
		Passphrase: os.Getenv("OPSDECK_BACKUP_PASSPHRASE"),
	}
	if n, err := time.ParseDuration(env("OPSDECK_BACKUP_INTERVAL", "0")); err == nil {
		backupCfg.Interval = n
	}
	if c := os.Getenv("OPSDECK_BACKUP_RETENTION"); c != "" {
		fmt.Sscanf(c, "%d", &backupCfg.RetentionCount)
	}

	srv := server.New(db, tokens, backupCfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv.BackupManager().Start(ctx)
	defer srv.BackupManager().Stop()

	// Periodic rate limiter cleanup
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
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
		logger.Info("opsdeck listening", "port", port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown error: %v", err)
	}
}
