package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smarthub/internal/api"
	"smarthub/internal/config"
	"smarthub/internal/logger"
	"smarthub/internal/seed"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	server, err := api.NewServer(cfg)
	if err != nil {
		logger.Fatal("Failed to create server", "error", err)
	}

	if cfg.SeedDemo || cfg.StorageDriver == config.StorageDriverMemory {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		res, err := seed.Run(ctx, server.Ledger(), seed.Options{
			AdminEmail:    cfg.AdminEmail,
			AdminPassword: cfg.AdminPassword,
			Demo:          true,
		})
		if err == nil {
			err = server.IndexEvents(ctx)
		}
		cancel()
		if err != nil {
			logger.Fatal("Failed to seed data", "error", err)
		}
		log.Info("Seeded data", "users", res.Users, "events", res.Events,
			"facilities", res.Facilities, "parking_lots", res.ParkingLots)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Router(),
	}

	go func() {
		log.Info("Starting server", "port", cfg.Port, "storage", cfg.StorageDriver, "mail", cfg.Mail.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := server.Cleanup(); err != nil {
		log.Error("Error during cleanup", "error", err)
	}

	log.Info("Server stopped")
}
