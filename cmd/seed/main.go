package main

import (
	"context"
	"flag"
	"time"

	"smarthub/internal/config"
	"smarthub/internal/database"
	"smarthub/internal/logger"
	"smarthub/internal/repository"
	"smarthub/internal/search"
	"smarthub/internal/seed"
)

var (
	demo        = flag.Bool("demo", true, "Load the demo catalog")
	reindex     = flag.Bool("reindex", true, "Index all events in Elasticsearch when it is enabled")
	migrateOnly = flag.Bool("migrate-only", false, "Create the schema and exit")
)

func main() {
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}
	if *migrateOnly {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ledger := repository.NewPostgresLedger(db)
	res, err := seed.Run(ctx, ledger, seed.Options{
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
		Demo:          *demo,
	})
	if err != nil {
		logger.Fatal("Failed to seed database", "error", err)
	}
	log.Info("Seed completed", "users", res.Users, "events", res.Events,
		"facilities", res.Facilities, "parking_lots", res.ParkingLots)

	if !*reindex || !cfg.SearchEnabled {
		return
	}

	es, err := search.NewElasticsearchClient(cfg.Elasticsearch)
	if err != nil {
		logger.Fatal("Failed to connect to Elasticsearch", "error", err)
	}

	events, err := ledger.Events().List(ctx)
	if err != nil {
		logger.Fatal("Failed to list events", "error", err)
	}
	for i := range events {
		if err := es.IndexEvent(ctx, &events[i]); err != nil {
			logger.Fatal("Failed to index event", "event_id", events[i].ID, "error", err)
		}
	}
	log.Info("Indexed events", "count", len(events))
}
