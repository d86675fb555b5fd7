package main

import (
	"fmt"

	"github.com/rental-calendar/backend/internal/calendar"
	"github.com/rental-calendar/backend/internal/config"
	"github.com/rental-calendar/backend/internal/log"
	"github.com/rental-calendar/backend/internal/storage"
)

// app holds the components shared by serve and sync.
type app struct {
	live         *config.Live
	db           *storage.DB
	links        *storage.LinkRepository
	reservations *storage.ReservationRepository
	orchestrator *calendar.Orchestrator
}

// bootstrap loads configuration, sets up logging, opens and migrates the
// database and builds the sync orchestrator.
func bootstrap() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.ApplyEnv()
	if addrFlag != "" {
		cfg.Listen = addrFlag
	}
	if dataFlag != "" {
		cfg.DataDir = dataFlag
	}

	log.Setup(log.ParseLevel(cfg.Log.Level), log.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	db, err := storage.NewDB(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	applied, err := storage.RunMigrations(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	if len(applied) > 0 {
		log.Info("database migrations applied", "count", len(applied))
	}

	live := config.NewLive(configPath, cfg)
	links := storage.NewLinkRepository(db)
	reservations := storage.NewReservationRepository(db)
	fetcher := calendar.NewHTTPFetcher(cfg.Sync.FetchTimeout, cfg.Sync.UserAgent)

	var partners []calendar.Partner
	for _, rules := range cfg.FeedRules() {
		partners = append(partners, calendar.NewReconciler(rules, fetcher, reservations, links, live))
	}

	return &app{
		live:         live,
		db:           db,
		links:        links,
		reservations: reservations,
		orchestrator: calendar.NewOrchestrator(links, calendar.NewRegistry(partners...), live),
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		log.Error("closing database", err)
	}
	log.Close()
}
