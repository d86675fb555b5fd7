package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rental-calendar/backend/internal/api"
	"github.com/rental-calendar/backend/internal/calendar"
	"github.com/rental-calendar/backend/internal/config"
	"github.com/rental-calendar/backend/internal/log"
	"github.com/rental-calendar/backend/internal/websocket"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server and the periodic sync",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	cfg := a.live.Get()
	log.Info("starting rental calendar", "version", resolveVersion(), "listen", cfg.Listen, "data", cfg.DataDir)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub()
	go hub.Run(ctx)
	broadcaster := websocket.NewEventBroadcaster(hub)

	scheduler := calendar.NewScheduler(a.orchestrator, broadcaster, cfg.Sync.Schedule)
	broadcaster.SetNextRun(scheduler.NextRun)
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	go func() {
		err := a.live.Watch(ctx, func(next *config.Config) {
			if err := scheduler.Reschedule(next.Sync.Schedule); err != nil {
				log.Error("applying sync schedule", err)
			}
			broadcaster.ConfigChanged()
		})
		if err != nil {
			log.Error("config watcher stopped", err)
		}
	}()

	svc := api.NewServices(a.db)
	svc.Orchestrator = a.orchestrator
	svc.Scheduler = scheduler
	svc.Config = a.live
	svc.Hub = hub
	svc.Broadcaster = broadcaster
	svc.Version = resolveVersion()

	server := &http.Server{
		Addr:        cfg.Listen,
		Handler:     api.NewRouter(svc),
		ReadTimeout: 15 * time.Second,
		// No write timeout: the sync progress stream stays open for the
		// whole run.
		IdleTimeout: 60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Listen)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			scheduler.Stop()
			return fmt.Errorf("server error: %w", err)
		}
	}

	log.Info("shutting down server")
	scheduler.Stop()

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	<-hub.Done()
	log.Info("server stopped")
	return nil
}

// exitOnSignal is used by one-shot commands so a second interrupt aborts
// immediately.
func exitOnSignal(cancel context.CancelFunc) {
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
		<-sig
		os.Exit(130)
	}()
}
