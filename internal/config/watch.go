package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rental-calendar/backend/internal/log"
)

// reloadDelay coalesces the burst of events editors produce on save.
const reloadDelay = 250 * time.Millisecond

// Live holds the current configuration and swaps it when the file changes.
// It is safe for concurrent use.
type Live struct {
	path    string
	current atomic.Pointer[Config]
}

// NewLive wraps an already loaded configuration read from path.
func NewLive(path string, cfg *Config) *Live {
	l := &Live{path: path}
	l.current.Store(cfg)
	return l
}

// Path is the file the configuration is read from.
func (l *Live) Path() string {
	return l.path
}

// Get returns the current configuration. Callers must not modify it.
func (l *Live) Get() *Config {
	return l.current.Load()
}

// RecheckInterval is the minimum time between fetches of a partner's feeds.
func (l *Live) RecheckInterval(partner string) time.Duration {
	return time.Duration(l.Get().Partner(partner).RecheckInterval) * time.Second
}

// RetentionDays is how long orphaned past reservations of a partner are kept.
func (l *Live) RetentionDays(partner string) int {
	return l.Get().Partner(partner).KeepDeletedReservationsFor
}

// Reload rereads the file. On error the current configuration is kept.
func (l *Live) Reload() (*Config, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	// Address and data directory only take effect at startup.
	prev := l.Get()
	cfg.Listen = prev.Listen
	cfg.DataDir = prev.DataDir

	l.current.Store(cfg)
	return cfg, nil
}

// Watch reloads the configuration whenever the file is written or replaced
// and calls onChange with the new value. It blocks until ctx is cancelled.
// The parent directory is watched so atomic renames are seen.
func (l *Live) Watch(ctx context.Context, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	target := filepath.Clean(l.path)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDelay)
			} else {
				timer.Reset(reloadDelay)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			cfg, err := l.Reload()
			if err != nil {
				log.Error("config reload failed; keeping previous settings", err, "path", l.path)
				continue
			}
			log.Info("config reloaded", "path", l.path)
			if onChange != nil {
				onChange(cfg)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", "error", err)
		}
	}
}
