package calendar

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rental-calendar/backend/internal/log"
	"github.com/rental-calendar/backend/internal/storage/models"
)

// Outcome messages for links that were not synced.
const (
	MsgIntervalNotMet = "Interval not met"
	MsgNoHandler      = "No handler found"
)

// LinkStore lists import links and records their fetch results.
type LinkStore interface {
	FetchStatusRecorder
	ListActive(ctx context.Context) ([]models.ImportLink, error)
}

// ProgressFunc receives each link's outcome as soon as it is known.
// It is called synchronously, in link order, from the running sync.
type ProgressFunc func(current, total int, outcome models.SyncOutcome)

// Orchestrator runs every active import link through its partner.
type Orchestrator struct {
	links    LinkStore
	partners Registry
	settings PartnerSettings
	now      func() time.Time

	// flight keeps a scheduled run and a manual run from syncing the same
	// link at the same time.
	flight singleflight.Group
}

// NewOrchestrator creates a sync orchestrator.
func NewOrchestrator(links LinkStore, partners Registry, settings PartnerSettings) *Orchestrator {
	return &Orchestrator{
		links:    links,
		partners: partners,
		settings: settings,
		now:      time.Now,
	}
}

// Partners returns the registered partner names.
func (o *Orchestrator) Partners() []string {
	return o.partners.Names()
}

// RunAll syncs the active links one at a time, in listed order. Unless
// force is set, links fetched within their partner's recheck interval are
// skipped. A failing link yields an error outcome and does not stop the
// run. Cancellation is checked between links; on cancel the outcomes so
// far are returned with ctx.Err().
func (o *Orchestrator) RunAll(ctx context.Context, force bool, sink ProgressFunc) ([]models.SyncOutcome, error) {
	links, err := o.links.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing active links: %w", err)
	}

	outcomes := make([]models.SyncOutcome, 0, len(links))
	for i, link := range links {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		outcome := o.syncLink(ctx, link, force)
		outcomes = append(outcomes, outcome)
		if sink != nil {
			sink(i+1, len(links), outcome)
		}
	}

	return outcomes, nil
}

// Stream runs RunAll in the background and delivers progress on the
// returned channel, which is closed when the run ends. A consumer that
// stops reading must cancel ctx.
func (o *Orchestrator) Stream(ctx context.Context, force bool) <-chan models.SyncProgress {
	ch := make(chan models.SyncProgress)
	go func() {
		defer close(ch)
		_, err := o.RunAll(ctx, force, func(current, total int, outcome models.SyncOutcome) {
			select {
			case ch <- models.SyncProgress{Current: current, Total: total, Outcome: outcome}:
			case <-ctx.Done():
			}
		})
		if err != nil {
			log.Error("sync run ended early", err)
		}
	}()
	return ch
}

// NeedsSync reports whether any active link is due for a fetch.
func (o *Orchestrator) NeedsSync(ctx context.Context) (bool, error) {
	links, err := o.links.ListActive(ctx)
	if err != nil {
		return false, fmt.Errorf("listing active links: %w", err)
	}
	for _, link := range links {
		if o.due(link) {
			return true, nil
		}
	}
	return false, nil
}

func (o *Orchestrator) due(link models.ImportLink) bool {
	if !link.LastFetchAt.Valid {
		return true
	}
	next := link.LastFetchAt.Time.Add(o.settings.RecheckInterval(link.PartnerName))
	return !o.now().Before(next)
}

func (o *Orchestrator) syncLink(ctx context.Context, link models.ImportLink, force bool) models.SyncOutcome {
	outcome := models.SyncOutcome{
		PropertyID:   link.PropertyID,
		PropertyName: link.PropertyName,
		Partner:      link.PartnerName,
	}

	if !force && !o.due(link) {
		outcome.Status = models.SyncStatusSkipped
		outcome.Message = MsgIntervalNotMet
		return outcome
	}

	partner, ok := o.partners.Lookup(link.PartnerName)
	if !ok {
		outcome.Status = models.SyncStatusSkipped
		outcome.Message = MsgNoHandler
		return outcome
	}

	v, err, shared := o.flight.Do(link.Key(), func() (any, error) {
		return partner.Sync(ctx, link)
	})
	if shared {
		log.Debug("joined in-flight sync", "property", link.PropertyID, "partner", link.PartnerName)
	}
	if err != nil {
		log.Error("link sync failed", err, "property", link.PropertyID, "partner", link.PartnerName)
		outcome.Status = models.SyncStatusError
		outcome.Message = err.Error()
		return outcome
	}

	stats := v.(models.SyncStats)
	outcome.Status = models.SyncStatusSuccess
	outcome.Stats = &stats
	return outcome
}

// Summarize tallies outcomes by status.
func Summarize(outcomes []models.SyncOutcome) models.SyncSummary {
	s := models.SyncSummary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.Status {
		case models.SyncStatusSuccess:
			s.Success++
		case models.SyncStatusError:
			s.Errors++
		case models.SyncStatusSkipped:
			s.Skipped++
		}
	}
	return s
}
