package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rental-calendar/backend/internal/log"
	"github.com/rental-calendar/backend/internal/storage/models"
)

// DefaultSchedule is how often the scheduler starts a sync run. Each link
// is still throttled by its partner's recheck interval.
const DefaultSchedule = "@every 5m"

// ProgressReporter publishes sync progress to connected clients.
type ProgressReporter interface {
	SyncProgress(p models.SyncProgress)
	SyncCompleted(summary models.SyncSummary)
	SyncFailed(err error)
}

// Scheduler runs the orchestrator periodically and on demand.
type Scheduler struct {
	cron         *cron.Cron
	orchestrator *Orchestrator
	reporter     ProgressReporter

	mu      sync.Mutex
	entry   cron.EntryID
	spec    string
	stopped bool
	baseCtx context.Context
	cancel  context.CancelFunc

	// runs tracks manual syncs, which cron does not wait for.
	runs sync.WaitGroup
}

// NewScheduler creates a scheduler. reporter may be nil.
func NewScheduler(orchestrator *Orchestrator, reporter ProgressReporter, spec string) *Scheduler {
	if spec == "" {
		spec = DefaultSchedule
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		// A scheduled run that is still going when the next tick fires is skipped.
		cron:         cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
		orchestrator: orchestrator,
		reporter:     reporter,
		spec:         spec,
		baseCtx:      ctx,
		cancel:       cancel,
	}
}

// Start registers the periodic job and starts the cron loop.
func (s *Scheduler) Start() error {
	if err := s.Reschedule(s.spec); err != nil {
		return err
	}
	s.cron.Start()
	log.Info("sync scheduler started", "schedule", s.spec)
	return nil
}

// Stop cancels any running sync between links and waits for scheduled and
// triggered runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.runs.Wait()
	log.Info("sync scheduler stopped")
}

// Reschedule replaces the periodic job's schedule.
func (s *Scheduler) Reschedule(spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.cron.AddFunc(spec, func() { s.run(false) })
	if err != nil {
		return fmt.Errorf("scheduling sync %q: %w", spec, err)
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.entry = entry
	if spec != s.spec {
		log.Info("sync schedule changed", "from", s.spec, "to", spec)
	}
	s.spec = spec
	return nil
}

// TriggerSync starts a run in the background. It does nothing once the
// scheduler is stopped.
func (s *Scheduler) TriggerSync(force bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		log.Warn("sync trigger ignored; scheduler stopped")
		return
	}

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		s.run(force)
	}()
}

// NextRun returns when the periodic job fires next.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entry == 0 {
		return nil
	}
	next := s.cron.Entry(s.entry).Next
	if next.IsZero() {
		return nil
	}
	return &next
}

func (s *Scheduler) run(force bool) {
	var sink ProgressFunc
	if s.reporter != nil {
		sink = func(current, total int, outcome models.SyncOutcome) {
			s.reporter.SyncProgress(models.SyncProgress{Current: current, Total: total, Outcome: outcome})
		}
	}

	outcomes, err := s.orchestrator.RunAll(s.baseCtx, force, sink)
	if err != nil {
		log.Error("sync run failed", err)
		if s.reporter != nil {
			s.reporter.SyncFailed(err)
		}
		return
	}

	summary := Summarize(outcomes)
	log.Info("sync run completed", "total", summary.Total, "success", summary.Success,
		"errors", summary.Errors, "skipped", summary.Skipped)
	if s.reporter != nil {
		s.reporter.SyncCompleted(summary)
	}
}
