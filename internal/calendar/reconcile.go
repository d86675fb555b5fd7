package calendar

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/rental-calendar/backend/internal/log"
	"github.com/rental-calendar/backend/internal/storage/models"
)

// ReservationStore is the persistence the reconciler needs.
type ReservationStore interface {
	GetByExternalUID(ctx context.Context, propertyID int64, partner, uid string) (*models.Reservation, error)
	Create(ctx context.Context, res *models.Reservation) error
	ApplyFeedChange(ctx context.Context, id int64, change models.FeedChange) error
	MarkVerified(ctx context.Context, id int64) error
	ReconcileMissing(ctx context.Context, propertyID int64, partner string, seen map[string]struct{}, today time.Time, retentionDays int) (models.MissingResult, error)
}

// FetchStatusRecorder records the result of the latest fetch of a link.
type FetchStatusRecorder interface {
	UpdateFetchStatus(ctx context.Context, propertyID int64, partner, status string) error
}

// PartnerSettings supplies per-partner tuning.
type PartnerSettings interface {
	RecheckInterval(partner string) time.Duration
	RetentionDays(partner string) int
}

// Reconciler imports one partner's feed into the reservation store. It
// implements Partner.
type Reconciler struct {
	rules    FeedRules
	fetcher  FeedFetcher
	store    ReservationStore
	status   FetchStatusRecorder
	settings PartnerSettings
	now      func() time.Time
}

// NewReconciler creates a reconciler for the partner described by rules.
func NewReconciler(
	rules FeedRules,
	fetcher FeedFetcher,
	store ReservationStore,
	status FetchStatusRecorder,
	settings PartnerSettings,
) *Reconciler {
	return &Reconciler{
		rules:    rules,
		fetcher:  fetcher,
		store:    store,
		status:   status,
		settings: settings,
		now:      time.Now,
	}
}

// Name returns the partner name.
func (r *Reconciler) Name() string {
	return r.rules.Name
}

// Sync reconciles the link's feed and records the outcome on the link.
func (r *Reconciler) Sync(ctx context.Context, link models.ImportLink) (models.SyncStats, error) {
	stats, err := r.Reconcile(ctx, link)

	status := models.SyncStatusSuccess
	if err != nil {
		status = "error: " + err.Error()
	}
	if serr := r.status.UpdateFetchStatus(ctx, link.PropertyID, r.rules.Name, status); serr != nil {
		log.Error("recording fetch status", serr, "property", link.PropertyID, "partner", r.rules.Name)
	}

	return stats, err
}

// Reconcile fetches and parses the feed, applies every event to the store
// and then runs the retention pass over reservations missing from the feed.
func (r *Reconciler) Reconcile(ctx context.Context, link models.ImportLink) (models.SyncStats, error) {
	var stats models.SyncStats

	raw, err := r.fetcher.Fetch(ctx, link.URL)
	if err != nil {
		return stats, err
	}

	seen := make(map[string]struct{})
	for ev := range Parse(string(raw)) {
		r.processEvent(ctx, link.PropertyID, ev, seen, &stats)
	}

	today := civilDate(r.now(), models.LoadLocation(link.PropertyTimezone))
	missing, err := r.store.ReconcileMissing(ctx, link.PropertyID, r.rules.Name, seen, today, r.settings.RetentionDays(r.rules.Name))
	if err != nil {
		return stats, &StoreError{Op: "reconciling missing reservations", Err: err}
	}
	stats.Deleted += missing.Deleted
	stats.Orphaned += missing.Orphaned

	log.Info("feed reconciled",
		"property", link.PropertyID, "partner", r.rules.Name,
		"added", stats.Added, "updated", stats.Updated, "skipped", stats.Skipped,
		"deleted", stats.Deleted, "orphaned", stats.Orphaned, "errors", stats.Errors)

	return stats, nil
}

// feedItem is an event that passed validation.
type feedItem struct {
	uid   string
	start time.Time
	end   time.Time
	label string
	desc  null.String
}

func (r *Reconciler) normalize(ev models.CalendarEvent) (feedItem, bool) {
	if ev.UID == "" || ev.Start == "" || r.rules.isSentinel(ev.Summary) {
		return feedItem{}, false
	}

	start, err := ParseDateMarker(ev.Start)
	if err != nil {
		return feedItem{}, false
	}
	end := start
	if ev.End != "" {
		if end, err = ParseDateMarker(ev.End); err != nil {
			return feedItem{}, false
		}
	}

	label, desc := r.rules.Label(ev)
	return feedItem{uid: ev.UID, start: start, end: end, label: label, desc: desc}, true
}

// processEvent applies one event. Store failures are counted and logged so
// the remaining events still get processed.
func (r *Reconciler) processEvent(ctx context.Context, propertyID int64, ev models.CalendarEvent, seen map[string]struct{}, stats *models.SyncStats) {
	item, ok := r.normalize(ev)
	if !ok {
		stats.Skipped++
		return
	}
	seen[item.uid] = struct{}{}

	existing, err := r.store.GetByExternalUID(ctx, propertyID, r.rules.Name, item.uid)
	if err != nil {
		r.eventFailed(err, propertyID, item.uid, stats)
		return
	}

	if existing == nil {
		res := &models.Reservation{
			PropertyID:  propertyID,
			Source:      models.SourceSyncPartner,
			PartnerName: null.StringFrom(r.rules.Name),
			ExternalUID: null.StringFrom(item.uid),
			Status:      models.ReservationConfirmed,
			Name:        item.label,
			Description: item.desc,
			StartDate:   item.start,
			StartTime:   models.StartTimeStandard,
			EndDate:     item.end,
			EndTime:     models.EndTimeStandard,
		}
		if err := r.store.Create(ctx, res); err != nil {
			r.eventFailed(err, propertyID, item.uid, stats)
			return
		}
		stats.Added++
		return
	}

	change := models.FeedChange{StartDate: item.start, EndDate: item.end, Name: item.label, Description: item.desc}
	if change.Differs(existing) {
		if err := r.store.ApplyFeedChange(ctx, existing.ID, change); err != nil {
			r.eventFailed(err, propertyID, item.uid, stats)
			return
		}
		stats.Updated++
		return
	}

	if err := r.store.MarkVerified(ctx, existing.ID); err != nil {
		r.eventFailed(err, propertyID, item.uid, stats)
		return
	}
	stats.Skipped++
}

func (r *Reconciler) eventFailed(err error, propertyID int64, uid string, stats *models.SyncStats) {
	stats.Errors++
	log.Error("applying feed event", err, "property", propertyID, "partner", r.rules.Name, "uid", uid)
}

// civilDate returns the calendar date of t in loc, at midnight UTC.
func civilDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
