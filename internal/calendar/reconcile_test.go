package calendar

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rental-calendar/backend/internal/storage"
	"github.com/rental-calendar/backend/internal/storage/models"
)

const feedURL = "https://www.airbnb.com/calendar/ical/123.ics?s=token"

type reconcileFixture struct {
	reconciler   *Reconciler
	fetcher      *fakeFetcher
	reservations *storage.ReservationRepository
	links        *storage.LinkRepository
	link         models.ImportLink
}

func newReconcileFixture(t *testing.T) *reconcileFixture {
	t.Helper()
	db, err := storage.NewDB(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = storage.RunMigrations(db)
	require.NoError(t, err)

	ctx := context.Background()
	property := &models.Property{Name: "Beach House", Timezone: "UTC"}
	require.NoError(t, storage.NewPropertyRepository(db).Create(ctx, property))

	links := storage.NewLinkRepository(db)
	link := &models.ImportLink{PropertyID: property.ID, PartnerName: AirbnbName, URL: feedURL, Active: true}
	require.NoError(t, links.Create(ctx, link))
	link.PropertyTimezone = property.Timezone

	fetcher := &fakeFetcher{}
	reservations := storage.NewReservationRepository(db)
	r := NewReconciler(AirbnbRules(), fetcher, reservations, links, staticSettings{retention: 30})
	r.now = fixedClock("2026-10-18T09:00:00Z")

	return &reconcileFixture{
		reconciler:   r,
		fetcher:      fetcher,
		reservations: reservations,
		links:        links,
		link:         *link,
	}
}

func (f *reconcileFixture) get(t *testing.T, uid string) *models.Reservation {
	t.Helper()
	res, err := f.reservations.GetByExternalUID(context.Background(), f.link.PropertyID, AirbnbName, uid)
	require.NoError(t, err)
	return res
}

func TestReconcile_SentinelSummaryIsSkipped(t *testing.T) {
	f := newReconcileFixture(t)
	f.fetcher.set(feedURL, feed(vevent("X1", "20250601", "20250605", "Airbnb (Not available)")))

	stats, err := f.reconciler.Reconcile(context.Background(), f.link)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Added)
	assert.Nil(t, f.get(t, "X1"))
}

func TestReconcile_LabelFromReservationURL(t *testing.T) {
	f := newReconcileFixture(t)
	f.fetcher.set(feedURL, feed(vevent("X1", "20261101", "20261105",
		"Reservation URL: https://www.airbnb.com/hosting/reservations/details/ABC123")))

	stats, err := f.reconciler.Reconcile(context.Background(), f.link)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Added)

	res := f.get(t, "X1")
	require.NotNil(t, res)
	assert.Equal(t, "ABC123", res.Name)
	assert.Equal(t, "Reservation URL: https://www.airbnb.com/hosting/reservations/details/ABC123", res.Description.String)
	assert.Equal(t, models.SourceSyncPartner, res.Source)
	assert.Equal(t, models.ReservationConfirmed, res.Status)
	assert.True(t, res.StartDate.Equal(civil("2026-11-01")))
	assert.True(t, res.EndDate.Equal(civil("2026-11-05")))
}

func TestReconcile_LabelFallsBackToSummary(t *testing.T) {
	f := newReconcileFixture(t)
	long := strings.Repeat("é", 250)
	f.fetcher.set(feedURL, feed(
		vevent("plain", "20261101", "20261103", "  Blocked by owner  "),
		vevent("long", "20261110", "20261112", long),
	))

	_, err := f.reconciler.Reconcile(context.Background(), f.link)
	require.NoError(t, err)

	plain := f.get(t, "plain")
	assert.Equal(t, "Blocked by owner", plain.Name)
	assert.False(t, plain.Description.Valid)
	assert.Equal(t, strings.Repeat("é", 200), f.get(t, "long").Name)
}

func TestReconcile_MissingEndUsesStart(t *testing.T) {
	f := newReconcileFixture(t)
	f.fetcher.set(feedURL, feed("BEGIN:VEVENT\r\nUID:single\r\nDTSTART:20261201T150000Z\r\nSUMMARY:Reserved\r\nEND:VEVENT\r\n"))

	_, err := f.reconciler.Reconcile(context.Background(), f.link)
	require.NoError(t, err)

	res := f.get(t, "single")
	require.NotNil(t, res)
	assert.True(t, res.EndDate.Equal(civil("2026-12-01")))
}

func TestReconcile_InvalidEventsAreSkipped(t *testing.T) {
	f := newReconcileFixture(t)
	f.fetcher.set(feedURL, feed(
		"BEGIN:VEVENT\r\nSUMMARY:no uid\r\nDTSTART;VALUE=DATE:20261101\r\nEND:VEVENT\r\n",
		"BEGIN:VEVENT\r\nUID:no-start\r\nSUMMARY:Reserved\r\nEND:VEVENT\r\n",
		vevent("bad-date", "2026-11-01", "2026-11-03", "Reserved"),
		vevent("ok", "20261101", "20261103", "Reserved"),
	))

	stats, err := f.reconciler.Reconcile(context.Background(), f.link)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStats{Added: 1, Skipped: 3}, stats)
}

func TestReconcile_IsIdempotent(t *testing.T) {
	f := newReconcileFixture(t)
	f.fetcher.set(feedURL, feed(
		vevent("A", "20261101", "20261105", "Reserved"),
		vevent("B", "20261110", "20261112", "Reserved"),
	))
	ctx := context.Background()

	first, err := f.reconciler.Reconcile(ctx, f.link)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Added)

	second, err := f.reconciler.Reconcile(ctx, f.link)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStats{Skipped: 2}, second)
}

func TestReconcile_ChangedEventIsUpdated(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()

	f.fetcher.set(feedURL, feed(vevent("A", "20261101", "20261105", "Reserved")))
	_, err := f.reconciler.Reconcile(ctx, f.link)
	require.NoError(t, err)

	f.fetcher.set(feedURL, feed(vevent("A", "20261101", "20261107", "Reserved")))
	stats, err := f.reconciler.Reconcile(ctx, f.link)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Updated)
	assert.True(t, f.get(t, "A").EndDate.Equal(civil("2026-11-07")))
}

func TestReconcile_RetentionPolicy(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()
	keep := vevent("keep", "20261201", "20261205", "Reserved")

	f.fetcher.set(feedURL, feed(
		keep,
		vevent("future", "20261101", "20261105", "Reserved"),
		vevent("past", "20261001", "20261010", "Reserved"),
	))
	_, err := f.reconciler.Reconcile(ctx, f.link)
	require.NoError(t, err)

	// Both disappear from the feed.
	f.fetcher.set(feedURL, feed(keep))
	stats, err := f.reconciler.Reconcile(ctx, f.link)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Deleted)
	assert.Equal(t, 1, stats.Orphaned)
	assert.Nil(t, f.get(t, "future"))
	past := f.get(t, "past")
	require.NotNil(t, past)
	assert.True(t, past.Orphaned)

	// Still within 30 days of its end: stays orphaned, not re-counted.
	stats, err = f.reconciler.Reconcile(ctx, f.link)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStats{Skipped: 1}, stats)

	// Past the retention window.
	f.reconciler.now = fixedClock("2026-11-20T09:00:00Z")
	stats, err = f.reconciler.Reconcile(ctx, f.link)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Deleted)
	assert.Nil(t, f.get(t, "past"))
	assert.NotNil(t, f.get(t, "keep"))
}

func TestReconcile_ReappearingEventClearsOrphan(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()
	past := vevent("past", "20261001", "20261010", "Reserved")

	f.fetcher.set(feedURL, feed(past))
	_, err := f.reconciler.Reconcile(ctx, f.link)
	require.NoError(t, err)

	f.fetcher.set(feedURL, feed(vevent("other", "20261201", "20261202", "Reserved")))
	_, err = f.reconciler.Reconcile(ctx, f.link)
	require.NoError(t, err)
	require.True(t, f.get(t, "past").Orphaned)

	f.fetcher.set(feedURL, feed(past))
	stats, err := f.reconciler.Reconcile(ctx, f.link)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Skipped)
	assert.False(t, f.get(t, "past").Orphaned)
}

func TestSync_RecordsFetchStatus(t *testing.T) {
	f := newReconcileFixture(t)
	ctx := context.Background()

	_, err := f.reconciler.Sync(ctx, f.link)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 404, fetchErr.StatusCode)
	assert.NotContains(t, err.Error(), "token")

	links, err := f.links.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.True(t, strings.HasPrefix(links[0].LastFetchStatus.String, "error: "))
	assert.LessOrEqual(t, len(links[0].LastFetchStatus.String), 50)

	f.fetcher.set(feedURL, feed(vevent("A", "20261101", "20261105", "Reserved")))
	_, err = f.reconciler.Sync(ctx, f.link)
	require.NoError(t, err)

	links, err = f.links.ListActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SyncStatusSuccess, links[0].LastFetchStatus.String)
	assert.True(t, links[0].LastFetchAt.Valid)
}

// failingStore fails Create for one UID.
type failingStore struct {
	ReservationStore
	failUID string
}

func (s *failingStore) Create(ctx context.Context, res *models.Reservation) error {
	if res.ExternalUID.String == s.failUID {
		return errors.New("disk full")
	}
	return s.ReservationStore.Create(ctx, res)
}

func TestReconcile_EventStoreErrorsAreCounted(t *testing.T) {
	f := newReconcileFixture(t)
	f.reconciler.store = &failingStore{ReservationStore: f.reservations, failUID: "bad"}
	f.fetcher.set(feedURL, feed(
		vevent("bad", "20261101", "20261105", "Reserved"),
		vevent("good", "20261110", "20261112", "Reserved"),
	))

	stats, err := f.reconciler.Reconcile(context.Background(), f.link)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 1, stats.Added)
	assert.NotNil(t, f.get(t, "good"))
}
