package storage

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/rental-calendar/backend/internal/storage/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = RunMigrations(db)
	require.NoError(t, err)
	return db
}

func date(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func createProperty(t *testing.T, db *DB, name string) *models.Property {
	t.Helper()
	p := &models.Property{Name: name, Timezone: "Europe/Lisbon"}
	require.NoError(t, NewPropertyRepository(db).Create(context.Background(), p))
	return p
}

func partnerReservation(propertyID int64, uid, start, end string) *models.Reservation {
	return &models.Reservation{
		PropertyID:  propertyID,
		Source:      models.SourceSyncPartner,
		PartnerName: null.StringFrom("AirBNB"),
		ExternalUID: null.StringFrom(uid),
		Name:        uid,
		StartDate:   date(start),
		EndDate:     date(end),
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	db := newTestDB(t)

	ran, err := RunMigrations(db)
	require.NoError(t, err)
	assert.Empty(t, ran)

	version, err := SchemaVersion(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations(fstest.MapFS{
		"migrations/010_later.sql":  {Data: []byte("SELECT 10;")},
		"migrations/002_second.sql": {Data: []byte("SELECT 2;")},
		"migrations/notes.txt":      {Data: []byte("ignored")},
	})
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 2, migrations[0].version)
	assert.Equal(t, "010_later.sql", migrations[1].name)
	assert.Equal(t, "SELECT 10;", migrations[1].sql)

	_, err = loadMigrations(fstest.MapFS{"migrations/initial.sql": {Data: []byte("SELECT 1;")}})
	assert.ErrorContains(t, err, "positive version number")

	_, err = loadMigrations(fstest.MapFS{
		"migrations/001_a.sql": {Data: []byte("SELECT 1;")},
		"migrations/1_b.sql":   {Data: []byte("SELECT 1;")},
	})
	assert.ErrorContains(t, err, "share version 1")
}

func TestTransactionRollsBack(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	err := db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO properties (name, timezone, export_guid, created_at) VALUES ('x', 'UTC', 'g', ?)`, time.Now()); err != nil {
			return err
		}
		return errors.New("abort")
	})
	assert.EqualError(t, err, "abort")

	assert.Panics(t, func() {
		db.Transaction(ctx, func(tx *sql.Tx) error {
			tx.ExecContext(ctx, `INSERT INTO properties (name, timezone, export_guid, created_at) VALUES ('y', 'UTC', 'h', ?)`, time.Now())
			panic("boom")
		})
	})

	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM properties`).Scan(&count))
	assert.Zero(t, count)
}

func TestPropertyRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewPropertyRepository(db)
	ctx := context.Background()

	p := createProperty(t, db, "Beach House")
	assert.NotZero(t, p.ID)
	assert.Len(t, p.ExportGUID, 36)

	got, err := repo.GetByExportGUID(ctx, p.ExportGUID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Beach House", got.Name)
	assert.Equal(t, "Europe/Lisbon", got.Timezone)

	missing, err := repo.GetByExportGUID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestReservationRepository_CreateAndLookup(t *testing.T) {
	db := newTestDB(t)
	repo := NewReservationRepository(db)
	ctx := context.Background()
	p := createProperty(t, db, "Cabin")

	res := partnerReservation(p.ID, "uid-1", "2026-11-01", "2026-11-05")
	require.NoError(t, repo.Create(ctx, res))
	assert.NotEmpty(t, res.ExportUID)

	got, err := repo.GetByExternalUID(ctx, p.ID, "AirBNB", "uid-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, res.ID, got.ID)
	assert.True(t, got.StartDate.Equal(date("2026-11-01")))
	assert.True(t, got.EndDate.Equal(date("2026-11-05")))
	assert.Equal(t, models.ReservationConfirmed, got.Status)
	assert.True(t, got.LastVerifiedAt.Valid)

	other, err := repo.GetByExternalUID(ctx, p.ID, "Vrbo", "uid-1")
	require.NoError(t, err)
	assert.Nil(t, other)
}

func TestReservationRepository_ExternalUIDUniquePerPartner(t *testing.T) {
	db := newTestDB(t)
	repo := NewReservationRepository(db)
	ctx := context.Background()
	p := createProperty(t, db, "Cabin")

	require.NoError(t, repo.Create(ctx, partnerReservation(p.ID, "dup", "2026-11-01", "2026-11-02")))
	assert.Error(t, repo.Create(ctx, partnerReservation(p.ID, "dup", "2026-11-03", "2026-11-04")))
}

func TestReservationRepository_ApplyFeedChangeClearsOrphan(t *testing.T) {
	db := newTestDB(t)
	repo := NewReservationRepository(db)
	ctx := context.Background()
	p := createProperty(t, db, "Cabin")

	res := partnerReservation(p.ID, "uid-1", "2026-10-01", "2026-10-05")
	require.NoError(t, repo.Create(ctx, res))
	require.NoError(t, setOrphaned(ctx, db, res.ID, true))

	err := repo.ApplyFeedChange(ctx, res.ID, models.FeedChange{
		StartDate:   date("2026-10-02"),
		EndDate:     date("2026-10-06"),
		Name:        "HM123",
		Description: null.StringFrom("Reservation URL: x"),
	})
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.False(t, got.Orphaned)
	assert.Equal(t, "HM123", got.Name)
	assert.True(t, got.StartDate.Equal(date("2026-10-02")))
	assert.Equal(t, "Reservation URL: x", got.Description.String)
}

func TestReservationRepository_ReconcileMissing(t *testing.T) {
	db := newTestDB(t)
	repo := NewReservationRepository(db)
	ctx := context.Background()
	p := createProperty(t, db, "Cabin")
	today := date("2026-10-18")

	fixtures := map[string]*models.Reservation{
		"seen-orphan":   partnerReservation(p.ID, "seen-orphan", "2026-09-01", "2026-09-05"),
		"future":        partnerReservation(p.ID, "future", "2026-11-01", "2026-11-05"),
		"ongoing":       partnerReservation(p.ID, "ongoing", "2026-10-15", "2026-10-20"),
		"ends-today":    partnerReservation(p.ID, "ends-today", "2026-10-14", "2026-10-18"),
		"recent-past":   partnerReservation(p.ID, "recent-past", "2026-10-01", "2026-10-10"),
		"already-orph":  partnerReservation(p.ID, "already-orph", "2026-10-01", "2026-10-03"),
		"expired":       partnerReservation(p.ID, "expired", "2026-08-01", "2026-08-05"),
		"other-partner": partnerReservation(p.ID, "other-partner", "2026-11-01", "2026-11-05"),
	}
	fixtures["other-partner"].PartnerName = null.StringFrom("Vrbo")
	for _, res := range fixtures {
		require.NoError(t, repo.Create(ctx, res))
	}
	require.NoError(t, setOrphaned(ctx, db, fixtures["seen-orphan"].ID, true))
	require.NoError(t, setOrphaned(ctx, db, fixtures["already-orph"].ID, true))

	internal := &models.Reservation{
		PropertyID: p.ID, Source: models.SourceInternal, Name: "Owner stay",
		StartDate: date("2026-11-10"), EndDate: date("2026-11-12"),
	}
	require.NoError(t, repo.Create(ctx, internal))

	seen := map[string]struct{}{"seen-orphan": {}}
	result, err := repo.ReconcileMissing(ctx, p.ID, "AirBNB", seen, today, 30)
	require.NoError(t, err)
	assert.Equal(t, models.MissingResult{Deleted: 4, Orphaned: 1}, result)

	exists := func(key string) *models.Reservation {
		got, err := repo.GetByID(ctx, fixtures[key].ID)
		require.NoError(t, err)
		return got
	}

	assert.False(t, exists("seen-orphan").Orphaned)
	assert.Nil(t, exists("future"))
	assert.Nil(t, exists("ongoing"))
	assert.Nil(t, exists("ends-today"))
	assert.True(t, exists("recent-past").Orphaned)
	assert.True(t, exists("already-orph").Orphaned)
	assert.Nil(t, exists("expired"))
	assert.NotNil(t, exists("other-partner"))

	stillInternal, err := repo.GetByID(ctx, internal.ID)
	require.NoError(t, err)
	assert.NotNil(t, stillInternal)
}

func TestReservationRepository_ListForExport(t *testing.T) {
	db := newTestDB(t)
	repo := NewReservationRepository(db)
	ctx := context.Background()
	p := createProperty(t, db, "Cabin")

	later := &models.Reservation{PropertyID: p.ID, Source: models.SourceInternal, Name: "B",
		StartDate: date("2026-12-10"), EndDate: date("2026-12-12"), StartTime: models.StartTimeEarly}
	earlier := &models.Reservation{PropertyID: p.ID, Source: models.SourceInternal, Name: "A",
		StartDate: date("2026-12-01"), EndDate: date("2026-12-03"), EndTime: models.EndTimeLate}
	cancelled := &models.Reservation{PropertyID: p.ID, Source: models.SourceInternal, Name: "C",
		Status: models.ReservationCancelled, StartDate: date("2026-12-05"), EndDate: date("2026-12-06")}
	for _, res := range []*models.Reservation{later, earlier, cancelled} {
		require.NoError(t, repo.Create(ctx, res))
	}
	require.NoError(t, repo.Create(ctx, partnerReservation(p.ID, "ext", "2026-12-04", "2026-12-05")))

	got, err := repo.ListForExport(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Name)
	assert.Equal(t, models.EndTimeLate, got[0].EndTime)
	assert.Equal(t, "B", got[1].Name)
	assert.Equal(t, models.StartTimeEarly, got[1].StartTime)

	ranged, err := repo.ListByDateRange(ctx, date("2026-12-04"), date("2026-12-11"), p.ID)
	require.NoError(t, err)
	assert.Len(t, ranged, 2) // the partner booking and B; C is cancelled, A ends before the range

	deleted, err := repo.DeleteInternal(ctx, later.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestLinkRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewLinkRepository(db)
	ctx := context.Background()
	p := createProperty(t, db, "Cabin")

	link := &models.ImportLink{PropertyID: p.ID, PartnerName: "AirBNB", URL: "https://example.com/a.ics", Active: true}
	require.NoError(t, repo.Create(ctx, link))

	dup := &models.ImportLink{PropertyID: p.ID, PartnerName: "AirBNB", URL: "https://example.com/b.ics", Active: true}
	assert.ErrorIs(t, repo.Create(ctx, dup), ErrDuplicateLink)

	long := "error: " + strings.Repeat("x", 80)
	require.NoError(t, repo.UpdateFetchStatus(ctx, p.ID, "AirBNB", long))

	links, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "Cabin", links[0].PropertyName)
	assert.Equal(t, "Europe/Lisbon", links[0].PropertyTimezone)
	assert.True(t, links[0].LastFetchAt.Valid)
	assert.Len(t, links[0].LastFetchStatus.String, 50)

	require.NoError(t, repo.SetActive(ctx, link.ID, false))
	links, err = repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestMaintenanceRepository(t *testing.T) {
	db := newTestDB(t)
	repo := NewMaintenanceRepository(db)
	ctx := context.Background()
	p := createProperty(t, db, "Cabin")

	block := &models.MaintenanceBlock{PropertyID: p.ID, StartDate: date("2026-06-10"), EndDate: date("2026-06-12"),
		Description: "Deep clean", Type: null.StringFrom("cleaning")}
	require.NoError(t, repo.Create(ctx, block))

	got, err := repo.ListForExport(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Deep clean", got[0].Description)
	assert.Equal(t, "cleaning", got[0].Type.String)

	none, err := repo.ListByDateRange(ctx, date("2026-07-01"), date("2026-07-31"), 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
