package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/rental-calendar/backend/internal/storage/models"
)

// ReservationRepository provides data access for reservations.
type ReservationRepository struct {
	BaseRepository
}

// NewReservationRepository creates a new reservation repository.
func NewReservationRepository(db *DB) *ReservationRepository {
	return &ReservationRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const reservationColumns = `
	id, property_id, source, partner_name, external_uid, export_uid, status, name,
	description, start_date, start_time, end_date, end_time, orphaned,
	created_at, updated_at, last_verified_at`

// Create inserts a reservation and assigns its export UID.
func (r *ReservationRepository) Create(ctx context.Context, res *models.Reservation) error {
	now := r.Now()
	res.ExportUID = NewExportID()
	res.CreatedAt = now
	res.UpdatedAt = now
	if res.Status == "" {
		res.Status = models.ReservationConfirmed
	}
	if res.StartTime == "" {
		res.StartTime = models.StartTimeStandard
	}
	if res.EndTime == "" {
		res.EndTime = models.EndTimeStandard
	}
	if res.IsExternal() {
		res.LastVerifiedAt = null.TimeFrom(now)
	}

	result, err := r.DB().ExecContext(ctx, `
		INSERT INTO reservations (
			property_id, source, partner_name, external_uid, export_uid, status, name,
			description, start_date, start_time, end_date, end_time, orphaned,
			created_at, updated_at, last_verified_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)
	`,
		res.PropertyID, res.Source, res.PartnerName, res.ExternalUID, res.ExportUID,
		res.Status, res.Name, res.Description,
		formatDate(res.StartDate), res.StartTime, formatDate(res.EndDate), res.EndTime,
		res.CreatedAt, res.UpdatedAt, res.LastVerifiedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting reservation: %w", err)
	}

	res.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading reservation id: %w", err)
	}
	return nil
}

// GetByID retrieves a reservation by id.
func (r *ReservationRepository) GetByID(ctx context.Context, id int64) (*models.Reservation, error) {
	row := r.DB().QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	return scanReservationRow(row)
}

// GetByExternalUID looks up a partner reservation by its feed UID.
func (r *ReservationRepository) GetByExternalUID(ctx context.Context, propertyID int64, partner, uid string) (*models.Reservation, error) {
	row := r.DB().QueryRowContext(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE property_id = ? AND partner_name = ? AND external_uid = ?
	`, propertyID, partner, uid)
	return scanReservationRow(row)
}

// ApplyFeedChange rewrites the feed-owned fields of a reservation and
// clears its orphan flag.
func (r *ReservationRepository) ApplyFeedChange(ctx context.Context, id int64, change models.FeedChange) error {
	now := r.Now()
	_, err := r.DB().ExecContext(ctx, `
		UPDATE reservations SET
			start_date = ?, end_date = ?, name = ?, description = ?,
			orphaned = 0, updated_at = ?, last_verified_at = ?
		WHERE id = ?
	`, formatDate(change.StartDate), formatDate(change.EndDate), change.Name, change.Description, now, now, id)
	if err != nil {
		return fmt.Errorf("updating reservation %d: %w", id, err)
	}
	return nil
}

// MarkVerified records that a reservation was seen unchanged in its feed.
func (r *ReservationRepository) MarkVerified(ctx context.Context, id int64) error {
	_, err := r.DB().ExecContext(ctx, `
		UPDATE reservations SET last_verified_at = ?, orphaned = 0 WHERE id = ?
	`, r.Now(), id)
	if err != nil {
		return fmt.Errorf("touching reservation %d: %w", id, err)
	}
	return nil
}

// ReconcileMissing applies the retention policy to the partner reservations
// of a property, in a single transaction. Reservations whose UID is in seen
// have their orphan flag cleared. Unseen ones ending today or later are
// deleted; unseen ones that ended within retentionDays are orphaned; older
// unseen ones are deleted.
func (r *ReservationRepository) ReconcileMissing(
	ctx context.Context,
	propertyID int64,
	partner string,
	seen map[string]struct{},
	today time.Time,
	retentionDays int,
) (models.MissingResult, error) {
	var result models.MissingResult
	cutoff := today.AddDate(0, 0, -retentionDays)

	err := r.Transaction(ctx, func(tx *sql.Tx) error {
		type candidate struct {
			id       int64
			uid      string
			end      time.Time
			orphaned bool
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT id, external_uid, end_date, orphaned FROM reservations
			WHERE property_id = ? AND partner_name = ? AND source = ?
		`, propertyID, partner, models.SourceSyncPartner)
		if err != nil {
			return fmt.Errorf("listing partner reservations: %w", err)
		}

		var candidates []candidate
		for rows.Next() {
			var c candidate
			var end string
			if err := rows.Scan(&c.id, &c.uid, &end, &c.orphaned); err != nil {
				rows.Close()
				return fmt.Errorf("scanning partner reservation: %w", err)
			}
			if c.end, err = parseDate(end); err != nil {
				rows.Close()
				return err
			}
			candidates = append(candidates, c)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		for _, c := range candidates {
			if _, ok := seen[c.uid]; ok {
				if c.orphaned {
					if err := setOrphaned(ctx, tx, c.id, false); err != nil {
						return err
					}
				}
				continue
			}

			switch {
			case !c.end.Before(today), c.end.Before(cutoff):
				if _, err := tx.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, c.id); err != nil {
					return fmt.Errorf("deleting reservation %d: %w", c.id, err)
				}
				result.Deleted++
			case !c.orphaned:
				if err := setOrphaned(ctx, tx, c.id, true); err != nil {
					return err
				}
				result.Orphaned++
			}
		}
		return nil
	})
	if err != nil {
		return models.MissingResult{}, err
	}
	return result, nil
}

func setOrphaned(ctx context.Context, q Queryable, id int64, orphaned bool) error {
	if _, err := q.ExecContext(ctx, `UPDATE reservations SET orphaned = ? WHERE id = ?`, orphaned, id); err != nil {
		return fmt.Errorf("flagging reservation %d: %w", id, err)
	}
	return nil
}

// ListByDateRange returns non-cancelled reservations overlapping [start, end],
// optionally limited to one property.
func (r *ReservationRepository) ListByDateRange(ctx context.Context, start, end time.Time, propertyID int64) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations
		WHERE status != ? AND start_date <= ? AND end_date >= ?`
	args := []any{models.ReservationCancelled, formatDate(end), formatDate(start)}
	if propertyID != 0 {
		query += ` AND property_id = ?`
		args = append(args, propertyID)
	}
	query += ` ORDER BY start_date, id`

	return r.list(ctx, query, args...)
}

// ListForExport returns the internal, non-cancelled reservations of a
// property ordered by start date.
func (r *ReservationRepository) ListForExport(ctx context.Context, propertyID int64) ([]models.Reservation, error) {
	return r.list(ctx, `SELECT `+reservationColumns+` FROM reservations
		WHERE property_id = ? AND source = ? AND status != ?
		ORDER BY start_date, id`,
		propertyID, models.SourceInternal, models.ReservationCancelled)
}

// DeleteInternal removes an internal reservation. Partner reservations are
// owned by their feed and are not deleted here.
func (r *ReservationRepository) DeleteInternal(ctx context.Context, id int64) (bool, error) {
	res, err := r.DB().ExecContext(ctx, `DELETE FROM reservations WHERE id = ? AND source = ?`, id, models.SourceInternal)
	if err != nil {
		return false, fmt.Errorf("deleting reservation: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *ReservationRepository) list(ctx context.Context, query string, args ...any) ([]models.Reservation, error) {
	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying reservations: %w", err)
	}
	defer rows.Close()

	var reservations []models.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, *res)
	}

	return reservations, rows.Err()
}

func scanReservationRow(row *sql.Row) (*models.Reservation, error) {
	res, err := scanReservation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return res, err
}

func scanReservation(s rowScanner) (*models.Reservation, error) {
	var res models.Reservation
	var start, end string
	err := s.Scan(
		&res.ID, &res.PropertyID, &res.Source, &res.PartnerName, &res.ExternalUID,
		&res.ExportUID, &res.Status, &res.Name, &res.Description,
		&start, &res.StartTime, &end, &res.EndTime, &res.Orphaned,
		&res.CreatedAt, &res.UpdatedAt, &res.LastVerifiedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning reservation: %w", err)
	}

	if res.StartDate, err = parseDate(start); err != nil {
		return nil, err
	}
	if res.EndDate, err = parseDate(end); err != nil {
		return nil, err
	}
	return &res, nil
}
