package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rental-calendar/backend/internal/storage/models"
)

// MaintenanceRepository provides data access for maintenance blocks.
type MaintenanceRepository struct {
	BaseRepository
}

// NewMaintenanceRepository creates a new maintenance block repository.
func NewMaintenanceRepository(db *DB) *MaintenanceRepository {
	return &MaintenanceRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const maintenanceColumns = `id, property_id, start_date, end_date, description, type, created_at`

// Create inserts a maintenance block.
func (r *MaintenanceRepository) Create(ctx context.Context, m *models.MaintenanceBlock) error {
	m.CreatedAt = r.Now()

	res, err := r.DB().ExecContext(ctx, `
		INSERT INTO maintenance_blocks (property_id, start_date, end_date, description, type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.PropertyID, formatDate(m.StartDate), formatDate(m.EndDate), m.Description, m.Type, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting maintenance block: %w", err)
	}

	m.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading maintenance block id: %w", err)
	}
	return nil
}

// ListByDateRange returns blocks overlapping [start, end], optionally
// limited to one property.
func (r *MaintenanceRepository) ListByDateRange(ctx context.Context, start, end time.Time, propertyID int64) ([]models.MaintenanceBlock, error) {
	query := `SELECT ` + maintenanceColumns + ` FROM maintenance_blocks
		WHERE start_date <= ? AND end_date >= ?`
	args := []any{formatDate(end), formatDate(start)}
	if propertyID != 0 {
		query += ` AND property_id = ?`
		args = append(args, propertyID)
	}
	query += ` ORDER BY start_date, id`
	return r.list(ctx, query, args...)
}

// ListForExport returns every block of a property ordered by start date.
func (r *MaintenanceRepository) ListForExport(ctx context.Context, propertyID int64) ([]models.MaintenanceBlock, error) {
	return r.list(ctx, `SELECT `+maintenanceColumns+` FROM maintenance_blocks
		WHERE property_id = ? ORDER BY start_date, id`, propertyID)
}

// Delete removes a maintenance block.
func (r *MaintenanceRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.DB().ExecContext(ctx, `DELETE FROM maintenance_blocks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting maintenance block: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *MaintenanceRepository) list(ctx context.Context, query string, args ...any) ([]models.MaintenanceBlock, error) {
	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying maintenance blocks: %w", err)
	}
	defer rows.Close()

	var blocks []models.MaintenanceBlock
	for rows.Next() {
		var m models.MaintenanceBlock
		var start, end string
		if err := rows.Scan(&m.ID, &m.PropertyID, &start, &end, &m.Description, &m.Type, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning maintenance block: %w", err)
		}
		if m.StartDate, err = parseDate(start); err != nil {
			return nil, err
		}
		if m.EndDate, err = parseDate(end); err != nil {
			return nil, err
		}
		blocks = append(blocks, m)
	}

	return blocks, rows.Err()
}
