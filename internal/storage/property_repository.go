package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rental-calendar/backend/internal/storage/models"
)

// PropertyRepository provides data access for properties.
type PropertyRepository struct {
	BaseRepository
}

// NewPropertyRepository creates a new property repository.
func NewPropertyRepository(db *DB) *PropertyRepository {
	return &PropertyRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const propertyColumns = `id, name, timezone, export_guid, created_at`

// Create inserts a property and assigns it a fresh export GUID.
func (r *PropertyRepository) Create(ctx context.Context, p *models.Property) error {
	p.ExportGUID = NewExportID()
	p.CreatedAt = r.Now()
	if p.Timezone == "" {
		p.Timezone = "UTC"
	}

	res, err := r.DB().ExecContext(ctx, `
		INSERT INTO properties (name, timezone, export_guid, created_at)
		VALUES (?, ?, ?, ?)
	`, p.Name, p.Timezone, p.ExportGUID, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting property: %w", err)
	}

	p.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading property id: %w", err)
	}
	return nil
}

// GetByID retrieves a property by id.
func (r *PropertyRepository) GetByID(ctx context.Context, id int64) (*models.Property, error) {
	row := r.DB().QueryRowContext(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = ?`, id)
	return scanPropertyRow(row)
}

// GetByExportGUID retrieves the property addressed by a public export URL.
func (r *PropertyRepository) GetByExportGUID(ctx context.Context, guid string) (*models.Property, error) {
	row := r.DB().QueryRowContext(ctx, `SELECT `+propertyColumns+` FROM properties WHERE export_guid = ?`, guid)
	return scanPropertyRow(row)
}

// List retrieves all properties ordered by name.
func (r *PropertyRepository) List(ctx context.Context) ([]models.Property, error) {
	rows, err := r.DB().QueryContext(ctx, `SELECT `+propertyColumns+` FROM properties ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying properties: %w", err)
	}
	defer rows.Close()

	var properties []models.Property
	for rows.Next() {
		var p models.Property
		if err := rows.Scan(&p.ID, &p.Name, &p.Timezone, &p.ExportGUID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning property: %w", err)
		}
		properties = append(properties, p)
	}

	return properties, rows.Err()
}

func scanPropertyRow(row *sql.Row) (*models.Property, error) {
	p := &models.Property{}
	err := row.Scan(&p.ID, &p.Name, &p.Timezone, &p.ExportGUID, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying property: %w", err)
	}
	return p, nil
}
