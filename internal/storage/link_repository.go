package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
	"github.com/volatiletech/null/v8"

	"github.com/rental-calendar/backend/internal/storage/models"
)

// ErrDuplicateLink is returned when a property already has a link for a partner.
var ErrDuplicateLink = errors.New("import link already exists for this property and partner")

// maxFetchStatusLen bounds the stored fetch status string.
const maxFetchStatusLen = 50

// LinkRepository provides data access for calendar import links.
type LinkRepository struct {
	BaseRepository
}

// NewLinkRepository creates a new import link repository.
func NewLinkRepository(db *DB) *LinkRepository {
	return &LinkRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const linkSelect = `
	SELECT l.id, l.property_id, p.name, p.timezone, l.partner_name, l.url, l.active,
	       l.last_fetch_at, l.last_fetch_status, l.created_at
	FROM import_links l
	JOIN properties p ON p.id = l.property_id`

// Create inserts a new import link.
func (r *LinkRepository) Create(ctx context.Context, link *models.ImportLink) error {
	link.CreatedAt = r.Now()

	res, err := r.DB().ExecContext(ctx, `
		INSERT INTO import_links (property_id, partner_name, url, active, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, link.PropertyID, link.PartnerName, link.URL, link.Active, link.CreatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrDuplicateLink
		}
		return fmt.Errorf("inserting import link: %w", err)
	}

	link.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading import link id: %w", err)
	}
	return nil
}

// ListActive returns the links a sync run should visit, ordered by property then partner.
func (r *LinkRepository) ListActive(ctx context.Context) ([]models.ImportLink, error) {
	return r.list(ctx, linkSelect+` WHERE l.active = 1 ORDER BY l.property_id, l.partner_name`)
}

// List returns all links with their property names.
func (r *LinkRepository) List(ctx context.Context) ([]models.ImportLink, error) {
	return r.list(ctx, linkSelect+` ORDER BY p.name, l.partner_name`)
}

func (r *LinkRepository) list(ctx context.Context, query string) ([]models.ImportLink, error) {
	rows, err := r.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying import links: %w", err)
	}
	defer rows.Close()

	var links []models.ImportLink
	for rows.Next() {
		var l models.ImportLink
		if err := rows.Scan(
			&l.ID, &l.PropertyID, &l.PropertyName, &l.PropertyTimezone, &l.PartnerName,
			&l.URL, &l.Active, &l.LastFetchAt, &l.LastFetchStatus, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning import link: %w", err)
		}
		links = append(links, l)
	}

	return links, rows.Err()
}

// UpdateFetchStatus records the outcome and time of the latest fetch.
func (r *LinkRepository) UpdateFetchStatus(ctx context.Context, propertyID int64, partner, status string) error {
	if len(status) > maxFetchStatusLen {
		status = status[:maxFetchStatusLen]
	}

	_, err := r.DB().ExecContext(ctx, `
		UPDATE import_links SET last_fetch_at = ?, last_fetch_status = ?
		WHERE property_id = ? AND partner_name = ?
	`, r.Now(), null.StringFrom(status), propertyID, partner)
	if err != nil {
		return fmt.Errorf("updating fetch status: %w", err)
	}
	return nil
}

// SetActive enables or disables a link.
func (r *LinkRepository) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := r.DB().ExecContext(ctx, `UPDATE import_links SET active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("updating import link: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
