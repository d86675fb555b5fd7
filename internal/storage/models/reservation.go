package models

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Reservation sources.
const (
	SourceInternal    = "internal"
	SourceSyncPartner = "sync_partner"
)

// Reservation statuses.
const (
	ReservationConfirmed = "confirmed"
	ReservationCancelled = "cancelled"
)

// Start and end time classes. They select the time of day used when a
// reservation is exported.
const (
	StartTimeEarly    = "early"
	StartTimeStandard = "standard"
	EndTimeStandard   = "standard"
	EndTimeLate       = "late"
)

// DateLayout is the storage and wire format for civil dates.
const DateLayout = "2006-01-02"

// Reservation is a booking for a property, either made internally or
// imported from a partner feed.
type Reservation struct {
	ID             int64       `json:"id"`
	PropertyID     int64       `json:"property_id"`
	Source         string      `json:"source"`
	PartnerName    null.String `json:"partner_name"`
	ExternalUID    null.String `json:"external_uid"`
	ExportUID      string      `json:"export_uid"`
	Status         string      `json:"status"`
	Name           string      `json:"name"`
	Description    null.String `json:"description"`
	StartDate      time.Time   `json:"start_date"`
	StartTime      string      `json:"start_time"`
	EndDate        time.Time   `json:"end_date"`
	EndTime        string      `json:"end_time"`
	Orphaned       bool        `json:"orphaned"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
	LastVerifiedAt null.Time   `json:"last_verified_at"`
}

// IsExternal reports whether the reservation came from a partner feed.
func (r *Reservation) IsExternal() bool {
	return r.Source == SourceSyncPartner
}

// FeedChange carries the values a feed is allowed to change on an
// existing reservation.
type FeedChange struct {
	StartDate   time.Time
	EndDate     time.Time
	Name        string
	Description null.String
}

// Differs reports whether the change would modify the reservation.
func (c FeedChange) Differs(r *Reservation) bool {
	return !c.StartDate.Equal(r.StartDate) || !c.EndDate.Equal(r.EndDate) || c.Name != r.Name
}

// MissingResult reports what the post-sync pass did to reservations that
// were no longer present in the feed.
type MissingResult struct {
	Deleted  int `json:"deleted"`
	Orphaned int `json:"orphaned"`
}
