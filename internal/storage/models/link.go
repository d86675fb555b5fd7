package models

import (
	"strconv"
	"time"

	"github.com/volatiletech/null/v8"
)

// ImportLink connects a property to a partner feed URL.
type ImportLink struct {
	ID               int64       `json:"id"`
	PropertyID       int64       `json:"property_id"`
	PropertyName     string      `json:"property_name"`
	PropertyTimezone string      `json:"property_timezone"`
	PartnerName      string      `json:"partner_name"`
	URL              string      `json:"url"`
	Active           bool        `json:"active"`
	LastFetchAt      null.Time   `json:"last_fetch_at"`
	LastFetchStatus  null.String `json:"last_fetch_status"`
	CreatedAt        time.Time   `json:"created_at"`
}

// Key identifies the link for de-duplication of concurrent syncs.
func (l *ImportLink) Key() string {
	return strconv.FormatInt(l.PropertyID, 10) + ":" + l.PartnerName
}
