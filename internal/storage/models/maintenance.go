package models

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// MaintenanceBlock marks days a property is unavailable for cleaning or
// repairs. It is exported like a booking.
type MaintenanceBlock struct {
	ID          int64       `json:"id"`
	PropertyID  int64       `json:"property_id"`
	StartDate   time.Time   `json:"start_date"`
	EndDate     time.Time   `json:"end_date"`
	Description string      `json:"description"`
	Type        null.String `json:"type"`
	CreatedAt   time.Time   `json:"created_at"`
}
