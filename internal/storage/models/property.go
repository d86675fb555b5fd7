package models

import (
	"time"
	_ "time/tzdata"
)

// Property is a rental unit with its own calendar.
type Property struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Timezone   string    `json:"timezone"`
	ExportGUID string    `json:"export_guid"`
	CreatedAt  time.Time `json:"created_at"`
}

// Location resolves the property timezone, falling back to UTC when it is
// empty or unknown.
func (p *Property) Location() *time.Location {
	return LoadLocation(p.Timezone)
}

// LoadLocation resolves an IANA timezone name, returning UTC on failure.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
