// Package models contains the domain models for the application.
package models

// CalendarEvent is one VEVENT decoded from a partner feed.
// Start and End hold the raw date markers; an empty Start means the
// event carried no DTSTART line.
type CalendarEvent struct {
	UID         string `json:"uid"`
	Summary     string `json:"summary"`
	Description string `json:"description"`
	Start       string `json:"start"`
	End         string `json:"end"`
	AllDay      bool   `json:"all_day"`
}

// Sync outcome statuses.
const (
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
	SyncStatusSkipped = "skipped"
)

// SyncStats counts what happened to the events of one feed.
type SyncStats struct {
	Added    int `json:"added"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Deleted  int `json:"deleted"`
	Orphaned int `json:"orphaned"`
	Errors   int `json:"errors"`
}

// SyncOutcome is the result of syncing one import link.
type SyncOutcome struct {
	PropertyID   int64      `json:"property_id"`
	PropertyName string     `json:"property_name,omitempty"`
	Partner      string     `json:"partner"`
	Status       string     `json:"status"`
	Stats        *SyncStats `json:"stats,omitempty"`
	Message      string     `json:"message,omitempty"`
}

// SyncProgress reports one finished link within a run.
type SyncProgress struct {
	Current int         `json:"current"`
	Total   int         `json:"total"`
	Outcome SyncOutcome `json:"outcome"`
}

// Percent returns the run completion as a whole percentage.
func (p SyncProgress) Percent() int {
	if p.Total == 0 {
		return 100
	}
	return p.Current * 100 / p.Total
}

// SyncSummary aggregates the outcomes of a run.
type SyncSummary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Errors  int `json:"errors"`
	Skipped int `json:"skipped"`
}
