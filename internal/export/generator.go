package export

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/rental-calendar/backend/internal/storage/models"
)

// TimeWindows holds the check-in and checkout times of day ("HH:MM:SS")
// and the maximum turnover buffer in days.
type TimeWindows struct {
	EarlyStart    string
	StandardStart string
	StandardEnd   string
	LateEnd       string
	PreDays       int
	PostDays      int
}

// DefaultTimeWindows returns the stock check-in and checkout times.
func DefaultTimeWindows() TimeWindows {
	return TimeWindows{
		EarlyStart:    "06:00:00",
		StandardStart: "15:00:00",
		StandardEnd:   "12:00:00",
		LateEnd:       "22:00:00",
	}
}

// Validate checks every time of day parses.
func (tw TimeWindows) Validate() error {
	for _, s := range []string{tw.EarlyStart, tw.StandardStart, tw.StandardEnd, tw.LateEnd} {
		if _, err := parseClock(s); err != nil {
			return err
		}
	}
	return nil
}

const maintenanceUIDPrefix = "maintenance-"

// Generator builds a property's export document.
type Generator struct {
	windows TimeWindows
	writer  *Writer
}

// NewGenerator creates a generator.
func NewGenerator(windows TimeWindows, writer *Writer) *Generator {
	return &Generator{windows: windows, writer: writer}
}

// Generate renders reservations, padded with turnover buffers, and
// maintenance blocks. Times of day are interpreted in the property's
// timezone.
func (g *Generator) Generate(property *models.Property, reservations []models.Reservation, blocks []models.MaintenanceBlock) ([]byte, error) {
	intervals, err := g.Intervals(property, reservations, blocks)
	if err != nil {
		return nil, err
	}
	return g.writer.Bytes(intervals)
}

// Intervals computes the busy intervals Generate would encode.
func (g *Generator) Intervals(property *models.Property, reservations []models.Reservation, blocks []models.MaintenanceBlock) ([]BusyInterval, error) {
	clocks, err := g.clocks()
	if err != nil {
		return nil, err
	}
	loc := property.Location()

	spans := make([]Span, len(reservations))
	for i, r := range reservations {
		spans[i] = Span{Start: r.StartDate, End: r.EndDate}
	}
	buffers := AdjustBuffers(spans, g.windows.PreDays, g.windows.PostDays)

	intervals := make([]BusyInterval, 0, len(reservations)+len(blocks))
	for i, r := range reservations {
		startClock := clocks.standardStart
		if r.StartTime == models.StartTimeEarly {
			startClock = clocks.earlyStart
		}
		endClock := clocks.standardEnd
		if r.EndTime == models.EndTimeLate {
			endClock = clocks.lateEnd
		}

		intervals = append(intervals, BusyInterval{
			UID:         r.ExportUID,
			Summary:     r.Name,
			Description: r.Description.String,
			Start:       at(r.StartDate.AddDate(0, 0, -buffers[i].PreDays), startClock, loc),
			End:         at(r.EndDate.AddDate(0, 0, buffers[i].PostDays), endClock, loc),
		})
	}

	for _, b := range blocks {
		summary := b.Description
		if summary == "" {
			summary = "Blocked"
		}
		intervals = append(intervals, BusyInterval{
			UID:         MaintenanceUID(b.ID),
			Summary:     summary,
			Description: b.Type.String,
			Start:       at(b.StartDate, clocks.standardStart, loc),
			End:         at(b.EndDate, clocks.standardEnd, loc),
		})
	}

	return intervals, nil
}

// MaintenanceUID derives a stable export UID for a maintenance block that
// does not reveal its database id.
func MaintenanceUID(id int64) string {
	sum := sha256.Sum256([]byte("maintenance:" + strconv.FormatInt(id, 10)))
	return maintenanceUIDPrefix + hex.EncodeToString(sum[:16])
}

type clock struct {
	hour, min, sec int
}

type clockSet struct {
	earlyStart, standardStart, standardEnd, lateEnd clock
}

func (g *Generator) clocks() (clockSet, error) {
	var cs clockSet
	var err error
	if cs.earlyStart, err = parseClock(g.windows.EarlyStart); err != nil {
		return cs, err
	}
	if cs.standardStart, err = parseClock(g.windows.StandardStart); err != nil {
		return cs, err
	}
	if cs.standardEnd, err = parseClock(g.windows.StandardEnd); err != nil {
		return cs, err
	}
	if cs.lateEnd, err = parseClock(g.windows.LateEnd); err != nil {
		return cs, err
	}
	return cs, nil
}

// parseClock accepts "HH:MM:SS" or "HH:MM".
func parseClock(s string) (clock, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return clock{hour: t.Hour(), min: t.Minute(), sec: t.Second()}, nil
		}
	}
	return clock{}, fmt.Errorf("invalid time of day %q", s)
}

// at places a time of day on a civil date in loc.
func at(date time.Time, c clock, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, c.hour, c.min, c.sec, 0, loc)
}
