// Package calendar imports partner iCal feeds and reconciles them against
// stored reservations.
package calendar

import (
	"fmt"
	"iter"
	"regexp"
	"strings"
	"time"

	"github.com/rental-calendar/backend/internal/storage/models"
)

type parseState int

const (
	stateOutside parseState = iota
	stateInside
)

type property struct {
	value  string
	params map[string]string
}

// Parse decodes the VEVENTs of a feed. Malformed lines are skipped, so a
// partially broken feed still yields its readable events. Each call to the
// returned sequence re-parses raw from the start.
func Parse(raw string) iter.Seq[models.CalendarEvent] {
	return func(yield func(models.CalendarEvent) bool) {
		state := stateOutside
		depth := 0
		var props map[string]property

		for _, line := range logicalLines(raw) {
			switch state {
			case stateOutside:
				if line == "BEGIN:VEVENT" {
					props = make(map[string]property)
					depth = 0
					state = stateInside
				}

			case stateInside:
				// Nested components such as VALARM carry their own
				// DESCRIPTION and must not overwrite the event's.
				switch {
				case line == "END:VEVENT" && depth == 0:
					state = stateOutside
					if !yield(buildEvent(props)) {
						return
					}
					continue
				case strings.HasPrefix(line, "BEGIN:"):
					depth++
					continue
				case strings.HasPrefix(line, "END:") && depth > 0:
					depth--
					continue
				}
				if depth > 0 {
					continue
				}

				name, prop, ok := parseProperty(line)
				if !ok {
					continue
				}
				props[name] = prop
			}
		}
	}
}

// ParseAll collects every event of a feed.
func ParseAll(raw string) []models.CalendarEvent {
	var events []models.CalendarEvent
	for ev := range Parse(raw) {
		events = append(events, ev)
	}
	return events
}

// logicalLines normalizes line endings, unfolds continuation lines and
// returns the trimmed, non-empty lines.
func logicalLines(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")
	raw = strings.ReplaceAll(raw, "\n ", "")
	raw = strings.ReplaceAll(raw, "\n\t", "")

	lines := strings.Split(raw, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// parseProperty splits NAME;PARAM=V:VALUE on the first colon.
func parseProperty(line string) (string, property, bool) {
	idx := strings.IndexByte(line, ':')
	if idx <= 0 {
		return "", property{}, false
	}

	parts := strings.Split(line[:idx], ";")
	name := strings.ToUpper(strings.TrimSpace(parts[0]))
	if name == "" {
		return "", property{}, false
	}

	prop := property{value: line[idx+1:]}
	for _, p := range parts[1:] {
		key, val, ok := strings.Cut(p, "=")
		if !ok {
			continue
		}
		if prop.params == nil {
			prop.params = make(map[string]string)
		}
		prop.params[strings.ToUpper(strings.TrimSpace(key))] = strings.Trim(strings.TrimSpace(val), `"`)
	}
	return name, prop, true
}

func buildEvent(props map[string]property) models.CalendarEvent {
	start := props["DTSTART"]
	return models.CalendarEvent{
		UID:         strings.TrimSpace(props["UID"].value),
		Summary:     unescapeText(props["SUMMARY"].value),
		Description: unescapeText(props["DESCRIPTION"].value),
		Start:       strings.TrimSpace(start.value),
		End:         strings.TrimSpace(props["DTEND"].value),
		AllDay:      strings.EqualFold(start.params["VALUE"], "DATE"),
	}
}

var textUnescaper = strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)

func unescapeText(s string) string {
	return textUnescaper.Replace(s)
}

var dateMarker = regexp.MustCompile(`^(\d{8})(T\d{6}Z?)?$`)

// ParseDateMarker reduces a DATE or DATE-TIME marker to its calendar date,
// returned at midnight UTC. The time part and any zone are ignored.
func ParseDateMarker(marker string) (time.Time, error) {
	m := dateMarker.FindStringSubmatch(strings.TrimSpace(marker))
	if m == nil {
		return time.Time{}, fmt.Errorf("unrecognized date marker %q", marker)
	}
	return time.Parse("20060102", m[1])
}
