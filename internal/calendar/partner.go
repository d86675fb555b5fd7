package calendar

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/volatiletech/null/v8"

	"github.com/rental-calendar/backend/internal/storage/models"
)

// AirbnbName is the partner name Airbnb links are registered under.
const AirbnbName = "AirBNB"

const (
	maxLabelRunes           = 200
	airbnbReservationPrefix = "Reservation URL: https://www.airbnb.com/hosting/reservations/details/"
	defaultLabel            = "Reserved"
)

// Partner syncs the feed of one booking platform for a property.
type Partner interface {
	Name() string
	Sync(ctx context.Context, link models.ImportLink) (models.SyncStats, error)
}

// Registry maps partner names to their implementation.
type Registry map[string]Partner

// NewRegistry indexes partners by name.
func NewRegistry(partners ...Partner) Registry {
	r := make(Registry, len(partners))
	for _, p := range partners {
		r[p.Name()] = p
	}
	return r
}

// Lookup returns the partner registered under name.
func (r Registry) Lookup(name string) (Partner, bool) {
	p, ok := r[name]
	return p, ok
}

// Names returns the registered partner names, sorted.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FeedRules describe how one partner's feed events become reservations.
type FeedRules struct {
	Name string
	// Sentinels are summaries marking availability blocks rather than bookings.
	Sentinels []string
	// Label derives the reservation name and description from an event.
	Label func(ev models.CalendarEvent) (string, null.String)
}

// AirbnbRules returns the rules for Airbnb host calendar exports. Extra
// sentinels are appended to the built-in one.
func AirbnbRules(extraSentinels ...string) FeedRules {
	return FeedRules{
		Name:      AirbnbName,
		Sentinels: append([]string{"Airbnb (Not available)"}, extraSentinels...),
		Label:     airbnbLabel,
	}
}

// GenericRules returns rules for a partner whose events carry the booking
// label in their summary.
func GenericRules(name string, sentinels ...string) FeedRules {
	return FeedRules{
		Name:      name,
		Sentinels: sentinels,
		Label:     summaryLabel,
	}
}

func (r FeedRules) isSentinel(summary string) bool {
	summary = strings.TrimSpace(summary)
	for _, s := range r.Sentinels {
		if summary == s {
			return true
		}
	}
	return false
}

var (
	airbnbReservationURL = regexp.MustCompile(`(?i)Reservation\s+URL:\s*https?://www\.airbnb\.com/hosting/reservations/details/([A-Z0-9]+)`)
	whitespaceRun        = regexp.MustCompile(`\s+`)
)

// airbnbLabel uses the confirmation code from the reservation URL, looked
// for in the description first and then in the summary.
func airbnbLabel(ev models.CalendarEvent) (string, null.String) {
	for _, text := range []string{ev.Description, ev.Summary} {
		m := airbnbReservationURL.FindStringSubmatch(whitespaceRun.ReplaceAllString(text, " "))
		if m != nil {
			return m[1], null.StringFrom(airbnbReservationPrefix + m[1])
		}
	}
	return summaryLabel(ev)
}

func summaryLabel(ev models.CalendarEvent) (string, null.String) {
	label := truncateRunes(strings.TrimSpace(ev.Summary), maxLabelRunes)
	if label == "" {
		label = defaultLabel
	}
	return label, null.String{}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
