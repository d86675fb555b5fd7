package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rental-calendar/backend/internal/storage/models"
)

const airbnbFeed = "BEGIN:VCALENDAR\r\n" +
	"PRODID:-//Airbnb Inc//Hosting Calendar 0.8.8//EN\r\n" +
	"VERSION:2.0\r\n" +
	"BEGIN:VEVENT\r\n" +
	"DTEND;VALUE=DATE:20261105\r\n" +
	"DTSTART;VALUE=DATE:20261101\r\n" +
	"UID:1418fb94e984-9c0a2e6f2a4e6a1f@airbnb.com\r\n" +
	"DESCRIPTION:Reservation URL: https://www.airbnb.com/hosting/reservations/\r\n" +
	" details/HMABC123XY\\nPhone Number (Last 4 Digits): 1234\r\n" +
	"SUMMARY:Reserved\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"DTEND;VALUE=DATE:20261201\r\n" +
	"DTSTART;VALUE=DATE:20261120\r\n" +
	"UID:7f3e1b0c-blocked@airbnb.com\r\n" +
	"SUMMARY:Airbnb (Not available)\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParse_AirbnbFeed(t *testing.T) {
	events := ParseAll(airbnbFeed)
	require.Len(t, events, 2)

	first := events[0]
	assert.Equal(t, "1418fb94e984-9c0a2e6f2a4e6a1f@airbnb.com", first.UID)
	assert.Equal(t, "Reserved", first.Summary)
	assert.Equal(t, "Reservation URL: https://www.airbnb.com/hosting/reservations/details/HMABC123XY\nPhone Number (Last 4 Digits): 1234", first.Description)
	assert.Equal(t, "20261101", first.Start)
	assert.Equal(t, "20261105", first.End)
	assert.True(t, first.AllDay)

	assert.Equal(t, "Airbnb (Not available)", events[1].Summary)
}

func TestParse_IsRestartable(t *testing.T) {
	seq := Parse(airbnbFeed)

	var a, b []models.CalendarEvent
	for ev := range seq {
		a = append(a, ev)
	}
	for ev := range seq {
		b = append(b, ev)
	}
	assert.Equal(t, a, b)
	assert.Equal(t, ParseAll(airbnbFeed), ParseAll(airbnbFeed))
}

func TestParse_StopsEarly(t *testing.T) {
	count := 0
	for range Parse(airbnbFeed) {
		count++
		break
	}
	assert.Equal(t, 1, count)
}

func TestParse_Lenient(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []models.CalendarEvent
	}{
		{
			name: "bare LF and CR line endings",
			raw:  "BEGIN:VEVENT\nUID:a\rDTSTART:20260101T100000Z\nEND:VEVENT\n",
			want: []models.CalendarEvent{{UID: "a", Start: "20260101T100000Z"}},
		},
		{
			name: "malformed lines are skipped",
			raw:  "garbage\nBEGIN:VEVENT\nno colon here\n:novalue\nUID:b\nEND:VEVENT\ntrailing",
			want: []models.CalendarEvent{{UID: "b"}},
		},
		{
			name: "duplicate property keeps last value",
			raw:  "BEGIN:VEVENT\nUID:c\nSUMMARY:first\nSUMMARY:second\nEND:VEVENT",
			want: []models.CalendarEvent{{UID: "c", Summary: "second"}},
		},
		{
			name: "missing uid still emitted",
			raw:  "BEGIN:VEVENT\nSUMMARY:no id\nDTSTART;VALUE=DATE:20260301\nEND:VEVENT",
			want: []models.CalendarEvent{{Summary: "no id", Start: "20260301", AllDay: true}},
		},
		{
			name: "tab continuation and escapes",
			raw:  "BEGIN:VEVENT\nUID:d\nSUMMARY:Smith\\, J\n\tohn\\; party\nEND:VEVENT",
			want: []models.CalendarEvent{{UID: "d", Summary: "Smith, John; party"}},
		},
		{
			name: "nested alarm does not leak",
			raw:  "BEGIN:VEVENT\nUID:e\nDESCRIPTION:stay\nBEGIN:VALARM\nDESCRIPTION:reminder\nEND:VALARM\nEND:VEVENT",
			want: []models.CalendarEvent{{UID: "e", Description: "stay"}},
		},
		{
			name: "unterminated event dropped",
			raw:  "BEGIN:VEVENT\nUID:f\n",
			want: nil,
		},
		{
			name: "lowercase property names",
			raw:  "BEGIN:VEVENT\nuid:g\ndtstart;value=date:20260401\nEND:VEVENT",
			want: []models.CalendarEvent{{UID: "g", Start: "20260401", AllDay: true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAll(tt.raw))
		})
	}
}

func TestParseDateMarker(t *testing.T) {
	want := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for _, marker := range []string{"20250601", "20250601T153000", "20250601T153000Z", " 20250601 "} {
		got, err := ParseDateMarker(marker)
		require.NoError(t, err, marker)
		assert.True(t, want.Equal(got), marker)
	}

	for _, marker := range []string{"", "2025-06-01", "202506", "20250601T1530", "20250601X"} {
		_, err := ParseDateMarker(marker)
		assert.Error(t, err, marker)
	}
}
