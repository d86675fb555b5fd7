package export

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

// DefaultProductID is the PRODID of exported documents.
const DefaultProductID = "-//Rental Calendar//EN"

const utcDateTime = "20060102T150405Z"

// BusyInterval is one exported unavailable period.
type BusyInterval struct {
	UID         string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// Writer encodes busy intervals as an iCalendar document.
type Writer struct {
	productID string
	now       func() time.Time
}

// NewWriter creates a writer stamping documents with productID.
func NewWriter(productID string) *Writer {
	if productID == "" {
		productID = DefaultProductID
	}
	return &Writer{productID: productID, now: time.Now}
}

// Encode writes a VCALENDAR with one VEVENT per interval. Times are written
// in UTC.
func (w *Writer) Encode(out io.Writer, intervals []BusyInterval) error {
	cal := ical.NewCalendar()
	setRaw(cal.Props, ical.PropVersion, "2.0")
	setRaw(cal.Props, ical.PropProductID, w.productID)
	setRaw(cal.Props, "CALSCALE", "GREGORIAN")
	setRaw(cal.Props, "METHOD", "PUBLISH")

	stamp := w.now().UTC().Format(utcDateTime)
	for _, iv := range intervals {
		event := ical.NewEvent()
		setRaw(event.Props, ical.PropUID, iv.UID)
		setRaw(event.Props, ical.PropDateTimeStamp, stamp)
		setRaw(event.Props, ical.PropDateTimeStart, iv.Start.UTC().Format(utcDateTime))
		setRaw(event.Props, ical.PropDateTimeEnd, iv.End.UTC().Format(utcDateTime))
		setRaw(event.Props, ical.PropSummary, EscapeText(iv.Summary))
		if iv.Description != "" {
			setRaw(event.Props, ical.PropDescription, EscapeText(iv.Description))
		}
		setRaw(event.Props, ical.PropStatus, "CONFIRMED")
		cal.Children = append(cal.Children, event.Component)
	}

	// The encoder refuses a calendar without components, but a property
	// with nothing booked still needs a valid feed.
	if len(cal.Children) == 0 {
		return encodeEmpty(out, cal)
	}
	if err := ical.NewEncoder(out).Encode(cal); err != nil {
		return fmt.Errorf("encoding calendar: %w", err)
	}
	return nil
}

// encodeEmpty writes a VCALENDAR holding only its own properties, in the
// same sorted CRLF layout the encoder uses.
func encodeEmpty(out io.Writer, cal *ical.Calendar) error {
	names := make([]string, 0, len(cal.Props))
	for name := range cal.Props {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("BEGIN:" + ical.CompCalendar + "\r\n")
	for _, name := range names {
		for _, prop := range cal.Props[name] {
			b.WriteString(prop.Name + ":" + prop.Value + "\r\n")
		}
	}
	b.WriteString("END:" + ical.CompCalendar + "\r\n")

	if _, err := io.WriteString(out, b.String()); err != nil {
		return fmt.Errorf("encoding calendar: %w", err)
	}
	return nil
}

// Bytes encodes intervals into a new buffer.
func (w *Writer) Bytes(intervals []BusyInterval) ([]byte, error) {
	var buf bytes.Buffer
	if err := w.Encode(&buf, intervals); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// setRaw stores an already-formatted value, bypassing the library's value
// type handling so the output stays byte-for-byte predictable.
func setRaw(props ical.Props, name, value string) {
	prop := ical.NewProp(name)
	prop.Value = value
	props.Set(prop)
}

var textEscaper = strings.NewReplacer(
	`\`, `\\`,
	`;`, `\;`,
	`,`, `\,`,
	"\r\n", `\n`,
	"\n", `\n`,
	"\r", `\n`,
)

// EscapeText escapes backslash, semicolon, comma and newlines in a TEXT value.
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}
