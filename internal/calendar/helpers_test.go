package calendar

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rental-calendar/backend/internal/storage/models"
)

type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	err    error
	calls  int
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	body, ok := f.bodies[url]
	if !ok {
		return nil, &FetchError{URL: url, StatusCode: 404}
	}
	return []byte(body), nil
}

func (f *fakeFetcher) set(url, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bodies == nil {
		f.bodies = make(map[string]string)
	}
	f.bodies[url] = body
}

type staticSettings struct {
	interval  time.Duration
	retention int
}

func (s staticSettings) RecheckInterval(string) time.Duration { return s.interval }
func (s staticSettings) RetentionDays(string) int             { return s.retention }

func feed(events ...string) string {
	return "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//Test//EN\r\n" +
		strings.Join(events, "") +
		"END:VCALENDAR\r\n"
}

func vevent(uid, start, end, summary string) string {
	return fmt.Sprintf("BEGIN:VEVENT\r\nUID:%s\r\nDTSTART;VALUE=DATE:%s\r\nDTEND;VALUE=DATE:%s\r\nSUMMARY:%s\r\nEND:VEVENT\r\n",
		uid, start, end, summary)
}

func fixedClock(s string) func() time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t }
}

func civil(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}
