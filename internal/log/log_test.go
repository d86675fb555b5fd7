package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Setup(LevelWarn, FileOptions{})
	SetOutput(&buf)
	t.Cleanup(func() { Setup(LevelInfo, FileOptions{}) })

	Info("hidden")
	Warn("shown", "link", 3)
	Error("failed", errors.New("boom"), "property", "Beach House")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown link=3")
	assert.Contains(t, out, `[ERROR] failed err=boom property="Beach House"`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://www.airbnb.com/calendar/ical/1.ics?…",
		RedactURL("https://www.airbnb.com/calendar/ical/1.ics?s=secret"))
	assert.Equal(t, "https://example.com/feed.ics", RedactURL("https://example.com/feed.ics"))
}
