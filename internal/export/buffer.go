// Package export renders a property's bookings and maintenance blocks as
// an iCal feed for partner platforms to import.
package export

import (
	"sort"
	"time"
)

// Span is a reservation's raw date range.
type Span struct {
	Start time.Time
	End   time.Time
}

// Buffer is the padding, in days, added around one reservation.
type Buffer struct {
	PreDays  int
	PostDays int
}

// AdjustBuffers assigns turnover padding to each span, returned in input
// order. Spans are walked by start date (stable for equal starts). A span's
// post-buffer is limited by the raw gap to the next span; the next span's
// pre-buffer may only use what is left of that gap, so padded intervals of
// neighbors never overlap. Both are capped by the maxima.
func AdjustBuffers(spans []Span, maxPre, maxPost int) []Buffer {
	maxPre = max(maxPre, 0)
	maxPost = max(maxPost, 0)

	order := make([]int, len(spans))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return spans[order[a]].Start.Before(spans[order[b]].Start)
	})

	buffers := make([]Buffer, len(spans))
	for pos, idx := range order {
		cur := spans[idx]

		pre := maxPre
		if pos > 0 {
			prevIdx := order[pos-1]
			gap := daysBetween(spans[prevIdx].End, cur.Start) - buffers[prevIdx].PostDays
			pre = clamp(gap, 0, maxPre)
		}

		post := maxPost
		if pos < len(order)-1 {
			next := spans[order[pos+1]]
			post = clamp(daysBetween(cur.End, next.Start), 0, maxPost)
		}

		buffers[idx] = Buffer{PreDays: pre, PostDays: post}
	}
	return buffers
}

// daysBetween counts calendar days from a to b.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
