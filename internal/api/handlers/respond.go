// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/rental-calendar/backend/internal/storage/models"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// pathID reads the numeric {id} route variable.
func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// rangeFilter is the start/end/property_id query used by the list endpoints.
type rangeFilter struct {
	Start      time.Time
	End        time.Time
	PropertyID int64
}

// parseRangeFilter reads ?start=&end=&property_id=. A missing start means
// today; a missing end means one year after start.
func parseRangeFilter(r *http.Request, now time.Time) (rangeFilter, error) {
	q := r.URL.Query()
	var f rangeFilter
	var err error

	if s := q.Get("start"); s != "" {
		if f.Start, err = parseDate(s); err != nil {
			return f, err
		}
	} else {
		y, m, d := now.Date()
		f.Start = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	if s := q.Get("end"); s != "" {
		if f.End, err = parseDate(s); err != nil {
			return f, err
		}
	} else {
		f.End = f.Start.AddDate(1, 0, 0)
	}

	if f.End.Before(f.Start) {
		return f, errors.New("end must not be before start")
	}

	if s := q.Get("property_id"); s != "" {
		if f.PropertyID, err = strconv.ParseInt(s, 10, 64); err != nil || f.PropertyID <= 0 {
			return f, fmt.Errorf("invalid property_id %q", s)
		}
	}
	return f, nil
}
