package calendar

import (
	"fmt"

	"github.com/rental-calendar/backend/internal/log"
)

// FetchError reports a feed that could not be retrieved. StatusCode is
// set for non-2xx responses.
type FetchError struct {
	URL        string
	StatusCode int
	Empty      bool
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("fetching %s: %v", log.RedactURL(e.URL), e.Err)
	case e.Empty:
		return fmt.Sprintf("fetching %s: empty body", log.RedactURL(e.URL))
	default:
		return fmt.Sprintf("fetching %s: status %d", log.RedactURL(e.URL), e.StatusCode)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// StoreError reports a persistence failure that aborted a link's sync.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
