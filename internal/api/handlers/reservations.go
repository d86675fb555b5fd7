package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/rental-calendar/backend/internal/api/middleware"
	"github.com/rental-calendar/backend/internal/log"
	"github.com/rental-calendar/backend/internal/storage"
	"github.com/rental-calendar/backend/internal/storage/models"
)

// CreateReservationRequest is the body of POST /api/reservations.
type CreateReservationRequest struct {
	PropertyID  int64       `json:"property_id"`
	Name        string      `json:"name"`
	Description null.String `json:"description"`
	StartDate   string      `json:"start_date"`
	EndDate     string      `json:"end_date"`
	StartTime   string      `json:"start_time"`
	EndTime     string      `json:"end_time"`
}

// ListReservations returns non-cancelled reservations of any source that
// overlap ?start=&end=, optionally for one ?property_id=.
func ListReservations(reservations *storage.ReservationRepository, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parseRangeFilter(r, now())
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
			return
		}

		list, err := reservations.ListByDateRange(r.Context(), f.Start, f.End, f.PropertyID)
		if err != nil {
			log.Error("listing reservations", err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query reservations")
			return
		}
		if list == nil {
			list = []models.Reservation{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// CreateReservation books a property internally. Bookings may not start
// before today in the property's timezone.
func CreateReservation(reservations *storage.ReservationRepository, properties *storage.PropertyRepository, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateReservationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		res, problems := req.validate()
		ctx := r.Context()
		var property *models.Property
		if len(problems) == 0 {
			var err error
			property, err = properties.GetByID(ctx, req.PropertyID)
			if err != nil {
				log.Error("loading property", err, "property", req.PropertyID)
				middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load property")
				return
			}
			if property == nil {
				middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Property not found")
				return
			}

			y, m, d := now().In(property.Location()).Date()
			today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
			if res.StartDate.Before(today) {
				problems = append(problems, "start_date must not be in the past")
			}
		}
		if len(problems) > 0 {
			middleware.WriteErrorWithDetails(w, http.StatusBadRequest, middleware.ErrValidation, "Invalid reservation", problems)
			return
		}

		if err := reservations.Create(ctx, res); err != nil {
			log.Error("creating reservation", err, "property", req.PropertyID)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create reservation")
			return
		}
		writeJSON(w, http.StatusCreated, res)
	}
}

// validate checks the request fields that need no lookup and builds the
// reservation.
func (req CreateReservationRequest) validate() (*models.Reservation, []string) {
	var problems []string
	res := &models.Reservation{
		PropertyID:  req.PropertyID,
		Source:      models.SourceInternal,
		Status:      models.ReservationConfirmed,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	}

	if res.Name == "" {
		problems = append(problems, "name is required")
	}

	var startErr, endErr error
	res.StartDate, startErr = parseDate(req.StartDate)
	if startErr != nil {
		problems = append(problems, "start_date: "+startErr.Error())
	}
	res.EndDate, endErr = parseDate(req.EndDate)
	if endErr != nil {
		problems = append(problems, "end_date: "+endErr.Error())
	}
	if startErr == nil && endErr == nil && res.EndDate.Before(res.StartDate) {
		problems = append(problems, "end_date must not be before start_date")
	}

	switch res.StartTime {
	case "", models.StartTimeEarly, models.StartTimeStandard:
	default:
		problems = append(problems, "start_time must be early or standard")
	}
	switch res.EndTime {
	case "", models.EndTimeStandard, models.EndTimeLate:
	default:
		problems = append(problems, "end_time must be standard or late")
	}
	return res, problems
}

// DeleteReservation removes an internal reservation. Partner reservations
// are owned by their feed and answer 404.
func DeleteReservation(reservations *storage.ReservationRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid reservation id")
			return
		}

		deleted, err := reservations.DeleteInternal(r.Context(), id)
		if err != nil {
			log.Error("deleting reservation", err, "id", id)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to delete reservation")
			return
		}
		if !deleted {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Internal reservation not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
