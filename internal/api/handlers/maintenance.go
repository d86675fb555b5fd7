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

// CreateMaintenanceRequest is the body of POST /api/maintenance.
type CreateMaintenanceRequest struct {
	PropertyID  int64       `json:"property_id"`
	StartDate   string      `json:"start_date"`
	EndDate     string      `json:"end_date"`
	Description string      `json:"description"`
	Type        null.String `json:"type"`
}

// ListMaintenance returns maintenance blocks overlapping ?start=&end=.
func ListMaintenance(maintenance *storage.MaintenanceRepository, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parseRangeFilter(r, now())
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
			return
		}

		list, err := maintenance.ListByDateRange(r.Context(), f.Start, f.End, f.PropertyID)
		if err != nil {
			log.Error("listing maintenance", err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query maintenance blocks")
			return
		}
		if list == nil {
			list = []models.MaintenanceBlock{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// CreateMaintenance blocks a property for the given days.
func CreateMaintenance(maintenance *storage.MaintenanceRepository, properties *storage.PropertyRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateMaintenanceRequest
		if err := decodeJSON(w, r, &req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		start, err := parseDate(req.StartDate)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "start_date: "+err.Error())
			return
		}
		end, err := parseDate(req.EndDate)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "end_date: "+err.Error())
			return
		}
		if end.Before(start) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "end_date must not be before start_date")
			return
		}

		ctx := r.Context()
		property, err := properties.GetByID(ctx, req.PropertyID)
		if err != nil {
			log.Error("loading property", err, "property", req.PropertyID)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load property")
			return
		}
		if property == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Property not found")
			return
		}

		block := &models.MaintenanceBlock{
			PropertyID:  property.ID,
			StartDate:   start,
			EndDate:     end,
			Description: strings.TrimSpace(req.Description),
			Type:        req.Type,
		}
		if err := maintenance.Create(ctx, block); err != nil {
			log.Error("creating maintenance block", err, "property", property.ID)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create maintenance block")
			return
		}
		writeJSON(w, http.StatusCreated, block)
	}
}

// DeleteMaintenance removes a maintenance block.
func DeleteMaintenance(maintenance *storage.MaintenanceRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid maintenance id")
			return
		}

		deleted, err := maintenance.Delete(r.Context(), id)
		if err != nil {
			log.Error("deleting maintenance block", err, "id", id)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to delete maintenance block")
			return
		}
		if !deleted {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Maintenance block not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
