package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/rental-calendar/backend/internal/api/middleware"
	"github.com/rental-calendar/backend/internal/log"
	"github.com/rental-calendar/backend/internal/storage"
	"github.com/rental-calendar/backend/internal/storage/models"
)

// CreatePropertyRequest is the body of POST /api/properties.
type CreatePropertyRequest struct {
	Name     string `json:"name"`
	Timezone string `json:"timezone"`
}

// ListProperties returns all properties.
func ListProperties(properties *storage.PropertyRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := properties.List(r.Context())
		if err != nil {
			log.Error("listing properties", err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query properties")
			return
		}
		if list == nil {
			list = []models.Property{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// CreateProperty adds a property and assigns its export GUID.
func CreateProperty(properties *storage.PropertyRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePropertyRequest
		if err := decodeJSON(w, r, &req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Name is required")
			return
		}
		if req.Timezone != "" {
			if _, err := time.LoadLocation(req.Timezone); err != nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Unknown timezone")
				return
			}
		}

		p := &models.Property{Name: req.Name, Timezone: req.Timezone}
		if err := properties.Create(r.Context(), p); err != nil {
			log.Error("creating property", err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create property")
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}
