package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rental-calendar/backend/internal/api/middleware"
	"github.com/rental-calendar/backend/internal/export"
	"github.com/rental-calendar/backend/internal/log"
	"github.com/rental-calendar/backend/internal/storage"
)

// ExportCalendar serves a property's bookings and maintenance blocks as an
// iCal feed. The property is addressed by its export GUID. generator is
// called per request so configuration reloads take effect.
func ExportCalendar(
	properties *storage.PropertyRepository,
	reservations *storage.ReservationRepository,
	maintenance *storage.MaintenanceRepository,
	generator func() *export.Generator,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		guid := mux.Vars(r)["guid"]

		property, err := properties.GetByExportGUID(ctx, guid)
		if err != nil {
			log.Error("loading property for export", err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load property")
			return
		}
		if property == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Property not found")
			return
		}

		bookings, err := reservations.ListForExport(ctx, property.ID)
		if err != nil {
			log.Error("listing reservations for export", err, "property", property.ID)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load reservations")
			return
		}
		blocks, err := maintenance.ListForExport(ctx, property.ID)
		if err != nil {
			log.Error("listing maintenance for export", err, "property", property.ID)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load maintenance blocks")
			return
		}

		doc, err := generator().Generate(property, bookings, blocks)
		if err != nil {
			log.Error("generating export", err, "property", property.ID)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to generate calendar")
			return
		}

		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		w.Write(doc)
	}
}
