// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/rental-calendar/backend/internal/api/handlers"
	"github.com/rental-calendar/backend/internal/api/middleware"
	"github.com/rental-calendar/backend/internal/calendar"
	"github.com/rental-calendar/backend/internal/config"
	"github.com/rental-calendar/backend/internal/export"
	"github.com/rental-calendar/backend/internal/storage"
	"github.com/rental-calendar/backend/internal/websocket"
)

// Services are the dependencies the handlers are built from. Scheduler,
// Broadcaster and Hub may be nil; the routes needing them are then not
// registered.
type Services struct {
	DB           *storage.DB
	Properties   *storage.PropertyRepository
	Reservations *storage.ReservationRepository
	Maintenance  *storage.MaintenanceRepository
	Links        *storage.LinkRepository
	Orchestrator *calendar.Orchestrator
	Scheduler    *calendar.Scheduler
	Config       *config.Live
	Hub          *websocket.Hub
	Broadcaster  *websocket.EventBroadcaster
	Version      string
	Now          func() time.Time
}

// NewServices builds the repositories over db.
func NewServices(db *storage.DB) Services {
	return Services{
		DB:           db,
		Properties:   storage.NewPropertyRepository(db),
		Reservations: storage.NewReservationRepository(db),
		Maintenance:  storage.NewMaintenanceRepository(db),
		Links:        storage.NewLinkRepository(db),
		Now:          time.Now,
	}
}

// generator builds an export generator from the current configuration.
func (s Services) generator() *export.Generator {
	cfg := s.Config.Get()
	return export.NewGenerator(cfg.TimeWindows(), export.NewWriter(cfg.Export.ProductID))
}

// NewRouter creates and configures the HTTP router with all routes.
func NewRouter(s Services) *mux.Router {
	if s.Now == nil {
		s.Now = time.Now
	}

	r := mux.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logging)
	r.Use(middleware.ErrorRecovery)

	// Public export feed, addressed by the property's unguessable GUID.
	r.HandleFunc("/ical/{guid}", handlers.ExportCalendar(s.Properties, s.Reservations, s.Maintenance, s.generator)).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(s.DB)).Methods(http.MethodGet)
	api.HandleFunc("/status", handlers.Status(s.DB, s.Hub, s.Orchestrator, s.Scheduler, s.Version)).Methods(http.MethodGet)

	if s.Hub != nil {
		api.HandleFunc("/ws", handlers.WebSocketUpgrade(s.Hub)).Methods(http.MethodGet)
	}

	// Sync endpoints
	api.HandleFunc("/sync", handlers.StreamSync(s.Orchestrator)).Methods(http.MethodGet)
	if s.Scheduler != nil {
		api.HandleFunc("/sync", handlers.TriggerSync(s.Scheduler, s.Broadcaster)).Methods(http.MethodPost)
	}
	api.HandleFunc("/sync/needed", handlers.SyncNeeded(s.Orchestrator)).Methods(http.MethodGet)

	// Import link endpoints
	api.HandleFunc("/links", handlers.ListLinks(s.Links)).Methods(http.MethodGet)
	api.HandleFunc("/links", handlers.CreateLink(s.Links, s.Properties, s.Orchestrator.Partners)).Methods(http.MethodPost)

	// Property endpoints
	api.HandleFunc("/properties", handlers.ListProperties(s.Properties)).Methods(http.MethodGet)
	api.HandleFunc("/properties", handlers.CreateProperty(s.Properties)).Methods(http.MethodPost)

	// Reservation endpoints
	api.HandleFunc("/reservations", handlers.ListReservations(s.Reservations, s.Now)).Methods(http.MethodGet)
	api.HandleFunc("/reservations", handlers.CreateReservation(s.Reservations, s.Properties, s.Now)).Methods(http.MethodPost)
	api.HandleFunc("/reservations/{id:[0-9]+}", handlers.DeleteReservation(s.Reservations)).Methods(http.MethodDelete)

	// Maintenance endpoints
	api.HandleFunc("/maintenance", handlers.ListMaintenance(s.Maintenance, s.Now)).Methods(http.MethodGet)
	api.HandleFunc("/maintenance", handlers.CreateMaintenance(s.Maintenance, s.Properties)).Methods(http.MethodPost)
	api.HandleFunc("/maintenance/{id:[0-9]+}", handlers.DeleteMaintenance(s.Maintenance)).Methods(http.MethodDelete)

	// Settings endpoints
	api.HandleFunc("/settings", handlers.GetSettings(s.Config)).Methods(http.MethodGet)
	api.HandleFunc("/settings", handlers.UpdateSettings(s.Config)).Methods(http.MethodPut)

	return r
}
