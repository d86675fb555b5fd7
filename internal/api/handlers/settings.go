package handlers

import (
	"net/http"

	"github.com/rental-calendar/backend/internal/api/middleware"
	"github.com/rental-calendar/backend/internal/config"
	"github.com/rental-calendar/backend/internal/log"
)

// SettingsResponse is the runtime-adjustable part of the configuration.
type SettingsResponse struct {
	Sync     config.SyncConfig               `json:"sync"`
	Export   config.ExportConfig             `json:"export"`
	Partners map[string]config.PartnerConfig `json:"partners"`
}

func settingsFrom(cfg *config.Config) SettingsResponse {
	return SettingsResponse{Sync: cfg.Sync, Export: cfg.Export, Partners: cfg.Partners}
}

// GetSettings returns the current sync, export and partner settings.
func GetSettings(live *config.Live) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, settingsFrom(live.Get()))
	}
}

// UpdateSettings writes new settings to the config file and applies them.
// Sections left out of the body keep their current values. The listen
// address and data directory cannot be changed here.
func UpdateSettings(live *config.Live) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Sync     *config.SyncConfig              `json:"sync"`
			Export   *config.ExportConfig            `json:"export"`
			Partners map[string]config.PartnerConfig `json:"partners"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		onDisk, err := config.Load(live.Path())
		if err != nil {
			log.Error("reading config for update", err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to read settings")
			return
		}
		if req.Sync != nil {
			onDisk.Sync = *req.Sync
		}
		if req.Export != nil {
			onDisk.Export = *req.Export
		}
		if req.Partners != nil {
			onDisk.Partners = req.Partners
		}
		onDisk.Normalize()
		if err := onDisk.Validate(); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
			return
		}

		if err := config.Save(live.Path(), onDisk); err != nil {
			log.Error("saving settings", err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to save settings")
			return
		}
		cfg, err := live.Reload()
		if err != nil {
			log.Error("applying settings", err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to apply settings")
			return
		}
		writeJSON(w, http.StatusOK, settingsFrom(cfg))
	}
}
