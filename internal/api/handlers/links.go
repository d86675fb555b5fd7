package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/rental-calendar/backend/internal/api/middleware"
	"github.com/rental-calendar/backend/internal/log"
	"github.com/rental-calendar/backend/internal/storage"
	"github.com/rental-calendar/backend/internal/storage/models"
)

// CreateLinkRequest is the body of POST /api/links.
type CreateLinkRequest struct {
	PropertyID  int64  `json:"property_id"`
	PartnerName string `json:"partner_name"`
	URL         string `json:"url"`
}

// LinkResponse is an import link with its feed URL redacted.
type LinkResponse struct {
	models.ImportLink
	URL string `json:"url"`
}

func newLinkResponse(l models.ImportLink) LinkResponse {
	return LinkResponse{ImportLink: l, URL: log.RedactURL(l.URL)}
}

// ListLinks returns all import links. Feed URLs are returned without their
// query string, which usually carries the partner's access token.
func ListLinks(links *storage.LinkRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := links.List(r.Context())
		if err != nil {
			log.Error("listing links", err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query links")
			return
		}
		out := make([]LinkResponse, 0, len(list))
		for _, l := range list {
			out = append(out, newLinkResponse(l))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// CreateLink registers a partner feed for a property. partners lists the
// partner names a link may use.
func CreateLink(links *storage.LinkRepository, properties *storage.PropertyRepository, partners func() []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateLinkRequest
		if err := decodeJSON(w, r, &req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		req.URL = strings.TrimSpace(req.URL)
		if !slices.Contains(partners(), req.PartnerName) {
			middleware.WriteErrorWithDetails(w, http.StatusBadRequest, middleware.ErrValidation,
				"Unknown partner", map[string]any{"partners": partners()})
			return
		}
		if !validFeedURL(req.URL) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "URL must be an absolute http or https URL")
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

		link := &models.ImportLink{
			PropertyID:       property.ID,
			PropertyName:     property.Name,
			PropertyTimezone: property.Timezone,
			PartnerName:      req.PartnerName,
			URL:              req.URL,
			Active:           true,
		}
		if err := links.Create(ctx, link); err != nil {
			if errors.Is(err, storage.ErrDuplicateLink) {
				middleware.WriteError(w, http.StatusConflict, middleware.ErrConflict, "This property already has a link for that partner")
				return
			}
			log.Error("creating link", err, "property", property.ID, "partner", req.PartnerName)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create link")
			return
		}

		log.Info("import link added", "property", property.ID, "partner", link.PartnerName, "url", log.RedactURL(link.URL))
		writeJSON(w, http.StatusCreated, newLinkResponse(*link))
	}
}

func validFeedURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
