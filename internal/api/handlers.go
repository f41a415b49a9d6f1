// Package api provides the REST API handlers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/optscale/flavorsearch/internal/models"
)

// FlavorFinder runs flavor lookups for the search endpoint.
type FlavorFinder interface {
	FindFlavor(ctx context.Context, cloudType models.CloudType, resourceType models.ResourceType, region string, req models.FlavorRequirements, mode models.MatchMode) (map[string]interface{}, error)
}

// Recommender produces migration recommendations.
type Recommender interface {
	Recommend(ctx context.Context, organizationID string) ([]models.MigrationRecommendation, error)
}

// InventoryWriter ingests discovered instances and raw billing records.
type InventoryWriter interface {
	UpsertInstances(ctx context.Context, instances []models.DiscoveredInstance) error
	RecordExpenses(ctx context.Context, expenses []models.RawExpense) error
}

// Handler handles API requests.
type Handler struct {
	finder      FlavorFinder
	recommender Recommender
	inventory   InventoryWriter
	logger      zerolog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(finder FlavorFinder, recommender Recommender, inventory InventoryWriter, logger zerolog.Logger) *Handler {
	return &Handler{
		finder:      finder,
		recommender: recommender,
		inventory:   inventory,
		logger:      logger.With().Str("component", "api").Logger(),
	}
}

// Response is a generic API response.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SearchRequest is the request body for a flavor search.
type SearchRequest struct {
	CloudType            string  `json:"cloud_type"`
	ResourceType         string  `json:"resource_type"`
	Region               string  `json:"region"`
	Mode                 string  `json:"mode"`
	SourceFlavorID       string  `json:"source_flavor_id"`
	CPU                  int     `json:"cpu,omitempty"`
	RAM                  float64 `json:"ram,omitempty"`
	CoreFraction         int     `json:"core_fraction,omitempty"`
	OSType               string  `json:"os_type,omitempty"`
	MeterID              string  `json:"meter_id,omitempty"`
	PreinstalledSoftware string  `json:"preinstalled,omitempty"`
}

// RecommendationsResponse is the response for the migration endpoint.
type RecommendationsResponse struct {
	Recommendations []models.MigrationRecommendation `json:"recommendations"`
	Total           int                              `json:"total"`
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
		},
	})
}

// SearchFlavor handles POST /api/v1/flavors/search.
func (h *Handler) SearchFlavor(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}
	if req.CloudType == "" || req.Region == "" || req.SourceFlavorID == "" {
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"cloud_type, region and source_flavor_id are required")
		return
	}
	resourceType := models.ResourceType(req.ResourceType)
	if req.ResourceType == "" {
		resourceType = models.ResourceInstance
	}
	mode := models.MatchMode(req.Mode)
	if req.Mode == "" {
		mode = models.ModeCurrent
	}

	result, err := h.finder.FindFlavor(r.Context(),
		models.CloudType(req.CloudType), resourceType, req.Region,
		models.FlavorRequirements{
			SourceFlavorID:       req.SourceFlavorID,
			CPU:                  req.CPU,
			RAM:                  req.RAM,
			CoreFraction:         req.CoreFraction,
			OSType:               req.OSType,
			MeterID:              req.MeterID,
			PreinstalledSoftware: req.PreinstalledSoftware,
		}, mode)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, Response{Success: true, Data: result})
}

// MigrationRecommendations handles GET /api/v1/recommendations/migration.
func (h *Handler) MigrationRecommendations(w http.ResponseWriter, r *http.Request) {
	organizationID := r.URL.Query().Get("organization_id")
	if organizationID == "" {
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "organization_id is required")
		return
	}

	recs, err := h.recommender.Recommend(r.Context(), organizationID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if recs == nil {
		recs = []models.MigrationRecommendation{}
	}

	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    RecommendationsResponse{Recommendations: recs, Total: len(recs)},
	})
}

// ReportInstances handles POST /api/v1/resources.
func (h *Handler) ReportInstances(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Instances []models.DiscoveredInstance `json:"instances"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}
	if len(req.Instances) == 0 {
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "instances are required")
		return
	}
	if err := h.inventory.UpsertInstances(r.Context(), req.Instances); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]interface{}{"stored": len(req.Instances)},
	})
}

// ReportExpenses handles POST /api/v1/expenses.
func (h *Handler) ReportExpenses(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Expenses []models.RawExpense `json:"expenses"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body")
		return
	}
	if len(req.Expenses) == 0 {
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "expenses are required")
		return
	}
	if err := h.inventory.RecordExpenses(r.Context(), req.Expenses); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]interface{}{"stored": len(req.Expenses)},
	})
}

// writeDomainError maps domain errors to HTTP statuses. No-match is not an
// error: callers see it as a 200 with an empty result, so only hard
// failures reach this path.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidParameters):
		h.writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, models.ErrRegionNotFound):
		h.writeError(w, http.StatusNotFound, "REGION_NOT_FOUND", err.Error())
	case errors.Is(err, models.ErrForbidden):
		h.writeError(w, http.StatusForbidden, "FORBIDDEN", err.Error())
	default:
		h.logger.Error().Err(err).Msg("request failed")
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}
