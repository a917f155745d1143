// Package handler provides HTTP handlers for the OneMap API.
package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/onemap/onemap/internal/api/models"
	"github.com/onemap/onemap/internal/api/response"
	"github.com/onemap/onemap/internal/dispatch"
	"github.com/onemap/onemap/internal/provider/resilience"
)

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	dispatch  *dispatch.Service
}

// NewOpsHandler creates a new OpsHandler. registry and trips may be nil.
func NewOpsHandler(version, buildTime string, registry *resilience.Registry, trips *dispatch.Service) *OpsHandler {
	return &OpsHandler{
		version:   version,
		buildTime: buildTime,
		registry:  registry,
		dispatch:  trips,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]any{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. The service is ready only when a
// dispatch provider is configured.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.dispatch == nil {
		response.JSON(w, r, http.StatusServiceUnavailable, models.Health{
			Status:  models.HealthStatusFail,
			Time:    models.Timestamp(time.Now()),
			Details: map[string]any{"dispatch": "not configured"},
		})
		return
	}
	response.JSON(w, r, http.StatusOK, models.Health{
		Status:  models.HealthStatusOK,
		Time:    models.Timestamp(time.Now()),
		Details: map[string]any{"dispatch": h.dispatch.ProviderName()},
	})
}

// SystemStatus handles GET /v1/ops/status - provider and subsystem status.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	status := models.SystemStatus{
		Status:     models.HealthStatusOK,
		Time:       models.Timestamp(time.Now()),
		Subsystems: []models.SubsystemStatus{h.dispatchStatus()},
		Providers:  []models.ProviderStatus{},
	}

	if h.registry != nil {
		for _, ph := range h.registry.GetAllHealth() {
			ps := models.ProviderStatus{
				Provider:            ph.Name,
				Status:              healthStatus(ph.Status()),
				CircuitState:        ph.CircuitState.String(),
				ConsecutiveFailures: int(ph.Counts.ConsecutiveFailures),
				LastSuccessAt:       models.TimestampPtr(ph.LastSuccessAt),
				LastFailureAt:       models.TimestampPtr(ph.LastFailureAt),
			}
			if ph.LastError != "" {
				msg := ph.LastError
				ps.Message = &msg
			}
			status.Providers = append(status.Providers, ps)
		}
		status.Status = healthStatus(h.registry.Overall())
	}

	if status.Subsystems[0].Status == models.HealthStatusFail {
		status.Status = models.HealthStatusFail
	}

	response.JSON(w, r, http.StatusOK, status)
}

func (h *OpsHandler) dispatchStatus() models.SubsystemStatus {
	if h.dispatch == nil {
		detail := "not configured"
		return models.SubsystemStatus{Name: "dispatch", Status: models.HealthStatusFail, Detail: &detail}
	}
	stats := h.dispatch.CacheStats()
	detail := fmt.Sprintf("%s: %d cached trips, %d fresh", stats.Provider, stats.TripEntries, stats.FreshEntries)
	return models.SubsystemStatus{Name: "dispatch", Status: models.HealthStatusOK, Detail: &detail}
}

func healthStatus(s string) models.HealthStatus {
	switch s {
	case resilience.StatusUnhealthy:
		return models.HealthStatusFail
	case resilience.StatusDegraded:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}
