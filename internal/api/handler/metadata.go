package handler

import (
	"net/http"

	"github.com/onemap/onemap/internal/api/models"
	"github.com/onemap/onemap/internal/api/response"
	"github.com/onemap/onemap/internal/dispatch"
	"github.com/onemap/onemap/internal/trace"
)

// MetadataHandler serves static reference data.
type MetadataHandler struct {
	depots []dispatch.Depot
}

// NewMetadataHandler creates a MetadataHandler. A nil depot table falls back
// to dispatch.DefaultDepots.
func NewMetadataHandler(depots []dispatch.Depot) *MetadataHandler {
	if depots == nil {
		depots = dispatch.DefaultDepots()
	}
	return &MetadataHandler{depots: depots}
}

// GetEnums handles GET /v1/metadata/enums.
func (h *MetadataHandler) GetEnums(w http.ResponseWriter, r *http.Request) {
	enums := models.Enums{}
	for _, c := range trace.Categories() {
		enums.Categories = append(enums.Categories, models.CategoryInfo{
			Code:  string(c),
			Label: c.Label(),
			Drawn: drawnAs(c),
		})
	}
	for _, p := range dispatch.Periods() {
		enums.Periods = append(enums.Periods, string(p))
	}
	for _, k := range dispatch.StopKinds() {
		enums.StopKinds = append(enums.StopKinds, string(k))
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	response.JSON(w, r, http.StatusOK, enums)
}

// ListDepots handles GET /v1/metadata/depots.
func (h *MetadataHandler) ListDepots(w http.ResponseWriter, r *http.Request) {
	list := models.DepotList{Items: make([]models.Depot, 0, len(h.depots))}
	for _, d := range h.depots {
		list.Items = append(list.Items, models.Depot{
			Name: d.Name,
			At:   models.Coordinate{Lat: d.Lat, Lon: d.Lon},
		})
	}
	response.JSON(w, r, http.StatusOK, list)
}

func drawnAs(c trace.Category) string {
	switch c {
	case trace.CategorySpeeding:
		return "line"
	case trace.CategoryIdling, trace.CategoryOther:
		return "marker"
	default:
		return "none"
	}
}
