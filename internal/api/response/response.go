// Package response writes JSON, GeoJSON and problem responses.
package response

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/onemap/onemap/internal/api/middleware"
	"github.com/onemap/onemap/internal/api/models"
)

// ContentTypeGeoJSON is the media type for GeoJSON bodies (RFC 7946).
const ContentTypeGeoJSON = "application/geo+json"

// JSON writes data as JSON with the given status and the request id header.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	write(w, r, "application/json", status, data)
}

// GeoJSON writes a feature collection as application/geo+json.
func GeoJSON(w http.ResponseWriter, r *http.Request, status int, fc *geojson.FeatureCollection) {
	write(w, r, ContentTypeGeoJSON, status, fc)
}

func write(w http.ResponseWriter, r *http.Request, contentType string, status int, data any) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// NoContent writes a 204 No Content response.
func NoContent(w http.ResponseWriter, r *http.Request) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set("X-Request-Id", requestID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Error writes a Problem+JSON error response.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// BadRequest writes a 400 Bad Request error response.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(middleware.GetRequestID(r.Context()), detail, errors))
}

// NotFound writes a 404 Not Found error response.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(middleware.GetRequestID(r.Context()), detail))
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(middleware.GetRequestID(r.Context()), detail))
}

// ServiceUnavailable writes a 503 Service Unavailable error response.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(middleware.GetRequestID(r.Context()), detail))
}

// WantsGeoJSON reports whether the Accept header lists application/geo+json.
// Quality values are ignored; asking for GeoJSON at all is enough.
func WantsGeoJSON(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mt == ContentTypeGeoJSON {
			return true
		}
	}
	return false
}
