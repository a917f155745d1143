package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/onemap/onemap/internal/api/models"
	"github.com/onemap/onemap/internal/api/response"
	"github.com/onemap/onemap/internal/dispatch"
	"github.com/onemap/onemap/internal/tripmap"
)

// ExceptionDefaults decides whether the safety layer starts visible;
// *featureflags.Service satisfies it.
type ExceptionDefaults interface {
	ShowExceptionsByDefault(ctx context.Context) bool
}

// TripMapHandler serves rendered trip maps.
type TripMapHandler struct {
	maps     *tripmap.Service
	defaults ExceptionDefaults
	logger   zerolog.Logger
}

// NewTripMapHandler creates a TripMapHandler. defaults may be nil, in which
// case exceptions are shown unless the request says otherwise.
func NewTripMapHandler(maps *tripmap.Service, defaults ExceptionDefaults, logger zerolog.Logger) *TripMapHandler {
	return &TripMapHandler{maps: maps, defaults: defaults, logger: logger}
}

// GetTripMap handles POST /v1/trip-maps. It answers with GeoJSON when the
// client accepts application/geo+json.
func (h *TripMapHandler) GetTripMap(w http.ResponseWriter, r *http.Request) {
	var input models.TripMapRequest
	if err := decodeJSON(w, r, &input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if err := validate.Struct(input); err != nil {
		errs := fieldErrors(err)
		detail := "Invalid date format"
		if hasTag(errs, "required") {
			detail = "Missing route or date"
		}
		response.BadRequest(w, r, detail, errs)
		return
	}

	date, err := dispatch.ParseDate(input.Date)
	if err != nil {
		response.BadRequest(w, r, "Invalid date format", nil)
		return
	}

	show := true
	if input.ShowExceptions != nil {
		show = *input.ShowExceptions
	} else if h.defaults != nil {
		show = h.defaults.ShowExceptionsByDefault(r.Context())
	}

	m, err := h.maps.GetMap(r.Context(), tripmap.Request{
		Route:          input.Route,
		Date:           date,
		ShowExceptions: show,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if response.WantsGeoJSON(r) {
		response.GeoJSON(w, r, http.StatusOK, m.FeatureCollection())
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=60")
	response.JSON(w, r, http.StatusOK, tripMapView(m))
}

func (h *TripMapHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tripmap.ErrInvalidRoute):
		response.BadRequest(w, r, "Missing route or date", nil)
	case errors.Is(err, dispatch.ErrInvalidRequest):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, dispatch.ErrTripNotFound):
		response.NotFound(w, r, "no trip found for this route and date")
	case errors.Is(err, dispatch.ErrProviderUnavailable):
		response.ServiceUnavailable(w, r, "trip data is temporarily unavailable")
	default:
		h.logger.Error().Err(err).
			Str("request_id", requestID(r)).
			Msg("trip map failed")
		response.InternalError(w, r, "an unexpected error occurred")
	}
}
