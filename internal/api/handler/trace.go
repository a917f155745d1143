package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/onemap/onemap/internal/api/models"
	"github.com/onemap/onemap/internal/api/response"
	"github.com/onemap/onemap/internal/dispatch"
	"github.com/onemap/onemap/internal/trace"
	"github.com/onemap/onemap/internal/trace/render"
	"github.com/onemap/onemap/internal/tripmap"
)

// TraceSegmenter renders a caller-supplied ping stream.
type TraceSegmenter interface {
	Options(ctx context.Context, showExceptions bool) render.Options
	SegmentPoints(ctx context.Context, points []trace.Point, opts render.Options) *tripmap.Period
}

// TraceHandler segments ad-hoc traces that did not come from dispatch.
type TraceHandler struct {
	segmenter TraceSegmenter
}

// NewTraceHandler creates a TraceHandler.
func NewTraceHandler(segmenter TraceSegmenter) *TraceHandler {
	return &TraceHandler{segmenter: segmenter}
}

// SegmentTrace handles POST /v1/traces:segment.
func (h *TraceHandler) SegmentTrace(w http.ResponseWriter, r *http.Request) {
	var input models.SegmentRequest
	if err := decodeJSON(w, r, &input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}
	if err := validate.Struct(input); err != nil {
		response.BadRequest(w, r, "validation failed", fieldErrors(err))
		return
	}

	points, skipped, err := dispatch.DecodePoints(input.Points)
	if err != nil {
		response.BadRequest(w, r, "points must be an array", []models.FieldError{{
			Field:   "points",
			Code:    "array",
			Message: "must be an array of pings or point features",
		}})
		return
	}

	show := true
	if input.ShowExceptions != nil {
		show = *input.ShowExceptions
	}
	opts := h.segmenter.Options(r.Context(), show)
	if input.SingleSpeedingAsMarker != nil {
		opts.SingleSpeedingAsMarker = *input.SingleSpeedingAsMarker
	}
	if input.Timezone != "" {
		// Already checked by the timezone validator.
		if loc, err := time.LoadLocation(input.Timezone); err == nil {
			opts.Location = loc
		}
	}

	period := h.segmenter.SegmentPoints(r.Context(), points, opts)
	period.SkippedPoints = skipped

	if response.WantsGeoJSON(r) {
		response.GeoJSON(w, r, http.StatusOK, period.FeatureCollection())
		return
	}
	response.JSON(w, r, http.StatusOK, periodView(period))
}
