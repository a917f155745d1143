// Package tripmap builds the map view of a route's AM and PM vehicle-trips:
// path, hover labels, exception lines and markers, stops and summaries.
package tripmap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/onemap/onemap/internal/dispatch"
	onetrace "github.com/onemap/onemap/internal/trace"
	"github.com/onemap/onemap/internal/trace/render"
	"github.com/onemap/onemap/pkg/polyline"
)

const tracerName = "github.com/onemap/onemap/internal/tripmap"

// ErrInvalidRoute is returned when the route is empty after trimming.
var ErrInvalidRoute = errors.New("invalid route")

// TripSource fetches trips; *dispatch.Service satisfies it.
type TripSource interface {
	GetTrip(ctx context.Context, route string, date time.Time) (*dispatch.Trip, error)
}

// Flags exposes the rendering switches; *featureflags.Service satisfies it.
type Flags interface {
	SingleSpeedingAsMarker(ctx context.Context) bool
}

// Metrics records segmentation outcomes; *telemetry.TraceMetrics satisfies it.
type Metrics interface {
	RecordSegments(ctx context.Context, category string, n int)
	RecordDropped(ctx context.Context, period string, points, segments int)
}

// ServiceConfig holds configuration for the trip map service.
type ServiceConfig struct {
	Trips TripSource

	// Flags is optional; without it one-point speeding runs are dropped.
	Flags Flags

	// Location is the display time zone (default: America/New_York).
	Location *time.Location

	// Metrics is optional.
	Metrics Metrics

	Logger zerolog.Logger
}

// Request asks for the map of one route on one date.
type Request struct {
	Route          string
	Date           time.Time
	ShowExceptions bool
}

// Service assembles trip maps.
type Service struct {
	trips    TripSource
	flags    Flags
	location *time.Location
	metrics  Metrics
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewService creates a new trip map service.
func NewService(cfg ServiceConfig) *Service {
	loc := cfg.Location
	if loc == nil {
		var err error
		if loc, err = time.LoadLocation(render.DefaultTimezone); err != nil {
			loc = time.UTC
		}
	}

	return &Service{
		trips:    cfg.Trips,
		flags:    cfg.Flags,
		location: loc,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		tracer:   otel.Tracer(tracerName),
	}
}

// Location returns the display time zone.
func (s *Service) Location() *time.Location {
	return s.location
}

// GetMap fetches the trip and renders both periods concurrently.
func (s *Service) GetMap(ctx context.Context, req Request) (*Map, error) {
	route := dispatch.NormalizeRoute(req.Route)
	if route == "" {
		return nil, ErrInvalidRoute
	}

	ctx, span := s.tracer.Start(ctx, "tripmap.GetMap", trace.WithAttributes(
		attribute.String("trip.route", route),
		attribute.String("trip.date", req.Date.Format(dispatch.DateLayout)),
		attribute.Bool("trip.show_exceptions", req.ShowExceptions),
	))
	defer span.End()

	if s.trips == nil {
		err := fmt.Errorf("no trip source configured: %w", dispatch.ErrProviderUnavailable)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	trip, err := s.trips.GetTrip(ctx, route, req.Date)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetching trip")
		return nil, fmt.Errorf("fetching trip: %w", err)
	}

	opts := s.Options(ctx, req.ShowExceptions)
	m := &Map{
		Route:       trip.Route,
		Date:        trip.Date,
		DriverName:  trip.DriverName,
		DriverPhone: trip.DriverPhone,
		DVILink:     trip.DVILink,
		FetchedAt:   trip.FetchedAt,
		options:     opts,
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, period := range dispatch.Periods() {
		vt := trip.ForPeriod(period)
		if vt == nil {
			continue
		}
		g.Go(func() error {
			p := s.buildPeriod(gctx, route, vt, opts)
			switch period {
			case dispatch.PeriodAM:
				m.AM = p
			case dispatch.PeriodPM:
				m.PM = p
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("building periods: %w", err)
	}

	total := 0
	for _, p := range m.Periods() {
		total += p.Summary.Total()
	}
	span.SetAttributes(attribute.Int("trip.segments", total))

	return m, nil
}

// Options resolves the render options for a request.
func (s *Service) Options(ctx context.Context, showExceptions bool) render.Options {
	opts := render.Options{
		Location:       s.location,
		ShowExceptions: showExceptions,
	}
	if s.flags != nil {
		opts.SingleSpeedingAsMarker = s.flags.SingleSpeedingAsMarker(ctx)
	}
	return opts
}

// SegmentPoints renders a caller-supplied ping stream as a standalone period.
func (s *Service) SegmentPoints(ctx context.Context, points []onetrace.Point, opts render.Options) *Period {
	if opts.Location == nil {
		opts.Location = s.location
	}
	return s.buildPeriod(ctx, "", &dispatch.VehicleTrip{Points: points}, opts)
}

func (s *Service) buildPeriod(ctx context.Context, route string, vt *dispatch.VehicleTrip, opts render.Options) *Period {
	tr := onetrace.Annotate(vt.Points)
	scene := render.Render(tr, opts)

	p := &Period{
		Period:        vt.Period,
		VehicleNumber: vt.VehicleNumber,
		DeviceID:      vt.DeviceID,
		Trace:         tr,
		Scene:         scene,
		Summary:       onetrace.Summarize(tr.Segments),
		Encoded:       polyline.Encode(tr.Polyline),
		Stops:         vt.Stops,
		SkippedPoints: vt.SkippedPoints,
	}

	extent := make([]polyline.Coordinate, 0, len(tr.Polyline)+len(vt.Stops))
	extent = append(extent, tr.Polyline...)
	for _, stop := range vt.Stops {
		extent = append(extent, stop.Coordinate)
	}
	p.Bounds, p.HasBounds = polyline.BoundsOf(extent)

	if tr.Dropped > 0 || scene.Dropped > 0 || vt.SkippedPoints > 0 {
		s.logger.Debug().
			Str("route", route).
			Str("period", periodName(vt.Period)).
			Int("invalid_points", tr.Dropped).
			Int("skipped_points", vt.SkippedPoints).
			Int("undrawn_segments", scene.Dropped).
			Msg("points dropped from trace")
	}

	if s.metrics != nil {
		for category, n := range p.Summary.Segments {
			s.metrics.RecordSegments(ctx, string(category), n)
		}
		s.metrics.RecordDropped(ctx, periodName(vt.Period), tr.Dropped+vt.SkippedPoints, scene.Dropped)
	}

	return p
}

func periodName(p dispatch.Period) string {
	if p == "" {
		return "adhoc"
	}
	return strings.ToLower(string(p))
}
