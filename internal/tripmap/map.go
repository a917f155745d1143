package tripmap

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/onemap/onemap/internal/dispatch"
	"github.com/onemap/onemap/internal/trace"
	"github.com/onemap/onemap/internal/trace/render"
	"github.com/onemap/onemap/pkg/polyline"
)

// LayerStop tags planned stops in exported GeoJSON.
const LayerStop = "stop"

// Period is the rendered state of one vehicle-trip.
type Period struct {
	Period        dispatch.Period
	VehicleNumber string
	DeviceID      string

	Trace   trace.Trace
	Scene   render.Scene
	Summary trace.Summary

	// Encoded is the Google-encoded polyline of the full path.
	Encoded string

	// Bounds is zero when HasBounds is false.
	Bounds    polyline.Bounds
	HasBounds bool

	Stops []dispatch.Stop

	// SkippedPoints counts trace elements that could not be decoded at all.
	SkippedPoints int
}

// Map is the view state for one route on one date. It is built per request
// and never mutated; toggling the safety layer yields a new value.
type Map struct {
	Route       string
	Date        time.Time
	DriverName  string
	DriverPhone string
	DVILink     string
	FetchedAt   time.Time

	AM *Period
	PM *Period

	options render.Options
}

// ShowExceptions reports whether the safety layer is drawn.
func (m Map) ShowExceptions() bool {
	return m.options.ShowExceptions
}

// Periods returns the non-nil periods in display order.
func (m Map) Periods() []*Period {
	out := make([]*Period, 0, 2)
	for _, p := range []*Period{m.AM, m.PM} {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

// WithExceptions returns a copy of m with the safety layer switched on or
// off. The receiver is left untouched.
func (m Map) WithExceptions(show bool) Map {
	next := m
	next.options.ShowExceptions = show
	next.AM = m.AM.rerender(next.options)
	next.PM = m.PM.rerender(next.options)
	return next
}

func (p *Period) rerender(opts render.Options) *Period {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Scene = render.Render(p.Trace, opts)
	return &cp
}

// FeatureCollection merges both periods into one GeoJSON collection. Every
// feature carries a "period" property, and planned stops are appended as
// point features on the stop layer.
func (m Map) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range m.Periods() {
		for _, f := range p.FeatureCollection().Features {
			fc.Append(f)
		}
	}

	var bounds []polyline.Coordinate
	for _, p := range m.Periods() {
		if p.HasBounds {
			bounds = append(bounds,
				polyline.Coordinate{Lat: p.Bounds.South, Lon: p.Bounds.West},
				polyline.Coordinate{Lat: p.Bounds.North, Lon: p.Bounds.East},
			)
		}
	}
	if b, ok := polyline.BoundsOf(bounds); ok {
		fc.BBox = geojson.BBox{b.West, b.South, b.East, b.North}
	}

	return fc
}

// FeatureCollection exports one period, stops included.
func (p *Period) FeatureCollection() *geojson.FeatureCollection {
	fc := p.Scene.FeatureCollection()
	for _, s := range p.Stops {
		f := geojson.NewFeature(orbPoint(s.Coordinate))
		f.Properties["layer"] = LayerStop
		f.Properties["kind"] = string(s.Kind)
		f.Properties["sequence"] = s.Sequence
		f.Properties["popup"] = s.Info
		fc.Append(f)
	}
	for _, f := range fc.Features {
		f.Properties["period"] = string(p.Period)
	}
	return fc
}

func orbPoint(c trace.Coordinate) orb.Point {
	return orb.Point{c.Lon, c.Lat}
}
