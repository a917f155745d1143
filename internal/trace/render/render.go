// Package render turns an annotated trace into drawable map primitives.
//
// Speeding runs become lines and need at least two points. Idling and other
// exception runs become one marker anchored at the run's first point; the
// remaining points of such a run are kept in the trace but not drawn.
package render

import (
	"time"

	"github.com/onemap/onemap/internal/trace"
)

// DefaultTimezone is used for labels when Options.Location is nil.
const DefaultTimezone = "America/New_York"

// Options controls how a trace is rendered.
type Options struct {
	// Location is the display time zone for labels.
	Location *time.Location

	// SingleSpeedingAsMarker draws a one-point speeding run as a marker
	// instead of dropping it.
	SingleSpeedingAsMarker bool

	// ShowExceptions enables the safety layer. When false, Lines and
	// Markers are empty.
	ShowExceptions bool
}

// Line is a connected exception path.
type Line struct {
	Category trace.Category
	Points   []trace.Coordinate
	Popup    string
}

// Marker is a single exception pin.
type Marker struct {
	Category   trace.Category
	Coordinate trace.Coordinate
	Popup      string

	// PointCount is the size of the run the marker stands for.
	PointCount int
}

// HoverMarker is an invisible tooltip target on the path.
type HoverMarker struct {
	Coordinate trace.Coordinate
	Label      string
}

// Scene is everything the map layer needs to draw one vehicle-trip.
type Scene struct {
	Path    []trace.Coordinate
	Hover   []HoverMarker
	Lines   []Line
	Markers []Marker

	// Dropped counts segments the policy refused to draw.
	Dropped int
}

// Render applies the line/marker policy to tr.
func Render(tr trace.Trace, opts Options) Scene {
	loc := opts.location()

	scene := Scene{
		Path:  tr.Polyline,
		Hover: make([]HoverMarker, 0, len(tr.Hover)),
	}
	for _, h := range tr.Hover {
		scene.Hover = append(scene.Hover, HoverMarker{
			Coordinate: h.Coordinate,
			Label:      HoverLabel(h, loc),
		})
	}

	if !opts.ShowExceptions {
		return scene
	}

	for _, seg := range tr.Segments {
		popup := PopupLabel(seg, loc)

		switch seg.Category {
		case trace.CategorySpeeding:
			if len(seg.Points) > 1 {
				scene.Lines = append(scene.Lines, Line{
					Category: seg.Category,
					Points:   seg.Points,
					Popup:    popup,
				})
				continue
			}
			if !opts.SingleSpeedingAsMarker {
				scene.Dropped++
				continue
			}
			scene.Markers = append(scene.Markers, markerFor(seg, popup))
		case trace.CategoryIdling, trace.CategoryOther:
			scene.Markers = append(scene.Markers, markerFor(seg, popup))
		default:
			scene.Dropped++
		}
	}

	return scene
}

func markerFor(seg trace.Segment, popup string) Marker {
	return Marker{
		Category:   seg.Category,
		Coordinate: seg.First(),
		Popup:      popup,
		PointCount: len(seg.Points),
	}
}

func (o Options) location() *time.Location {
	if o.Location != nil {
		return o.Location
	}
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
