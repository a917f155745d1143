package trace

import "time"

// HoverPoint is a valid ping annotated for a hover tooltip.
type HoverPoint struct {
	Coordinate Coordinate
	Timestamp  *time.Time
	SpeedKph   float64
}

// Trace is the full annotation of one vehicle-trip.
type Trace struct {
	// Polyline holds every valid coordinate in input order.
	Polyline []Coordinate

	// Hover holds one entry per valid point.
	Hover []HoverPoint

	// Segments is identical to Segments(points).
	Segments []Segment

	// Dropped counts points skipped for invalid coordinates.
	Dropped int
}

// Annotate builds the polyline, hover points and exception segments in one pass.
func Annotate(points []Point) Trace {
	t := Trace{
		Polyline: make([]Coordinate, 0, len(points)),
		Hover:    make([]HoverPoint, 0, len(points)),
	}

	var s segmenter
	for i := range points {
		p := &points[i]
		s.add(p)
		if !p.Valid() {
			t.Dropped++
			continue
		}
		c := p.Coordinate()
		t.Polyline = append(t.Polyline, c)
		t.Hover = append(t.Hover, HoverPoint{
			Coordinate: c,
			Timestamp:  p.Timestamp,
			SpeedKph:   p.Speed(),
		})
	}
	s.close()
	t.Segments = s.out

	return t
}
