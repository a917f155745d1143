package trace

import (
	"time"

	"github.com/onemap/onemap/pkg/polyline"
)

// Summary aggregates the exception segments of one trip.
type Summary struct {
	// Segments counts emitted segments per category.
	Segments map[Category]int

	// Points counts points per category across emitted segments.
	Points map[Category]int

	// SpeedingMeters is the summed path length of all speeding runs.
	SpeedingMeters float64

	// FirstExceptionAt and LastExceptionAt span the known segment start times.
	FirstExceptionAt *time.Time
	LastExceptionAt  *time.Time
}

// Total returns the number of emitted segments.
func (s Summary) Total() int {
	n := 0
	for _, c := range s.Segments {
		n += c
	}
	return n
}

// Summarize reduces segments to per-category counts.
func Summarize(segments []Segment) Summary {
	sum := Summary{
		Segments: make(map[Category]int),
		Points:   make(map[Category]int),
	}

	for _, seg := range segments {
		sum.Segments[seg.Category]++
		sum.Points[seg.Category] += len(seg.Points)

		if seg.Category == CategorySpeeding {
			sum.SpeedingMeters += polyline.Length(seg.Points)
		}

		ts := seg.Start.Timestamp
		if ts == nil {
			continue
		}
		if sum.FirstExceptionAt == nil || ts.Before(*sum.FirstExceptionAt) {
			sum.FirstExceptionAt = ts
		}
		if sum.LastExceptionAt == nil || ts.After(*sum.LastExceptionAt) {
			sum.LastExceptionAt = ts
		}
	}

	return sum
}
