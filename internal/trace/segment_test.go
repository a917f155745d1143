package trace_test

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onemap/onemap/internal/trace"
)

func pt(lat, lon float64, exception string) trace.Point {
	return trace.Point{Lat: lat, Lon: lon, ExceptionType: exception}
}

func at(hour, minute int) *time.Time {
	t := time.Date(2024, 5, 1, hour, minute, 0, 0, time.UTC)
	return &t
}

func TestSegments_SpeedingRunBetweenNormalPoints(t *testing.T) {
	points := []trace.Point{
		pt(40.0, -74.0, ""),
		pt(40.1, -74.1, "Speeding 62mph"),
		pt(40.2, -74.2, "Speeding 65mph"),
		pt(40.3, -74.3, ""),
	}

	segments := trace.Segments(points)

	require.Len(t, segments, 1)
	assert.Equal(t, trace.CategorySpeeding, segments[0].Category)
	assert.Equal(t, []trace.Coordinate{
		{Lat: 40.1, Lon: -74.1},
		{Lat: 40.2, Lon: -74.2},
	}, segments[0].Points)
}

func TestSegments_SingleIdlingPoint(t *testing.T) {
	points := []trace.Point{
		pt(40.0, -74.0, ""),
		pt(40.1, -74.1, "Idling"),
		pt(40.2, -74.2, ""),
	}

	segments := trace.Segments(points)

	require.Len(t, segments, 1)
	assert.Equal(t, trace.CategoryIdling, segments[0].Category)
	assert.Len(t, segments[0].Points, 1)
	assert.Equal(t, trace.Coordinate{Lat: 40.1, Lon: -74.1}, segments[0].First())
}

func TestSegments_InvalidPointSplitsSameCategoryRun(t *testing.T) {
	points := []trace.Point{
		pt(40.1, -74.1, "speeding"),
		pt(trace.Missing, -74.2, "speeding"),
		pt(40.3, -74.3, "speeding"),
	}

	segments := trace.Segments(points)

	require.Len(t, segments, 2)
	for _, seg := range segments {
		assert.Equal(t, trace.CategorySpeeding, seg.Category)
		assert.Len(t, seg.Points, 1)
	}
	assert.Equal(t, trace.Coordinate{Lat: 40.1, Lon: -74.1}, segments[0].First())
	assert.Equal(t, trace.Coordinate{Lat: 40.3, Lon: -74.3}, segments[1].First())
}

func TestSegments_EmptyInput(t *testing.T) {
	assert.Empty(t, trace.Segments(nil))
	assert.Empty(t, trace.Segments([]trace.Point{}))
}

func TestSegments_OnlyNormalPoints(t *testing.T) {
	points := []trace.Point{
		pt(40.0, -74.0, ""),
		pt(40.1, -74.1, "--"),
		pt(40.2, -74.2, "  "),
	}
	assert.Empty(t, trace.Segments(points))
}

func TestSegments_CategoryChangeClosesRun(t *testing.T) {
	points := []trace.Point{
		pt(40.0, -74.0, "Speeding"),
		pt(40.1, -74.1, "Speeding"),
		pt(40.2, -74.2, "Idling"),
		pt(40.3, -74.3, "Harsh Braking"),
		pt(40.4, -74.4, "Seatbelt"),
	}

	segments := trace.Segments(points)

	require.Len(t, segments, 3)
	assert.Equal(t, trace.CategorySpeeding, segments[0].Category)
	assert.Len(t, segments[0].Points, 2)
	assert.Equal(t, trace.CategoryIdling, segments[1].Category)
	assert.Len(t, segments[1].Points, 1)
	// Different free text, same bucket: one run.
	assert.Equal(t, trace.CategoryOther, segments[2].Category)
	assert.Len(t, segments[2].Points, 2)
}

func TestSegments_StartInfoFromFirstPoint(t *testing.T) {
	points := []trace.Point{
		{Lat: 40.0, Lon: -74.0, ExceptionType: "Idling", ExceptionDetails: "Duration: 6m", Timestamp: at(7, 10)},
		{Lat: 40.0, Lon: -74.0, ExceptionType: "Idling", ExceptionDetails: "Duration: 9m", Timestamp: at(7, 11)},
		{Lat: 40.0, Lon: -74.0, ExceptionType: "Idling", Timestamp: at(7, 12)},
	}

	segments := trace.Segments(points)

	require.Len(t, segments, 1)
	require.NotNil(t, segments[0].Start.Timestamp)
	assert.Equal(t, *at(7, 10), *segments[0].Start.Timestamp)
	assert.Equal(t, "Duration: 6m", segments[0].Start.Details)
	// Trailing points stay in the data model.
	assert.Len(t, segments[0].Points, 3)
}

func TestSegments_StartInfoSentinels(t *testing.T) {
	points := []trace.Point{
		{Lat: 40.0, Lon: -74.0, ExceptionType: "Speeding", ExceptionDetails: "--"},
	}

	segments := trace.Segments(points)

	require.Len(t, segments, 1)
	assert.Nil(t, segments[0].Start.Timestamp)
	assert.Empty(t, segments[0].Start.Details)
}

func TestSegments_InvalidCoordinates(t *testing.T) {
	tests := []struct {
		name  string
		point trace.Point
	}{
		{name: "missing latitude", point: pt(trace.Missing, -74.0, "Idling")},
		{name: "missing longitude", point: pt(40.0, trace.Missing, "Idling")},
		{name: "infinite latitude", point: pt(math.Inf(1), -74.0, "Idling")},
		{name: "infinite longitude", point: pt(40.0, math.Inf(-1), "Idling")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, tt.point.Valid())
			assert.Empty(t, trace.Segments([]trace.Point{tt.point}))
		})
	}
}

func TestSegments_TrailingRunFlushed(t *testing.T) {
	points := []trace.Point{
		pt(40.0, -74.0, ""),
		pt(40.1, -74.1, "Idle"),
		pt(40.2, -74.2, "Idle"),
	}

	segments := trace.Segments(points)

	require.Len(t, segments, 1)
	assert.Equal(t, trace.CategoryIdling, segments[0].Category)
	assert.Len(t, segments[0].Points, 2)
}

func TestSegments_InputNotMutated(t *testing.T) {
	points := []trace.Point{
		pt(40.1, -74.1, "Speeding"),
		pt(40.2, -74.2, "Speeding"),
	}
	before := append([]trace.Point(nil), points...)

	_ = trace.Segments(points)

	assert.Equal(t, before, points)
}

// Property checks over generated streams.

var exceptionPool = []string{
	"", "", "", "--", " ",
	"Speeding 62mph", "SPEEDING", "Posted speeding",
	"Idling", "Excessive Idle Alert", "idle",
	"Harsh Braking", "Seatbelt", "Hard Acceleration",
}

// randomStream returns points whose coordinates are unique, so every
// coordinate maps back to exactly one input index.
func randomStream(r *rand.Rand, n int) []trace.Point {
	points := make([]trace.Point, n)
	for i := range points {
		p := trace.Point{
			Lat:           40.0 + float64(i)*0.0001,
			Lon:           -74.0 - float64(i)*0.0001,
			ExceptionType: exceptionPool[r.IntN(len(exceptionPool))],
		}
		switch r.IntN(10) {
		case 0:
			p.Lat = trace.Missing
		case 1:
			p.Lon = math.NaN()
		}
		points[i] = p
	}
	return points
}

func indexByCoordinate(points []trace.Point) map[trace.Coordinate]int {
	idx := make(map[trace.Coordinate]int, len(points))
	for i, p := range points {
		if p.Valid() {
			idx[p.Coordinate()] = i
		}
	}
	return idx
}

func forEachStream(t *testing.T, fn func(t *testing.T, points []trace.Point)) {
	t.Helper()
	r := rand.New(rand.NewPCG(20240501, 7))
	for run := 0; run < 300; run++ {
		points := randomStream(r, r.IntN(60))
		fn(t, points)
		if t.Failed() {
			t.Logf("failing stream had %d points", len(points))
			return
		}
	}
}

func TestSegmentsProperty_Totality(t *testing.T) {
	forEachStream(t, func(t *testing.T, points []trace.Point) {
		assert.NotPanics(t, func() { _ = trace.Segments(points) })
	})
}

func TestSegmentsProperty_Coverage(t *testing.T) {
	forEachStream(t, func(t *testing.T, points []trace.Point) {
		var want []trace.Coordinate
		for _, p := range points {
			if p.Valid() && trace.Classify(p.ExceptionType) != trace.CategoryNone {
				want = append(want, p.Coordinate())
			}
		}

		var got []trace.Coordinate
		for _, seg := range trace.Segments(points) {
			got = append(got, seg.Points...)
		}

		assert.Equal(t, want, got)
	})
}

func TestSegmentsProperty_CategoryHomogeneity(t *testing.T) {
	forEachStream(t, func(t *testing.T, points []trace.Point) {
		idx := indexByCoordinate(points)
		for _, seg := range trace.Segments(points) {
			assert.NotEqual(t, trace.CategoryNone, seg.Category)
			assert.NotEmpty(t, seg.Points)
			for _, c := range seg.Points {
				i, ok := idx[c]
				require.True(t, ok)
				assert.Equal(t, seg.Category, trace.Classify(points[i].ExceptionType))
			}
		}
	})
}

func TestSegmentsProperty_OrderPreservation(t *testing.T) {
	forEachStream(t, func(t *testing.T, points []trace.Point) {
		idx := indexByCoordinate(points)
		last := -1
		for _, seg := range trace.Segments(points) {
			first := idx[seg.First()]
			assert.Greater(t, first, last)
			last = idx[seg.Points[len(seg.Points)-1]]
		}
	})
}

// Adjacent emitted segments of the same category must be separated in the
// input by an invalid point or a point of another category.
func TestSegmentsProperty_BoundaryClosing(t *testing.T) {
	forEachStream(t, func(t *testing.T, points []trace.Point) {
		idx := indexByCoordinate(points)
		segments := trace.Segments(points)
		for k := 1; k < len(segments); k++ {
			prev, next := segments[k-1], segments[k]
			if prev.Category != next.Category {
				continue
			}
			from := idx[prev.Points[len(prev.Points)-1]]
			to := idx[next.First()]
			separated := false
			for _, p := range points[from+1 : to] {
				if !p.Valid() || trace.Classify(p.ExceptionType) != prev.Category {
					separated = true
					break
				}
			}
			assert.True(t, separated, "segments %d and %d should have merged", k-1, k)
		}
	})
}

func TestSegmentsProperty_IdempotentResegmentation(t *testing.T) {
	forEachStream(t, func(t *testing.T, points []trace.Point) {
		first := trace.Segments(points)

		var rebuilt []trace.Point
		for _, seg := range first {
			for _, c := range seg.Points {
				rebuilt = append(rebuilt, trace.Point{
					Lat:           c.Lat,
					Lon:           c.Lon,
					ExceptionType: seg.Category.Label(),
				})
			}
			// Separator keeps same-category neighbours apart.
			rebuilt = append(rebuilt, pt(trace.Missing, trace.Missing, ""))
		}

		second := trace.Segments(rebuilt)

		require.Len(t, second, len(first))
		for i := range first {
			assert.Equal(t, first[i].Category, second[i].Category)
			assert.Equal(t, first[i].Points, second[i].Points)
		}
	})
}

func BenchmarkSegments(b *testing.B) {
	r := rand.New(rand.NewPCG(1, 2))
	points := randomStream(r, 5000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = trace.Segments(points)
	}
}
