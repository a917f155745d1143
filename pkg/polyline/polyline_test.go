package polyline

import (
	"math"
	"testing"
)

func TestDecode_ReferencePolyline(t *testing.T) {
	tests := []struct {
		name     string
		encoded  string
		expected []Coordinate
	}{
		{
			name:     "single point",
			encoded:  "_p~iF~ps|U",
			expected: []Coordinate{{Lat: 38.5, Lon: -120.2}},
		},
		{
			name:    "reference three point line",
			encoded: "_p~iF~ps|U_ulLnnqC_mqNvxq`@",
			expected: []Coordinate{
				{Lat: 38.5, Lon: -120.2},
				{Lat: 40.7, Lon: -120.95},
				{Lat: 43.252, Lon: -126.453},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Decode(tt.encoded)
			if len(result) != len(tt.expected) {
				t.Fatalf("expected %d coordinates, got %d", len(tt.expected), len(result))
			}
			for i, c := range result {
				if !coordsEqual(c, tt.expected[i], 0.00001) {
					t.Errorf("coordinate %d: expected %+v, got %+v", i, tt.expected[i], c)
				}
			}
		})
	}
}

func TestDecode_EmptyString(t *testing.T) {
	if got := Decode(""); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestEncode_BusTrace(t *testing.T) {
	// Pullout from Greenpoint depot heading north.
	coords := []Coordinate{
		{Lat: 40.728215, Lon: -73.941033},
		{Lat: 40.73012, Lon: -73.94051},
		{Lat: 40.73377, Lon: -73.93802},
		{Lat: 40.73802, Lon: -73.93411},
	}

	encoded := Encode(coords)
	if encoded == "" {
		t.Fatal("expected non-empty encoded string")
	}

	decoded := Decode(encoded)
	if len(decoded) != len(coords) {
		t.Fatalf("expected %d coordinates, got %d", len(coords), len(decoded))
	}
	for i, c := range decoded {
		if !coordsEqual(c, coords[i], 0.00001) {
			t.Errorf("coordinate %d: expected %+v, got %+v", i, coords[i], c)
		}
	}
}

func TestEncode_ReferenceString(t *testing.T) {
	coords := []Coordinate{
		{Lat: 38.5, Lon: -120.2},
		{Lat: 40.7, Lon: -120.95},
		{Lat: 43.252, Lon: -126.453},
	}
	if got := Encode(coords); got != "_p~iF~ps|U_ulLnnqC_mqNvxq`@" {
		t.Errorf("unexpected encoding %q", got)
	}
}

func TestEncode_Empty(t *testing.T) {
	if got := Encode(nil); got != "" {
		t.Errorf("expected empty string for nil coordinates, got %q", got)
	}
	if got := Encode([]Coordinate{}); got != "" {
		t.Errorf("expected empty string for empty coordinates, got %q", got)
	}
}

func TestLength(t *testing.T) {
	tests := []struct {
		name           string
		coords         []Coordinate
		expectedMeters float64
		tolerance      float64
	}{
		{name: "empty", coords: nil},
		{name: "single point", coords: []Coordinate{{Lat: 40.7, Lon: -74.0}}},
		{
			name: "one degree of latitude",
			coords: []Coordinate{
				{Lat: 0, Lon: 0},
				{Lat: 1, Lon: 0},
			},
			expectedMeters: 111195,
			tolerance:      200,
		},
		{
			name: "Greenpoint to Jamaica depot",
			coords: []Coordinate{
				{Lat: 40.728215, Lon: -73.941033},
				{Lat: 40.703080, Lon: -73.777627},
			},
			expectedMeters: 14000,
			tolerance:      500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Length(tt.coords)
			if math.Abs(got-tt.expectedMeters) > tt.tolerance {
				t.Errorf("expected ~%.0fm (±%.0f), got %.0fm", tt.expectedMeters, tt.tolerance, got)
			}
		})
	}
}

func TestDistance_Symmetric(t *testing.T) {
	a := Coordinate{Lat: 40.886504, Lon: -73.829986}
	b := Coordinate{Lat: 40.830833, Lon: -73.845146}
	if math.Abs(Distance(a, b)-Distance(b, a)) > 1e-9 {
		t.Error("distance should be symmetric")
	}
	if Distance(a, a) != 0 {
		t.Error("distance to self should be zero")
	}
}

func TestBoundsOf(t *testing.T) {
	_, ok := BoundsOf(nil)
	if ok {
		t.Fatal("expected no bounds for empty input")
	}

	b, ok := BoundsOf([]Coordinate{
		{Lat: 40.7, Lon: -74.1},
		{Lat: 40.9, Lon: -73.8},
		{Lat: 40.5, Lon: -74.2},
	})
	if !ok {
		t.Fatal("expected bounds")
	}
	want := Bounds{South: 40.5, West: -74.2, North: 40.9, East: -73.8}
	if b != want {
		t.Errorf("expected %+v, got %+v", want, b)
	}

	center := b.Center()
	if !coordsEqual(center, Coordinate{Lat: 40.7, Lon: -74.0}, 1e-9) {
		t.Errorf("unexpected center %+v", center)
	}
}

func coordsEqual(a, b Coordinate, tolerance float64) bool {
	return math.Abs(a.Lat-b.Lat) <= tolerance && math.Abs(a.Lon-b.Lon) <= tolerance
}

func BenchmarkEncode(b *testing.B) {
	coords := make([]Coordinate, 500)
	for i := range coords {
		coords[i] = Coordinate{Lat: 40.7 + float64(i)*0.0001, Lon: -73.9 - float64(i)*0.0001}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Encode(coords)
	}
}
