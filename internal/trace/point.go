// Package trace turns an ordered GPS ping stream for one vehicle-trip into a
// polyline, hover points and merged exception segments.
//
// Everything in this package is pure: no I/O, no shared state, no logging.
// Callers may segment many trips concurrently without coordination.
package trace

import (
	"math"
	"time"

	"github.com/onemap/onemap/pkg/polyline"
)

// Coordinate is a WGS84 position.
type Coordinate = polyline.Coordinate

// Point is one telemetry ping as delivered by the trip-data provider.
//
// A missing latitude or longitude is represented as NaN. Optional fields are
// nil when the provider did not supply them.
type Point struct {
	Lat float64
	Lon float64

	// Timestamp is the device time of the ping.
	Timestamp *time.Time

	// SpeedKph is used for display only and never affects segmentation.
	SpeedKph *float64

	// ExceptionType is the provider's free-text classification.
	// Empty or "--" means no exception.
	ExceptionType string

	// ExceptionDetails is popup text. Empty or "--" means no details.
	ExceptionDetails string
}

// Missing is the coordinate value used for an absent latitude or longitude.
var Missing = math.NaN()

// Valid reports whether both coordinates are usable numbers.
func (p Point) Valid() bool {
	return isFinite(p.Lat) && isFinite(p.Lon)
}

// Coordinate returns the point's position.
func (p Point) Coordinate() Coordinate {
	return Coordinate{Lat: p.Lat, Lon: p.Lon}
}

// Speed returns the speed in kph, or 0 when it is absent or not a number.
func (p Point) Speed() float64 {
	if p.SpeedKph == nil || !isFinite(*p.SpeedKph) {
		return 0
	}
	return *p.SpeedKph
}

// Details returns the exception details with the "--" sentinel folded to "".
func (p Point) Details() string {
	return normalizeSentinel(p.ExceptionDetails)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
