// Package dispatch is the boundary to the trip-data provider: it decodes raw
// provider payloads into typed trips and caches them per route and date.
package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/onemap/onemap/internal/trace"
)

// Dispatch errors.
var (
	ErrTripNotFound        = errors.New("trip not found")
	ErrProviderUnavailable = errors.New("dispatch provider unavailable")
	ErrInvalidRequest      = errors.New("invalid dispatch request")
)

// DateLayout is the wire format for service dates.
const DateLayout = "2006-01-02"

// Placeholders used when the provider omits driver information.
const (
	DefaultDriverName  = "N/A"
	DefaultDriverPhone = "N/A"
	DefaultDVILink     = "#"
)

// Period is the half of the service day a vehicle-trip belongs to.
type Period string

const (
	PeriodAM Period = "AM"
	PeriodPM Period = "PM"
)

// Periods lists both periods in display order.
func Periods() []Period {
	return []Period{PeriodAM, PeriodPM}
}

// StopKind distinguishes school stops from student pickups.
type StopKind string

const (
	StopSchool  StopKind = "school"
	StopStudent StopKind = "student"
)

// StopKinds lists every stop kind.
func StopKinds() []StopKind {
	return []StopKind{StopSchool, StopStudent}
}

// Stop is a planned stop on a vehicle-trip.
type Stop struct {
	Coordinate trace.Coordinate
	Kind       StopKind
	Sequence   int

	// Info is preformatted popup HTML.
	Info string
}

// VehicleTrip is one vehicle's run for a period.
type VehicleTrip struct {
	Period        Period
	VehicleNumber string
	DeviceID      string

	// Points is the ping stream in provider order.
	Points []trace.Point

	Stops []Stop

	// SkippedPoints counts trace elements that were not JSON objects.
	SkippedPoints int
}

// Empty reports whether the trip has nothing to draw.
func (v *VehicleTrip) Empty() bool {
	return v == nil || (len(v.Points) == 0 && len(v.Stops) == 0)
}

// Trip is the provider's answer for one route on one date.
type Trip struct {
	Route       string
	Date        time.Time
	DriverName  string
	DriverPhone string
	DVILink     string

	AM *VehicleTrip
	PM *VehicleTrip

	FetchedAt time.Time
}

// ForPeriod returns the vehicle-trip for p, or nil.
func (t *Trip) ForPeriod(p Period) *VehicleTrip {
	switch p {
	case PeriodAM:
		return t.AM
	case PeriodPM:
		return t.PM
	default:
		return nil
	}
}

// ApplyDefaults fills driver placeholders and normalizes vehicle numbers.
func (t *Trip) ApplyDefaults() {
	if strings.TrimSpace(t.DriverName) == "" {
		t.DriverName = DefaultDriverName
	}
	if strings.TrimSpace(t.DriverPhone) == "" {
		t.DriverPhone = DefaultDriverPhone
	}
	if strings.TrimSpace(t.DVILink) == "" {
		t.DVILink = DefaultDVILink
	}
	for _, v := range []*VehicleTrip{t.AM, t.PM} {
		if v == nil {
			continue
		}
		v.VehicleNumber = NormalizeVehicleNumber(v.VehicleNumber)
		SortStops(v.Stops)
	}
}

// ParseDate parses a YYYY-MM-DD service date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidRequest, s)
	}
	return d, nil
}

// NormalizeRoute trims and upper-cases a route identifier.
func NormalizeRoute(route string) string {
	return strings.ToUpper(strings.TrimSpace(route))
}
