// Package dispatchtest provides an in-memory trip provider for tests.
package dispatchtest

import (
	"context"
	"sync"
	"time"

	"github.com/onemap/onemap/internal/dispatch"
	"github.com/onemap/onemap/internal/trace"
)

// Provider serves trips from memory.
type Provider struct {
	mu        sync.Mutex
	trips     map[string]*dispatch.Trip
	err       error
	callCount int
}

// NewProvider creates an empty provider.
func NewProvider() *Provider {
	return &Provider{trips: make(map[string]*dispatch.Trip)}
}

// Name returns "memory".
func (p *Provider) Name() string {
	return "memory"
}

// Add registers a trip under its route and date.
func (p *Provider) Add(trip *dispatch.Trip) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.trips[key(trip.Route, trip.Date)] = trip
}

// SetError makes every subsequent call fail with err.
func (p *Provider) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// CallCount returns the number of GetTrip calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.callCount
}

// GetTrip returns a copy of the stored trip or dispatch.ErrTripNotFound.
func (p *Provider) GetTrip(_ context.Context, route string, date time.Time) (*dispatch.Trip, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.callCount++

	if p.err != nil {
		return nil, p.err
	}
	trip, ok := p.trips[key(route, date)]
	if !ok {
		return nil, dispatch.ErrTripNotFound
	}
	cp := *trip
	return &cp, nil
}

func key(route string, date time.Time) string {
	return dispatch.NormalizeRoute(route) + "|" + date.Format(dispatch.DateLayout)
}

// Date parses a YYYY-MM-DD literal and panics on error.
func Date(s string) time.Time {
	d, err := dispatch.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// SampleTrip returns a trip with a speeding run in the AM and an idling
// stop in the PM.
func SampleTrip(route, date string) *dispatch.Trip {
	ts := func(h, m int) *time.Time {
		t := Date(date).Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
		return &t
	}
	kph := func(v float64) *float64 { return &v }

	return &dispatch.Trip{
		Route:       route,
		Date:        Date(date),
		DriverName:  "Pat Doe",
		DriverPhone: "555-0100",
		DVILink:     "https://dvi.example.com/inspection/1",
		AM: &dispatch.VehicleTrip{
			Period:        dispatch.PeriodAM,
			VehicleNumber: "123",
			DeviceID:      "b1A",
			Points: []trace.Point{
				{Lat: 40.7000, Lon: -73.9000, Timestamp: ts(11, 0), SpeedKph: kph(30)},
				{Lat: 40.7010, Lon: -73.9010, Timestamp: ts(11, 1), SpeedKph: kph(95), ExceptionType: "Speeding"},
				{Lat: 40.7020, Lon: -73.9020, Timestamp: ts(11, 2), SpeedKph: kph(97), ExceptionType: "Speeding"},
				{Lat: 40.7030, Lon: -73.9030, Timestamp: ts(11, 3), SpeedKph: kph(40)},
				{Lat: trace.Missing, Lon: -73.9040, Timestamp: ts(11, 4)},
			},
			Stops: []dispatch.Stop{
				{Coordinate: trace.Coordinate{Lat: 40.7005, Lon: -73.9005}, Kind: dispatch.StopStudent, Sequence: 1, Info: dispatch.StudentStopInfo(1, "P100")},
				{Coordinate: trace.Coordinate{Lat: 40.7035, Lon: -73.9035}, Kind: dispatch.StopSchool, Sequence: 0, Info: dispatch.SchoolStopInfo("PS 1", "08:00 AM")},
			},
		},
		PM: &dispatch.VehicleTrip{
			Period:        dispatch.PeriodPM,
			VehicleNumber: "4567.0",
			Points: []trace.Point{
				{Lat: 40.7100, Lon: -73.9100, Timestamp: ts(19, 0)},
				{Lat: 40.7110, Lon: -73.9110, Timestamp: ts(19, 5), ExceptionType: "Idling", ExceptionDetails: "Duration: 6m"},
				{Lat: 40.7110, Lon: -73.9110, Timestamp: ts(19, 6), ExceptionType: "Idling"},
			},
		},
	}
}
