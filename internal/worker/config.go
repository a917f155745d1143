// Package worker provides background trip summary jobs for OneMap.
package worker

import (
	"fmt"
	"time"

	"github.com/onemap/onemap/internal/dispatch"
)

// TripRef names one route on one service date.
type TripRef struct {
	Route string
	Date  time.Time
}

func (r TripRef) String() string {
	return r.Route + "@" + r.Date.Format(dispatch.DateLayout)
}

// SummaryConfig holds configuration for the trip summary job.
type SummaryConfig struct {
	// Concurrency is the number of trips summarized in parallel.
	// Default: 4
	Concurrency int

	// Timeout bounds each trip, fetch included.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultSummaryConfig returns the default summary configuration.
func DefaultSummaryConfig() SummaryConfig {
	return SummaryConfig{
		Concurrency: 4,
		Timeout:     30 * time.Second,
	}
}

func (c SummaryConfig) withDefaults() SummaryConfig {
	d := DefaultSummaryConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}

// TripRefMessage is the wire form of a TripRef.
type TripRefMessage struct {
	Route string `json:"route"`
	Date  string `json:"date"`
}

// ParseTripRefs validates wire refs. The first bad entry fails the batch.
func ParseTripRefs(msgs []TripRefMessage) ([]TripRef, error) {
	refs := make([]TripRef, 0, len(msgs))
	for i, m := range msgs {
		route := dispatch.NormalizeRoute(m.Route)
		if route == "" {
			return nil, fmt.Errorf("trips[%d]: missing route", i)
		}
		date, err := dispatch.ParseDate(m.Date)
		if err != nil {
			return nil, fmt.Errorf("trips[%d]: %w", i, err)
		}
		refs = append(refs, TripRef{Route: route, Date: date})
	}
	return refs, nil
}
