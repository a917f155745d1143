// Package upstream is the HTTP client for the legacy dispatch backend's
// get_map endpoint.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/onemap/onemap/internal/dispatch"
	"github.com/onemap/onemap/internal/provider/resilience"
	"github.com/onemap/onemap/internal/trace"
)

const (
	// ProviderName identifies this trip-data provider.
	ProviderName = "dispatch"

	opGetMap = "get_map"

	maxErrorBody = 4 << 10
)

// ClientConfig holds configuration for the dispatch client.
type ClientConfig struct {
	// BaseURL is the dispatch backend root (required).
	BaseURL string

	// APIKey is sent as X-Api-Key when set.
	APIKey string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Metrics is optional.
	Metrics dispatch.Metrics

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client fetches trips from the dispatch backend.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	metrics    dispatch.Metrics
	logger     zerolog.Logger
}

// NewClient creates a new dispatch client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetTrip posts route and date to get_map and decodes both periods.
func (c *Client) GetTrip(ctx context.Context, route string, date time.Time) (trip *dispatch.Trip, err error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.RecordRequest(ProviderName, opGetMap, time.Since(start), err)
		}
	}()

	body, err := json.Marshal(getMapRequest{Route: route, Date: date.Format(dispatch.DateLayout)})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/get_map", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if err := statusError(resp); err != nil {
		return nil, err
	}

	var payload getMapResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	trip = &dispatch.Trip{
		Route:       route,
		Date:        date,
		DriverName:  payload.DriverName,
		DriverPhone: payload.DriverPhone,
		DVILink:     payload.DVILink,
	}
	if trip.AM, err = c.toVehicleTrip(dispatch.PeriodAM, &payload.AM); err != nil {
		return nil, err
	}
	if trip.PM, err = c.toVehicleTrip(dispatch.PeriodPM, &payload.PM); err != nil {
		return nil, err
	}

	if trip.AM == nil && trip.PM == nil {
		return nil, fmt.Errorf("%w: no vehicle data for route %s", dispatch.ErrTripNotFound, route)
	}

	return trip, nil
}

// setHeaders sets common request headers.
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
}

// statusError maps non-2xx responses onto dispatch errors.
func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg := http.StatusText(resp.StatusCode)
	var e errorResponse
	if b, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)); err == nil {
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			msg = e.Error
		}
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", dispatch.ErrTripNotFound, msg)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", dispatch.ErrInvalidRequest, msg)
	default:
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, msg)
	}
}

// toVehicleTrip converts one period; an empty period yields nil.
func (c *Client) toVehicleTrip(period dispatch.Period, d *periodData) (*dispatch.VehicleTrip, error) {
	points, skipped, err := dispatch.DecodePoints(d.Trace)
	if err != nil {
		return nil, fmt.Errorf("decoding %s trace: %w", period, err)
	}

	v := &dispatch.VehicleTrip{
		Period:        period,
		VehicleNumber: string(d.VehicleNumber),
		DeviceID:      string(d.DeviceID),
		Points:        points,
		Stops:         toStops(d.Stops),
		SkippedPoints: skipped,
	}
	if v.Empty() && v.VehicleNumber == "" {
		return nil, nil
	}

	if skipped > 0 {
		c.logger.Warn().
			Str("period", string(period)).
			Int("skipped", skipped).
			Msg("skipped non-object trace elements")
	}

	return v, nil
}

func toStops(in []stopData) []dispatch.Stop {
	stops := make([]dispatch.Stop, 0, len(in))
	for _, s := range in {
		if s.Lat == nil || s.Lon == nil || !finite(*s.Lat) || !finite(*s.Lon) {
			continue
		}
		kind := dispatch.StopStudent
		if strings.EqualFold(s.Type, string(dispatch.StopSchool)) {
			kind = dispatch.StopSchool
		}
		stops = append(stops, dispatch.Stop{
			Coordinate: trace.Coordinate{Lat: *s.Lat, Lon: *s.Lon},
			Kind:       kind,
			Sequence:   int(s.Sequence),
			Info:       string(s.Info),
		})
	}
	return stops
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
