package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/onemap/onemap/internal/dispatch"
)

// Job types carried in the job_type field.
const (
	JobTypeTripSummary = "trip_summary"
	JobTypeHealthCheck = "health_check"
)

// JobMessage is the body of a worker job.
type JobMessage struct {
	JobType string           `json:"job_type"`
	Trips   []TripRefMessage `json:"trips,omitempty"`
}

// SummaryMessage is the published form of a TripSummary.
type SummaryMessage struct {
	Route            string         `json:"route"`
	Date             string         `json:"date"`
	Period           string         `json:"period"`
	VehicleNumber    string         `json:"vehicle_number,omitempty"`
	Segments         map[string]int `json:"segments"`
	Points           map[string]int `json:"points"`
	SpeedingMeters   float64        `json:"speeding_meters"`
	FirstExceptionAt *time.Time     `json:"first_exception_at,omitempty"`
	LastExceptionAt  *time.Time     `json:"last_exception_at,omitempty"`
	DroppedPoints    int            `json:"dropped_points"`
}

// NewSummaryMessage converts s to its wire form.
func NewSummaryMessage(s TripSummary) SummaryMessage {
	msg := SummaryMessage{
		Route:            s.Route,
		Date:             s.Date.Format(dispatch.DateLayout),
		Period:           string(s.Period),
		VehicleNumber:    s.VehicleNumber,
		Segments:         make(map[string]int, len(s.Summary.Segments)),
		Points:           make(map[string]int, len(s.Summary.Points)),
		SpeedingMeters:   s.Summary.SpeedingMeters,
		FirstExceptionAt: s.Summary.FirstExceptionAt,
		LastExceptionAt:  s.Summary.LastExceptionAt,
		DroppedPoints:    s.DroppedPoints,
	}
	for c, n := range s.Summary.Segments {
		msg.Segments[string(c)] = n
	}
	for c, n := range s.Summary.Points {
		msg.Points[string(c)] = n
	}
	return msg
}

// ResultPublisher delivers summaries downstream.
type ResultPublisher interface {
	Publish(ctx context.Context, s TripSummary) error
}

// Outcome tells the transport what to do with a message.
type Outcome int

const (
	Ack Outcome = iota
	Nack
)

func (o Outcome) String() string {
	if o == Nack {
		return "nack"
	}
	return "ack"
}

// ErrNoMapSource is returned when the handler has no job or the job has nothing to query.
var ErrNoMapSource = errors.New("worker: no map source configured")

// JobHandlerConfig holds configuration for a JobHandler.
type JobHandlerConfig struct {
	Job       *SummaryJob
	Publisher ResultPublisher
	Logger    zerolog.Logger
}

// JobHandler decodes and runs job messages independent of the transport.
type JobHandler struct {
	job       *SummaryJob
	publisher ResultPublisher
	logger    zerolog.Logger
}

// NewJobHandler creates a JobHandler. publisher may be nil, in which case
// summaries are only logged.
func NewJobHandler(cfg JobHandlerConfig) *JobHandler {
	return &JobHandler{
		job:       cfg.Job,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
	}
}

// Handle runs one job message and reports whether it should be acked.
// Malformed messages are nacked; unknown job types are acked so they are
// not redelivered forever.
func (h *JobHandler) Handle(ctx context.Context, data []byte) Outcome {
	startTime := time.Now()

	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Error().Err(err).Msg("failed to parse message")
		return Nack
	}

	var err error
	switch msg.JobType {
	case JobTypeTripSummary:
		err = h.handleTripSummary(ctx, msg)
	case JobTypeHealthCheck:
		err = h.handleHealthCheck()
	default:
		h.logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return Ack
	}

	if err != nil {
		h.logger.Error().Err(err).Str("job_type", msg.JobType).Msg("job failed")
		return Nack
	}

	h.logger.Info().
		Str("job_type", msg.JobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed successfully")
	return Ack
}

func (h *JobHandler) handleTripSummary(ctx context.Context, msg JobMessage) error {
	trips, err := ParseTripRefs(msg.Trips)
	if err != nil {
		return fmt.Errorf("parsing trips: %w", err)
	}

	if h.job == nil || h.job.maps == nil {
		return ErrNoMapSource
	}

	result := h.job.Run(ctx, trips)

	published := 0
	for _, s := range result.Summaries {
		if h.publisher == nil {
			break
		}
		if err := h.publisher.Publish(ctx, s); err != nil {
			return fmt.Errorf("publishing summary for %s %s: %w", s.Route, s.Period, err)
		}
		published++
	}

	h.logger.Info().
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("published", published).
		Msg("trip summary batch processed")

	if result.Failed > result.Successful {
		return fmt.Errorf("too many trip failures: %d/%d", result.Failed, result.TotalTrips)
	}
	return nil
}

func (h *JobHandler) handleHealthCheck() error {
	if h.job == nil || h.job.maps == nil {
		return ErrNoMapSource
	}
	h.logger.Debug().Fields(h.job.MetricsSnapshot()).Msg("health check passed")
	return nil
}
