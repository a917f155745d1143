package worker

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/onemap/onemap/internal/dispatch"
	"github.com/onemap/onemap/internal/trace"
	"github.com/onemap/onemap/internal/tripmap"
)

const tracerName = "github.com/onemap/onemap/internal/worker"

// MapSource builds trip maps; *tripmap.Service satisfies it.
type MapSource interface {
	GetMap(ctx context.Context, req tripmap.Request) (*tripmap.Map, error)
}

// TripSummary is the per-period result published for each trip.
type TripSummary struct {
	Route         string
	Date          time.Time
	Period        dispatch.Period
	VehicleNumber string
	Summary       trace.Summary

	// DroppedPoints counts pings skipped for bad coordinates.
	DroppedPoints int
}

// TripError records a trip that could not be summarized.
type TripError struct {
	Trip  TripRef
	Error string
}

// SummaryResult contains the result of one summary run.
type SummaryResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	TotalTrips int
	Successful int
	Failed     int
	Summaries  []TripSummary
	Errors     []TripError
}

// SummaryMetrics tracks summary job statistics.
type SummaryMetrics struct {
	TotalRuns       int64
	SuccessfulTrips int64
	FailedTrips     int64
	PeriodsSummed   int64
	Segments        int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// SummaryJobConfig holds configuration for creating a SummaryJob.
type SummaryJobConfig struct {
	Config SummaryConfig
	Maps   MapSource
	Logger zerolog.Logger
}

// SummaryJob reduces batches of trips to per-period exception summaries.
type SummaryJob struct {
	config SummaryConfig
	maps   MapSource
	logger zerolog.Logger

	mu      sync.RWMutex
	metrics SummaryMetrics
}

// NewSummaryJob creates a new summary job.
func NewSummaryJob(cfg SummaryJobConfig) *SummaryJob {
	return &SummaryJob{
		config: cfg.Config.withDefaults(),
		maps:   cfg.Maps,
		logger: cfg.Logger,
	}
}

// Run summarizes trips on a bounded worker pool. A failing trip is recorded
// and does not stop the others. Summaries are ordered by route, date and period.
func (j *SummaryJob) Run(ctx context.Context, trips []TripRef) *SummaryResult {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "worker.SummaryJob.Run")
	defer span.End()

	startTime := time.Now()
	result := &SummaryResult{
		StartTime:  startTime,
		TotalTrips: len(trips),
	}

	j.logger.Info().
		Int("total_trips", result.TotalTrips).
		Int("concurrency", j.config.Concurrency).
		Msg("starting trip summary job")

	tripsChan := make(chan TripRef, len(trips))
	resultsChan := make(chan tripResult, len(trips))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.summaryWorker(ctx, tripsChan, resultsChan)
		}()
	}

	for _, t := range trips {
		tripsChan <- t
	}
	close(tripsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for tr := range resultsChan {
		if tr.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, TripError{Trip: tr.trip, Error: tr.err.Error()})
			continue
		}
		result.Successful++
		result.Summaries = append(result.Summaries, tr.summaries...)
	}

	// Trips skipped after cancellation count as failures.
	if missing := result.TotalTrips - result.Successful - result.Failed; missing > 0 {
		result.Failed += missing
		result.Errors = append(result.Errors, TripError{Error: ctx.Err().Error()})
	}

	sortSummaries(result.Summaries)
	sort.Slice(result.Errors, func(a, b int) bool {
		return result.Errors[a].Trip.String() < result.Errors[b].Trip.String()
	})

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	span.SetAttributes(
		attribute.Int("job.trips", result.TotalTrips),
		attribute.Int("job.successful", result.Successful),
		attribute.Int("job.failed", result.Failed),
	)
	if result.Failed > result.Successful {
		span.SetStatus(codes.Error, "majority of trips failed")
	}

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("summaries", len(result.Summaries)).
		Msg("trip summary job completed")

	return result
}

type tripResult struct {
	trip      TripRef
	summaries []TripSummary
	err       error
}

func (j *SummaryJob) summaryWorker(ctx context.Context, trips <-chan TripRef, results chan<- tripResult) {
	for trip := range trips {
		select {
		case <-ctx.Done():
			return
		default:
			results <- j.summarize(ctx, trip)
		}
	}
}

func (j *SummaryJob) summarize(ctx context.Context, trip TripRef) tripResult {
	tripCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	m, err := j.maps.GetMap(tripCtx, tripmap.Request{Route: trip.Route, Date: trip.Date})
	if err != nil {
		j.logger.Warn().Err(err).Str("trip", trip.String()).Msg("trip summary failed")
		return tripResult{trip: trip, err: err}
	}

	res := tripResult{trip: trip}
	for _, p := range m.Periods() {
		res.summaries = append(res.summaries, TripSummary{
			Route:         m.Route,
			Date:          m.Date,
			Period:        p.Period,
			VehicleNumber: p.VehicleNumber,
			Summary:       p.Summary,
			DroppedPoints: p.Trace.Dropped,
		})
	}
	return res
}

func sortSummaries(s []TripSummary) {
	sort.Slice(s, func(a, b int) bool {
		if s[a].Route != s[b].Route {
			return s[a].Route < s[b].Route
		}
		if !s[a].Date.Equal(s[b].Date) {
			return s[a].Date.Before(s[b].Date)
		}
		return s[a].Period < s[b].Period
	})
}

func (j *SummaryJob) updateMetrics(result *SummaryResult) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulTrips += int64(result.Successful)
	j.metrics.FailedTrips += int64(result.Failed)
	j.metrics.PeriodsSummed += int64(len(result.Summaries))
	for _, s := range result.Summaries {
		j.metrics.Segments += int64(s.Summary.Total())
	}
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *SummaryJob) GetMetrics() SummaryMetrics {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.metrics
}

// MetricsSnapshot returns the current metrics as a map for logging.
func (j *SummaryJob) MetricsSnapshot() map[string]any {
	m := j.GetMetrics()
	return map[string]any{
		"total_runs":        m.TotalRuns,
		"successful_trips":  m.SuccessfulTrips,
		"failed_trips":      m.FailedTrips,
		"periods_summed":    m.PeriodsSummed,
		"segments":          m.Segments,
		"last_run_at":       m.LastRunAt,
		"last_run_duration": m.LastRunDuration.String(),
		"total_duration":    m.TotalDuration.String(),
	}
}
