package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onemap/onemap/internal/dispatch"
	"github.com/onemap/onemap/internal/dispatch/dispatchtest"
	"github.com/onemap/onemap/internal/trace"
	"github.com/onemap/onemap/internal/worker"
)

type recordingPublisher struct {
	mu   sync.Mutex
	sent []worker.TripSummary
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, s worker.TripSummary) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, s)
	return nil
}

func newHandler(pub worker.ResultPublisher, trips ...*dispatch.Trip) *worker.JobHandler {
	maps, _ := newMaps(trips...)
	return worker.NewJobHandler(worker.JobHandlerConfig{
		Job:       newJob(maps),
		Publisher: pub,
		Logger:    zerolog.Nop(),
	})
}

func TestJobHandler_TripSummary(t *testing.T) {
	pub := &recordingPublisher{}
	h := newHandler(pub, dispatchtest.SampleTrip("K123", "2024-05-01"))

	out := h.Handle(context.Background(), []byte(`{"job_type":"trip_summary","trips":[{"route":"K123","date":"2024-05-01"}]}`))

	assert.Equal(t, worker.Ack, out)
	require.Len(t, pub.sent, 2)
	assert.Equal(t, dispatch.PeriodAM, pub.sent[0].Period)
	assert.Equal(t, dispatch.PeriodPM, pub.sent[1].Period)
}

func TestJobHandler_Outcomes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want worker.Outcome
	}{
		{name: "malformed json", body: `{"job_type":`, want: worker.Nack},
		{name: "unknown job type", body: `{"job_type":"provider_refresh"}`, want: worker.Ack},
		{name: "health check", body: `{"job_type":"health_check"}`, want: worker.Ack},
		{name: "bad trip date", body: `{"job_type":"trip_summary","trips":[{"route":"K123","date":"tomorrow"}]}`, want: worker.Nack},
		{name: "majority failed", body: `{"job_type":"trip_summary","trips":[{"route":"K123","date":"2024-05-01"},{"route":"X1","date":"2024-05-01"},{"route":"X2","date":"2024-05-01"}]}`, want: worker.Nack},
		{name: "minority failed", body: `{"job_type":"trip_summary","trips":[{"route":"K123","date":"2024-05-01"},{"route":"X1","date":"2024-05-01"}]}`, want: worker.Ack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHandler(&recordingPublisher{}, dispatchtest.SampleTrip("K123", "2024-05-01"))
			assert.Equal(t, tt.want, h.Handle(context.Background(), []byte(tt.body)))
		})
	}
}

func TestJobHandler_PublishFailureNacks(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("topic not found")}
	h := newHandler(pub, dispatchtest.SampleTrip("K123", "2024-05-01"))

	out := h.Handle(context.Background(), []byte(`{"job_type":"trip_summary","trips":[{"route":"K123","date":"2024-05-01"}]}`))

	assert.Equal(t, worker.Nack, out)
}

func TestJobHandler_HealthCheckWithoutMaps(t *testing.T) {
	h := worker.NewJobHandler(worker.JobHandlerConfig{Logger: zerolog.Nop()})

	assert.Equal(t, worker.Nack, h.Handle(context.Background(), []byte(`{"job_type":"health_check"}`)))
}

func TestJobHandler_TripSummaryWithoutJob(t *testing.T) {
	body := []byte(`{"job_type":"trip_summary","trips":[{"route":"K123","date":"2024-05-01"}]}`)

	tests := []struct {
		name string
		job  *worker.SummaryJob
	}{
		{name: "no job", job: nil},
		{name: "job without maps", job: newJob(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &recordingPublisher{}
			h := worker.NewJobHandler(worker.JobHandlerConfig{Job: tt.job, Publisher: pub, Logger: zerolog.Nop()})

			var out worker.Outcome
			require.NotPanics(t, func() { out = h.Handle(context.Background(), body) })
			assert.Equal(t, worker.Nack, out)
			assert.Empty(t, pub.sent)
		})
	}
}

func TestNewSummaryMessage(t *testing.T) {
	s := worker.TripSummary{
		Route:         "K123",
		Date:          dispatchtest.Date("2024-05-01"),
		Period:        dispatch.PeriodPM,
		VehicleNumber: "4567.0",
		Summary: trace.Summary{
			Segments: map[trace.Category]int{trace.CategoryIdling: 1},
			Points:   map[trace.Category]int{trace.CategoryIdling: 2},
		},
	}

	data, err := json.Marshal(worker.NewSummaryMessage(s))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "K123", got["route"])
	assert.Equal(t, "2024-05-01", got["date"])
	assert.Equal(t, "PM", got["period"])
	assert.Equal(t, map[string]any{"IDLING": float64(1)}, got["segments"])
	assert.NotContains(t, got, "first_exception_at")
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "ack", worker.Ack.String())
	assert.Equal(t, "nack", worker.Nack.String())
}
