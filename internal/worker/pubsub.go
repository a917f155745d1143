package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/onemap/onemap/internal/dispatch"
)

// PubSubHandler receives job messages from a subscription and publishes
// trip summaries to a results topic.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	publisher        *pubsub.Publisher
	subscriptionName string
	jobs             *JobHandler
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	ResultsTopic     string
	Job              *SummaryJob
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	h := &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		logger:           cfg.Logger,
	}

	var results ResultPublisher
	if cfg.ResultsTopic != "" {
		h.publisher = client.Publisher(cfg.ResultsTopic)
		results = &topicPublisher{publisher: h.publisher}
	}

	h.jobs = NewJobHandler(JobHandlerConfig{
		Job:       cfg.Job,
		Publisher: results,
		Logger:    cfg.Logger,
	})
	return h, nil
}

// Start begins processing Pub/Sub messages and blocks until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		logger := h.logger.With().
			Str("message_id", msg.ID).
			Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
			Logger()
		logger.Debug().Msg("received pubsub message")

		if h.jobs.Handle(logger.WithContext(ctx), msg.Data) == Nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Close flushes pending publishes and closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	if h.publisher != nil {
		h.publisher.Stop()
	}
	return h.client.Close()
}

type topicPublisher struct {
	publisher *pubsub.Publisher
}

func (p *topicPublisher) Publish(ctx context.Context, s TripSummary) error {
	data, err := json.Marshal(NewSummaryMessage(s))
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}

	res := p.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"route":  s.Route,
			"date":   s.Date.Format(dispatch.DateLayout),
			"period": string(s.Period),
		},
	})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("publishing summary: %w", err)
	}
	return nil
}
