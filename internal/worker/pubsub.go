package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Job types carried in Pub/Sub messages.
const (
	JobWarmCorridors = "warm_corridors"
	JobHealthCheck   = "health_check"
)

// ErrUnknownJob marks a message whose job type is not handled. Such
// messages are acked so they are not redelivered.
var ErrUnknownJob = errors.New("unknown job type")

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	WarmJob          *WarmJob
	Logger           zerolog.Logger
}

// JobMessage is the payload published to trigger a job.
type JobMessage struct {
	JobType string `json:"job_type"`
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 4
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       NewDispatcher(cfg.WarmJob, cfg.Logger),
		logger:           cfg.Logger,
	}, nil
}

// Start blocks receiving messages until ctx is cancelled.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		logger := h.logger.With().
			Str("message_id", msg.ID).
			Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
			Logger()

		err := h.dispatcher.Process(ctx, msg.Data)
		switch {
		case err == nil:
			msg.Ack()
		case errors.Is(err, ErrUnknownJob):
			logger.Warn().Err(err).Msg("dropping message")
			msg.Ack()
		default:
			logger.Error().Err(err).Msg("job failed")
			msg.Nack()
		}
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// Dispatcher decodes job messages and runs the matching job.
type Dispatcher struct {
	warm   *WarmJob
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher over the warm job.
func NewDispatcher(warm *WarmJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{warm: warm, logger: logger}
}

// Process runs the job described by data. A malformed payload is reported
// as ErrUnknownJob since redelivery cannot fix it.
func (d *Dispatcher) Process(ctx context.Context, data []byte) error {
	start := time.Now()

	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("%w: decode message: %v", ErrUnknownJob, err)
	}

	var err error
	switch msg.JobType {
	case JobWarmCorridors:
		err = d.warmCorridors(ctx)
	case JobHealthCheck:
		err = d.healthCheck(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownJob, msg.JobType)
	}
	if err != nil {
		return err
	}

	d.logger.Info().
		Str("job_type", msg.JobType).
		Dur("duration", time.Since(start)).
		Msg("job completed successfully")
	return nil
}

func (d *Dispatcher) warmCorridors(ctx context.Context) error {
	result := d.warm.Run(ctx)

	// A run passes when at least half the corridors are usable.
	if result.Failed > result.Composed+result.AlreadyCached {
		return fmt.Errorf("too many warm failures: %d/%d", result.Failed, result.Total)
	}
	return nil
}

func (d *Dispatcher) healthCheck(ctx context.Context) error {
	result := d.warm.Check(ctx)
	if result.Failed > 0 {
		return fmt.Errorf("health check failed: %s", result.Errors[0].Error)
	}
	d.logger.Debug().Msg("health check passed")
	return nil
}
