// Package activity records group membership and ledger changes in a Redis
// stream and persists them as each group's activity feed.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/metrics"
	"github.com/splitledger/splitledger/internal/model"
)

const (
	// StreamKey is the Redis stream for activity events.
	StreamKey = "stream:group_activity"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:group_activity:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 250 * time.Millisecond
)

// EventPayload is the compact event format stored in the stream.
type EventPayload struct {
	GroupID    string `json:"g"`
	ActorID    string `json:"a"`
	Kind       string `json:"k"`
	SubjectID  string `json:"s,omitempty"`
	Amount     string `json:"m,omitempty"` // decimal string
	Detail     string `json:"d,omitempty"`
	OccurredAt int64  `json:"t"` // Unix milliseconds
}

// NewEventPayload converts an activity into its stream form.
func NewEventPayload(a *model.Activity) EventPayload {
	p := EventPayload{
		GroupID:    a.GroupID,
		ActorID:    a.ActorID,
		Kind:       string(a.Kind),
		SubjectID:  a.SubjectID,
		Detail:     TruncateDetail(a.Detail),
		OccurredAt: a.OccurredAt.UnixMilli(),
	}
	if a.Amount != nil {
		p.Amount = a.Amount.String()
	}
	return p
}

// Activity converts a validated payload back into an activity.
func (p EventPayload) Activity() (*model.Activity, error) {
	a := &model.Activity{
		GroupID:    p.GroupID,
		ActorID:    p.ActorID,
		Kind:       model.ActivityKind(p.Kind),
		SubjectID:  p.SubjectID,
		Detail:     p.Detail,
		OccurredAt: time.UnixMilli(p.OccurredAt).UTC(),
	}
	if p.Amount != "" {
		amount, err := decimal.NewFromString(p.Amount)
		if err != nil {
			return nil, fmt.Errorf("amount: %w", err)
		}
		a.Amount = &amount
	}
	return a, nil
}

// Publisher appends activity events to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new activity event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "activity.publisher"),
		metrics: recorder,
	}
}

// Publish adds an activity event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, a *model.Activity) (string, error) {
	data, err := json.Marshal(NewEventPayload(a))
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	id, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}
	return id, nil
}

// Record publishes without blocking the caller. Failures are logged and the
// event is dropped; the feed is best effort.
func (p *Publisher) Record(ctx context.Context, a *model.Activity) {
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, a)
		if err != nil {
			p.logger.Warn("failed to publish activity event",
				"group_id", a.GroupID,
				"kind", a.Kind,
				"error", err,
			)
			p.metrics.IncActivityPublished(metrics.ActivityDropped)
			return
		}

		p.logger.Debug("activity event published",
			"group_id", a.GroupID,
			"kind", a.Kind,
			"stream_id", streamID,
		)
		p.metrics.IncActivityPublished(metrics.ActivityPublished)
	}()
}

// TruncateDetail caps free text carried in an event.
func TruncateDetail(detail string) string {
	if len(detail) > maxDetailLength {
		return detail[:maxDetailLength]
	}
	return detail
}
