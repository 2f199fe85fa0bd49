package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/splitledger/splitledger/internal/metrics"
	"github.com/splitledger/splitledger/internal/model"
)

// DefaultChannel is the Redis pub/sub channel shared by all instances.
const DefaultChannel = "splitledger:notify"

type envelope struct {
	UserID       string              `json:"user_id"`
	Notification *model.Notification `json:"notification"`
}

// RedisFanout publishes notifications so that the instance holding the
// recipient's connection delivers them. Delivery stays at-most-once:
// messages published while a subscriber is down are lost.
type RedisFanout struct {
	client   *redis.Client
	hub      *Hub
	channel  string
	logger   *slog.Logger
	recorder metrics.Recorder
}

// NewRedisFanout creates a fan-out notifier backed by hub for local delivery.
func NewRedisFanout(client *redis.Client, hub *Hub, logger *slog.Logger, recorder metrics.Recorder) *RedisFanout {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &RedisFanout{
		client:   client,
		hub:      hub,
		channel:  DefaultChannel,
		logger:   logger,
		recorder: recorder,
	}
}

// Notify publishes n for userID. A failed publish drops the notification:
// the command may already have reached Redis, so delivering locally as well
// could hand the same frame to the recipient twice.
func (f *RedisFanout) Notify(ctx context.Context, userID string, n *model.Notification) {
	payload, err := json.Marshal(envelope{UserID: userID, Notification: n})
	if err != nil {
		f.logger.ErrorContext(ctx, "failed to encode notification", slog.String("error", err.Error()))
		return
	}

	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		f.recorder.IncNotificationDelivery(metrics.DeliveryDropped)
		f.logger.WarnContext(ctx, "notification publish failed, dropping",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

// Run subscribes to the channel and delivers messages to the local hub
// until ctx is cancelled.
func (f *RedisFanout) Run(ctx context.Context) error {
	sub := f.client.Subscribe(ctx, f.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", f.channel, err)
	}
	f.logger.Info("notification fan-out subscribed", slog.String("channel", f.channel))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			f.deliver(ctx, msg.Payload)
		}
	}
}

func (f *RedisFanout) deliver(ctx context.Context, payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil || env.Notification == nil {
		f.logger.Warn("discarding malformed notification message")
		return
	}

	outcome := f.hub.Deliver(env.UserID, env.Notification)
	// Only the instance holding the connection counts a delivery.
	if outcome != metrics.DeliveryOffline {
		f.recorder.IncNotificationDelivery(outcome)
	}
	f.logger.DebugContext(ctx, "fan-out delivery",
		slog.String("user_id", env.UserID),
		slog.String("outcome", outcome),
	)
}
