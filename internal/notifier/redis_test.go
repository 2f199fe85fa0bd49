package notifier

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/splitledger/splitledger/internal/metrics"
	"github.com/splitledger/splitledger/internal/model"
)

func TestRedisFanout_PublishFailureDropsNotification(t *testing.T) {
	// Nothing listens on port 1, so every publish fails.
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	hub, rec := newTestHub()
	peer := NewPeer(4)
	hub.Register(peer, "alice")

	fanout := NewRedisFanout(client, hub, testLogger(), rec)
	fanout.Notify(context.Background(), "alice", &model.Notification{ID: "n1"})

	select {
	case f := <-peer.Outbox():
		t.Fatalf("expected no local delivery after a failed publish, got %q frame", f.Type)
	default:
	}

	snap := rec.Snapshot()
	if snap.Deliveries[metrics.DeliveryDropped] != 1 {
		t.Fatalf("expected one dropped delivery, got %v", snap.Deliveries)
	}
	if snap.Deliveries[metrics.DeliveryDelivered] != 0 {
		t.Fatalf("expected no delivered count, got %v", snap.Deliveries)
	}
}

func TestRedisFanout_DeliverIgnoresMalformedPayload(t *testing.T) {
	hub, rec := newTestHub()
	peer := NewPeer(4)
	hub.Register(peer, "alice")

	fanout := NewRedisFanout(nil, hub, testLogger(), rec)
	fanout.deliver(context.Background(), "not json")
	fanout.deliver(context.Background(), `{"user_id":"alice"}`)

	select {
	case f := <-peer.Outbox():
		t.Fatalf("unexpected %q frame", f.Type)
	default:
	}
	if len(rec.Snapshot().Deliveries) != 0 {
		t.Fatalf("expected no deliveries, got %v", rec.Snapshot().Deliveries)
	}
}
