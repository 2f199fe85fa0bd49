package notifier

import (
	"context"
	"log/slog"
	"sync"

	"github.com/splitledger/splitledger/internal/metrics"
	"github.com/splitledger/splitledger/internal/model"
)

// DefaultOutboxSize is the number of frames a peer buffers before dropping.
const DefaultOutboxSize = 16

// Peer is the server-side handle of one live connection.
// Frames queued with Send are written by the connection's writer loop.
type Peer struct {
	out       chan Frame
	done      chan struct{}
	closeOnce sync.Once
}

// NewPeer creates a peer with an outbox of the given size.
func NewPeer(outboxSize int) *Peer {
	if outboxSize <= 0 {
		outboxSize = DefaultOutboxSize
	}
	return &Peer{
		out:  make(chan Frame, outboxSize),
		done: make(chan struct{}),
	}
}

// Send queues f without blocking. It reports false when the peer is closed
// or its outbox is full.
func (p *Peer) Send(f Frame) bool {
	select {
	case <-p.done:
		return false
	default:
	}

	select {
	case p.out <- f:
		return true
	default:
		return false
	}
}

// Outbox returns the channel the writer loop drains.
func (p *Peer) Outbox() <-chan Frame {
	return p.out
}

// Done is closed once the peer is closed.
func (p *Peer) Done() <-chan struct{} {
	return p.done
}

// Close marks the peer closed. Safe to call more than once.
func (p *Peer) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}

// Hub is the process-wide presence map. It keeps user→peer and peer→user
// under one lock so disconnects remove in constant time.
type Hub struct {
	mu     sync.Mutex
	byUser map[string]*Peer
	byPeer map[*Peer]string

	logger   *slog.Logger
	recorder metrics.Recorder
}

// NewHub creates an empty presence hub.
func NewHub(logger *slog.Logger, recorder metrics.Recorder) *Hub {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Hub{
		byUser:   make(map[string]*Peer),
		byPeer:   make(map[*Peer]string),
		logger:   logger,
		recorder: recorder,
	}
}

// Register binds userID to p. A previous peer of the same user stops
// receiving deliveries, and a peer registered under another user moves.
func (h *Hub) Register(p *Peer, userID string) {
	h.mu.Lock()
	if prevUser, ok := h.byPeer[p]; ok && prevUser != userID {
		delete(h.byUser, prevUser)
	}
	if prevPeer, ok := h.byUser[userID]; ok && prevPeer != p {
		delete(h.byPeer, prevPeer)
	}
	h.byUser[userID] = p
	h.byPeer[p] = userID
	online := len(h.byUser)
	h.mu.Unlock()

	h.recorder.SetOnlineUsers(online)
	h.logger.Debug("realtime peer registered", slog.String("user_id", userID))
}

// Unregister removes p. It returns the user p was bound to, if any.
func (h *Hub) Unregister(p *Peer) (string, bool) {
	h.mu.Lock()
	userID, ok := h.byPeer[p]
	if ok {
		delete(h.byPeer, p)
		if h.byUser[userID] == p {
			delete(h.byUser, userID)
		}
	}
	online := len(h.byUser)
	h.mu.Unlock()

	if ok {
		h.recorder.SetOnlineUsers(online)
		h.logger.Debug("realtime peer unregistered", slog.String("user_id", userID))
	}
	return userID, ok
}

// Online reports whether userID currently has a registered peer.
func (h *Hub) Online(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.byUser[userID]
	return ok
}

// Count returns the number of online users.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.byUser)
}

// Deliver sends n to userID's peer on this instance and reports the outcome.
func (h *Hub) Deliver(userID string, n *model.Notification) string {
	h.mu.Lock()
	p, ok := h.byUser[userID]
	h.mu.Unlock()

	if !ok {
		return metrics.DeliveryOffline
	}
	if !p.Send(newFrame(FrameNotification, n)) {
		return metrics.DeliveryDropped
	}
	return metrics.DeliveryDelivered
}

// Notify implements Notifier for a single instance.
func (h *Hub) Notify(ctx context.Context, userID string, n *model.Notification) {
	outcome := h.Deliver(userID, n)
	h.recorder.IncNotificationDelivery(outcome)
	h.logger.DebugContext(ctx, "notification delivery",
		slog.String("user_id", userID),
		slog.String("notification_id", n.ID),
		slog.String("outcome", outcome),
	)
}

// Shutdown closes every registered peer.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	peers := make([]*Peer, 0, len(h.byPeer))
	for p := range h.byPeer {
		peers = append(peers, p)
	}
	h.byUser = make(map[string]*Peer)
	h.byPeer = make(map[*Peer]string)
	h.mu.Unlock()

	for _, p := range peers {
		p.Close()
	}
	h.recorder.SetOnlineUsers(0)
	return nil
}
