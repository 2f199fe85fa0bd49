package notifier

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/net/websocket"
)

const (
	maxDecodeErrorsPerConn = 3
	writeTimeout           = 5 * time.Second
)

// TicketVerifier resolves a realtime ticket to the user it was issued to.
type TicketVerifier interface {
	Verify(ticket string) (string, error)
}

// WSServer accepts realtime connections and binds them to users in a Hub.
type WSServer struct {
	hub        *Hub
	verifier   TicketVerifier
	logger     *slog.Logger
	outboxSize int
}

// NewWSServer creates the WebSocket endpoint.
func NewWSServer(hub *Hub, verifier TicketVerifier, logger *slog.Logger) *WSServer {
	return &WSServer{
		hub:        hub,
		verifier:   verifier,
		logger:     logger,
		outboxSize: DefaultOutboxSize,
	}
}

// ServeHTTP upgrades GET requests to a WebSocket connection.
func (s *WSServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	websocket.Handler(s.handleConn).ServeHTTP(w, r)
}

func (s *WSServer) handleConn(conn *websocket.Conn) {
	peer := NewPeer(s.outboxSize)
	defer func() {
		s.hub.Unregister(peer)
		peer.Close()
		_ = conn.Close()
	}()

	go s.writeLoop(conn, peer)

	decoder := json.NewDecoder(conn)
	decodeErrors := 0

	for {
		var frame Frame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			select {
			case <-peer.Done():
				return
			default:
			}
			decodeErrors++
			peer.Send(newFrame(FrameError, errorPayload{Code: "INVALID_ARGUMENT", Message: "invalid frame payload"}))
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		switch frame.Type {
		case FrameRegister:
			s.handleRegister(peer, frame)
		case FramePing:
			peer.Send(Frame{Type: FramePong})
		default:
			peer.Send(newFrame(FrameError, errorPayload{Code: "INVALID_ARGUMENT", Message: "unsupported frame type"}))
		}
	}
}

func (s *WSServer) handleRegister(peer *Peer, frame Frame) {
	var payload registerPayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		peer.Send(newFrame(FrameError, errorPayload{Code: "INVALID_ARGUMENT", Message: "invalid register payload"}))
		return
	}

	userID, err := s.verifier.Verify(payload.Ticket)
	if err != nil {
		s.logger.Debug("realtime register rejected", slog.String("error", err.Error()))
		peer.Send(newFrame(FrameError, errorPayload{Code: "UNAUTHENTICATED", Message: "invalid or expired ticket"}))
		return
	}

	s.hub.Register(peer, userID)
	peer.Send(newFrame(FrameRegistered, registeredPayload{UserID: userID}))
}

// writeLoop is the only writer on conn. It closes conn when the peer closes
// so a blocked reader returns.
func (s *WSServer) writeLoop(conn *websocket.Conn, peer *Peer) {
	encoder := json.NewEncoder(conn)
	for {
		select {
		case <-peer.Done():
			_ = conn.Close()
			return
		case frame := <-peer.Outbox():
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := encoder.Encode(frame); err != nil {
				s.logger.Debug("realtime write failed", slog.String("error", err.Error()))
				peer.Close()
				_ = conn.Close()
				return
			}
		}
	}
}
