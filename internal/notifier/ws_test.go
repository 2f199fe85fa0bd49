package notifier

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"

	"github.com/splitledger/splitledger/internal/model"
)

type fakeVerifier map[string]string

func (f fakeVerifier) Verify(ticket string) (string, error) {
	if userID, ok := f[ticket]; ok {
		return userID, nil
	}
	return "", errors.New("unknown ticket")
}

func startWSServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewWSServer(hub, fakeVerifier{"good": "alice"}, testLogger()))
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, err := websocket.Dial(wsURL, "", srv.URL)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()
	if err := json.NewEncoder(conn).Encode(frame); err != nil {
		t.Fatalf("encode frame: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	var got Frame
	if err := json.NewDecoder(conn).Decode(&got); err != nil {
		t.Fatalf("decode server frame: %v", err)
	}
	return got
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWSServer_RegisterAndReceive(t *testing.T) {
	hub, _ := newTestHub()
	srv := startWSServer(t, hub)
	conn := dialWS(t, srv)

	writeFrame(t, conn, map[string]any{"type": "register", "payload": map[string]string{"ticket": "good"}})

	registered := readFrame(t, conn)
	if registered.Type != FrameRegistered {
		t.Fatalf("frame type = %q, want %q", registered.Type, FrameRegistered)
	}
	if !hub.Online("alice") {
		t.Fatal("alice should be online after register")
	}

	hub.Deliver("alice", &model.Notification{ID: "n1", Message: model.InviteMessage("Trip")})

	got := readFrame(t, conn)
	if got.Type != FrameNotification {
		t.Fatalf("frame type = %q, want %q", got.Type, FrameNotification)
	}
	var n model.Notification
	if err := json.Unmarshal(got.Payload, &n); err != nil {
		t.Fatalf("decode notification: %v", err)
	}
	if n.Message != `You have been invited to join the group "Trip"` {
		t.Errorf("message = %q", n.Message)
	}
}

func TestWSServer_BadTicket(t *testing.T) {
	hub, _ := newTestHub()
	srv := startWSServer(t, hub)
	conn := dialWS(t, srv)

	writeFrame(t, conn, map[string]any{"type": "register", "payload": map[string]string{"ticket": "forged"}})

	got := readFrame(t, conn)
	if got.Type != FrameError {
		t.Fatalf("frame type = %q, want %q", got.Type, FrameError)
	}
	if hub.Count() != 0 {
		t.Errorf("no user should be registered, got %d", hub.Count())
	}
}

func TestWSServer_PingAndUnknownFrame(t *testing.T) {
	hub, _ := newTestHub()
	srv := startWSServer(t, hub)
	conn := dialWS(t, srv)

	writeFrame(t, conn, map[string]any{"type": "ping"})
	if got := readFrame(t, conn); got.Type != FramePong {
		t.Errorf("frame type = %q, want %q", got.Type, FramePong)
	}

	writeFrame(t, conn, map[string]any{"type": "chat"})
	if got := readFrame(t, conn); got.Type != FrameError {
		t.Errorf("frame type = %q, want %q", got.Type, FrameError)
	}
}

func TestWSServer_DisconnectUnregisters(t *testing.T) {
	hub, _ := newTestHub()
	srv := startWSServer(t, hub)
	conn := dialWS(t, srv)

	writeFrame(t, conn, map[string]any{"type": "register", "payload": map[string]string{"ticket": "good"}})
	readFrame(t, conn)

	_ = conn.Close()
	waitFor(t, func() bool { return !hub.Online("alice") })
}

func TestWSServer_RejectsNonGet(t *testing.T) {
	hub, _ := newTestHub()
	srv := startWSServer(t, hub)

	resp, err := http.Post(srv.URL+"/ws", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}
