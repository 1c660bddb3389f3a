package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/huntmate/grindsync/internal/sync"
)

// startTestServer runs a dashboard on an ephemeral port and returns its
// base address.
func startTestServer(t *testing.T, status StatusFunc) (*Server, string) {
	t.Helper()

	s := NewServer(&Config{
		Port:   0,
		Status: status,
		Logger: log.New(io.Discard, "", 0),
	})
	if err := s.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })

	_, port, err := net.SplitHostPort(s.Addr())
	if err != nil {
		t.Fatalf("failed to parse server address %q: %v", s.Addr(), err)
	}
	return s, "127.0.0.1:" + port
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to unmarshal message: %v", err)
	}
	return msg
}

func TestHealthEndpoint(t *testing.T) {
	_, addr := startTestServer(t, nil)

	resp, err := http.Get(fmt.Sprintf("http://%s/health", addr))
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("unexpected health body: %+v", body)
	}
}

func TestWelcomeSnapshotAndBroadcast(t *testing.T) {
	status := func(ctx context.Context) (sync.Status, error) {
		return sync.Status{
			UserID:          "9d70a766-98e1-5049-be83-e4d31a28f936",
			PendingSessions: 2,
		}, nil
	}
	s, addr := startTestServer(t, status)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, fmt.Sprintf("ws://%s/ws", addr), nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// First frame is the welcome snapshot.
	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeStatus {
		t.Fatalf("expected status welcome, got %s", msg.Type)
	}
	var snapshot sync.Status
	if err := json.Unmarshal(msg.Data, &snapshot); err != nil {
		t.Fatalf("failed to unmarshal snapshot: %v", err)
	}
	if snapshot.PendingSessions != 2 {
		t.Errorf("unexpected snapshot: %+v", snapshot)
	}

	// A completed push pass reaches the connected client.
	s.PushCompleted(sync.PushResult{Sessions: 3, Kills: 7, Duration: 120 * time.Millisecond}, sync.Status{})

	msg = readMessage(t, ctx, conn)
	if msg.Type != MessageTypePushComplete {
		t.Fatalf("expected push_complete, got %s", msg.Type)
	}
	var push PushData
	if err := json.Unmarshal(msg.Data, &push); err != nil {
		t.Fatalf("failed to unmarshal push data: %v", err)
	}
	if push.Sessions != 3 || push.Kills != 7 {
		t.Errorf("unexpected push data: %+v", push)
	}

	// Pull passes broadcast too.
	s.PullCompleted(sync.PullResult{Sessions: 1, PendingKept: 2}, sync.Status{})
	msg = readMessage(t, ctx, conn)
	if msg.Type != MessageTypePullComplete {
		t.Fatalf("expected pull_complete, got %s", msg.Type)
	}
}

func TestBroadcastWithoutClients(t *testing.T) {
	s, _ := startTestServer(t, nil)

	// Nothing to deliver to; must not block or panic.
	s.PushCompleted(sync.PushResult{Sessions: 1}, sync.Status{})
	s.PullCompleted(sync.PullResult{}, sync.Status{})

	if count := s.ClientCount(); count != 0 {
		t.Errorf("expected 0 clients, got %d", count)
	}
}
