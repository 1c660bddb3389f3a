// Package dashboard provides a local WebSocket feed of sync activity.
//
// The desktop UI subscribes here instead of duplicating store state:
// every push and pull pass is broadcast with the pending counts as of
// that pass, so counters and sync indicators stay live without polling.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	stdsync "sync"
	"time"

	"github.com/coder/websocket"

	"github.com/huntmate/grindsync/internal/sync"
)

// MessageType defines the type of dashboard message.
type MessageType string

const (
	// MessageTypePushComplete indicates a push pass finished.
	MessageTypePushComplete MessageType = "push_complete"

	// MessageTypePullComplete indicates a pull pass finished.
	MessageTypePullComplete MessageType = "pull_complete"

	// MessageTypeStatus carries a sync status snapshot. Sent as the
	// welcome message on connect.
	MessageTypeStatus MessageType = "status"
)

// Message is one dashboard broadcast.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// PushData describes a completed push pass.
type PushData struct {
	Sessions int         `json:"sessions"`
	Kills    int         `json:"kills"`
	Deleted  int         `json:"deleted"`
	Failed   int         `json:"failed"`
	Duration string      `json:"duration"`
	Status   sync.Status `json:"status"`
}

// PullData describes a completed pull pass.
type PullData struct {
	Sessions    int         `json:"sessions"`
	PendingKept int         `json:"pending_kept"`
	Statistics  int         `json:"statistics"`
	Status      sync.Status `json:"status"`
}

// StatusFunc supplies the snapshot sent to newly-connected clients.
type StatusFunc func(ctx context.Context) (sync.Status, error)

// Config holds server configuration.
type Config struct {
	// Port to listen on (default: 8090).
	Port int

	// Status supplies the welcome snapshot. May be nil.
	Status StatusFunc

	// Logger for server activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:   8090,
		Logger: log.Default(),
	}
}

// Server manages WebSocket clients and broadcasts sync events.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server
	status   StatusFunc

	clients   map[*websocket.Conn]bool
	clientsMu stdsync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     stdsync.WaitGroup

	logger *log.Logger
}

// NewServer creates a new dashboard server.
func NewServer(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      fmt.Sprintf(":%d", config.Port),
		status:    config.Status,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 64),
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}
}

// PushCompleted implements the daemon's Broadcaster interface.
func (s *Server) PushCompleted(result sync.PushResult, status sync.Status) {
	s.send(MessageTypePushComplete, PushData{
		Sessions: result.Sessions,
		Kills:    result.Kills,
		Deleted:  result.Deleted,
		Failed:   result.Failed,
		Duration: result.Duration.Round(time.Millisecond).String(),
		Status:   status,
	})
}

// PullCompleted implements the daemon's Broadcaster interface.
func (s *Server) PullCompleted(result sync.PullResult, status sync.Status) {
	s.send(MessageTypePullComplete, PullData{
		Sessions:    result.Sessions,
		PendingKept: result.PendingKept,
		Statistics:  result.Statistics,
		Status:      status,
	})
}

func (s *Server) send(typ MessageType, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Printf("Failed to marshal %s payload: %v", typ, err)
		return
	}

	msg := Message{Type: typ, Timestamp: time.Now(), Data: data}
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Println("Warning: broadcast channel full, dropping message")
	}
}

// Start begins serving. Non-blocking; use Stop to shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Dashboard listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.wg.Wait()
	return nil
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("Failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			conns := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				conns = append(conns, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range conns {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The feed is bound to localhost for the desktop UI.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	count := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Printf("Client connected (total: %d)", count)

	s.sendWelcome(r.Context(), conn)

	go s.readLoop(conn)
}

// sendWelcome pushes the current sync snapshot to a new client so it can
// render state without waiting for the next pass.
func (s *Server) sendWelcome(ctx context.Context, conn *websocket.Conn) {
	var snapshot sync.Status
	if s.status != nil {
		st, err := s.status(ctx)
		if err != nil {
			s.logger.Printf("Failed to read status for welcome: %v", err)
		} else {
			snapshot = st
		}
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	msg := Message{Type: MessageTypeStatus, Timestamp: time.Now(), Data: data}
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	wctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}

// readLoop drains client frames so pings are answered and disconnects are
// noticed. Client messages carry no meaning.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; exists {
		delete(s.clients, conn)
		count := len(s.clients)
		s.clientsMu.Unlock()

		_ = conn.Close(websocket.StatusNormalClosure, "")
		s.logger.Printf("Client disconnected (total: %d)", count)
		return
	}
	s.clientsMu.Unlock()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	count := len(s.clients)
	s.clientsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": count,
	})
}
