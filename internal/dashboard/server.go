// Package dashboard serves live sync activity over WebSocket.
//
// Every sync event is broadcast to connected clients, followed by a fresh
// status snapshot, so a browser tab or terminal client can watch queued
// writes drain as connectivity comes and goes.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// MessageType tags a dashboard message.
type MessageType string

const (
	// MessageTypeEvent carries one sync event
	MessageTypeEvent MessageType = "event"

	// MessageTypeStatus carries a status snapshot
	MessageTypeStatus MessageType = "status"
)

// Message is the JSON envelope written to clients.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage marshals v into a message of type t.
func NewMessage(t MessageType, v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, fmt.Errorf("failed to marshal %s message: %w", t, err)
	}
	return Message{Type: t, Timestamp: time.Now(), Data: data}, nil
}

// SnapshotFunc returns the payload sent to a client when it connects.
type SnapshotFunc func(ctx context.Context) (Message, error)

const (
	// DefaultAddr keeps the dashboard on loopback.
	DefaultAddr = "127.0.0.1:7878"

	// clientBuffer is how many messages a client may fall behind before it
	// is disconnected.
	clientBuffer = 64

	writeTimeout = 5 * time.Second
)

// Config configures a Server.
type Config struct {
	// Addr to listen on (default: 127.0.0.1:7878; port 0 picks a free port)
	Addr string

	// Snapshot builds the welcome message (optional)
	Snapshot SnapshotFunc

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// client is one connected subscriber. Messages are written by the
// connection's own handler goroutine, in the order they were queued.
type client struct {
	send      chan []byte
	gone      chan struct{}
	closeOnce sync.Once
}

func (c *client) kick() {
	c.closeOnce.Do(func() { close(c.gone) })
}

// Server fans dashboard messages out to WebSocket clients.
type Server struct {
	addr     string
	snapshot SnapshotFunc
	logger   *log.Logger

	listener net.Listener
	http     *http.Server

	mu      sync.Mutex
	clients map[*client]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	conns  sync.WaitGroup
}

// NewServer creates a server. Call Start to listen.
func NewServer(cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[dashboard] ", log.LstdFlags)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:     addr,
		snapshot: cfg.Snapshot,
		logger:   logger,
		clients:  make(map[*client]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleSubscribe)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleIndex)

	s.http = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}

	go func() {
		s.logger.Printf("Dashboard listening on %s", ln.Addr())
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("Server error: %v", err)
		}
	}()
	return nil
}

// Stop disconnects every client and shuts the listener down.
func (s *Server) Stop() error {
	s.logger.Println("Stopping dashboard")
	s.cancel()

	s.mu.Lock()
	for c := range s.clients {
		c.kick()
	}
	s.mu.Unlock()

	if s.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.http.Shutdown(ctx)
	// Upgraded connections are not tracked by Shutdown.
	s.conns.Wait()
	if err != nil {
		return fmt.Errorf("failed to shut down dashboard: %w", err)
	}
	return nil
}

// Broadcast queues msg for every client without blocking. A client whose
// buffer is full is disconnected rather than holding the others back.
func (s *Server) Broadcast(msg Message) {
	if s.ctx.Err() != nil {
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Printf("Failed to marshal %s message: %v", msg.Type, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			s.logger.Println("Warning: client too slow, disconnecting")
			delete(s.clients, c)
			c.kick()
		}
	}
}

// handleSubscribe upgrades the request and pumps queued messages to the
// client until either side goes away.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	s.conns.Add(1)
	defer s.conns.Done()
	defer conn.CloseNow()

	c := &client{send: make(chan []byte, clientBuffer), gone: make(chan struct{})}

	// Queued before registration so it is always the first message.
	if s.snapshot != nil {
		if msg, err := s.snapshot(r.Context()); err != nil {
			s.logger.Printf("Failed to build snapshot: %v", err)
		} else if data, err := json.Marshal(msg); err == nil {
			c.send <- data
		}
	}

	n := s.register(c)
	s.logger.Printf("Client connected (total: %d)", n)
	defer func() {
		s.logger.Printf("Client disconnected (total: %d)", s.unregister(c))
	}()

	// Clients never send anything; CloseRead notices when they leave.
	ctx := conn.CloseRead(s.ctx)
	for {
		select {
		case data := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		case <-c.gone:
			conn.Close(websocket.StatusGoingAway, "")
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) register(c *client) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
	return len(s.clients)
}

func (s *Server) unregister(c *client) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
	c.kick()
	return len(s.clients)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.snapshot == nil {
		http.Error(w, "status unavailable", http.StatusNotFound)
		return
	}
	msg, err := s.snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(msg.Data)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}{"ok", s.ClientCount()})
}

const indexPage = `<!DOCTYPE html>
<html>
<head><title>tally sync</title></head>
<body>
<h1>tally sync</h1>
<p><a href="/status">status</a> &middot; <a href="/health">health</a></p>
<pre id="log"></pre>
<script>
  const out = document.getElementById("log");
  const ws = new WebSocket("ws://" + location.host + "/ws");
  ws.onmessage = (m) => { out.textContent = m.data + "\n" + out.textContent; };
</script>
</body>
</html>`

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexPage))
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}
