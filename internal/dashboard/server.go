// Package dashboard serves live watch-mode progress to WebSocket clients.
//
// Each run in watch mode broadcasts a run_started message, one item
// message per reconciled item, and a run_complete message with the counts.
// Clients that connect later receive a status message carrying the most
// recent run_complete data.
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

// MessageType names a dashboard message.
type MessageType string

const (
	// MessageTypeStatus is sent to each client on connect
	MessageTypeStatus MessageType = "status"

	// MessageTypeRunStarted indicates a run began
	MessageTypeRunStarted MessageType = "run_started"

	// MessageTypeItem carries the outcome for one item
	MessageTypeItem MessageType = "item"

	// MessageTypeRunComplete indicates a run finished, successfully or not
	MessageTypeRunComplete MessageType = "run_complete"
)

// Message is the envelope of every message sent to clients.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// StatusData is the payload of the status message.
type StatusData struct {
	Clients int             `json:"clients"`
	LastRun json.RawMessage `json:"last_run,omitempty"`
}

// clientQueue bounds each client's outgoing queue. A client whose queue
// is full is disconnected.
const (
	clientQueue  = 64
	writeTimeout = 5 * time.Second
)

// client is one connected WebSocket with its outgoing queue.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Server fans watch progress out to WebSocket clients.
type Server struct {
	addr     string
	listener net.Listener
	http     *http.Server
	logger   *log.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	lastRun json.RawMessage
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config configures a Server.
type Config struct {
	// Host to bind (default: 127.0.0.1)
	Host string

	// Port to listen on; 0 picks a free port
	Port int

	// Logger for server activity (default: stderr with [dashboard] prefix)
	Logger *log.Logger
}

// NewServer returns a server for config. Nothing listens until Start.
func NewServer(config Config) *Server {
	if config.Host == "" {
		config.Host = "127.0.0.1"
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[dashboard] ", log.LstdFlags)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:    net.JoinHostPort(config.Host, fmt.Sprint(config.Port)),
		logger:  config.Logger,
		clients: make(map[*client]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start listens and serves the page, /health and /ws in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWebSocket)
	s.http = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Serving watch progress on http://%s", ln.Addr())
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("Serve failed: %v", err)
		}
	}()
	return nil
}

// Run starts the server and stops it when ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop()
}

// Stop disconnects every client and shuts the listener down. It is safe
// to call more than once.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	// Client loops watch s.ctx and close their connections
	s.cancel()

	var err error
	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if shutdownErr := s.http.Shutdown(ctx); shutdownErr != nil {
			err = fmt.Errorf("dashboard shutdown: %w", shutdownErr)
		}
	}
	s.wg.Wait()
	s.logger.Println("Dashboard stopped")
	return err
}

// Broadcast queues msg for every connected client. The data of the latest
// run_complete message is kept for clients that connect later.
func (s *Server) Broadcast(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Printf("Dropping %s message: %v", msg.Type, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Type == MessageTypeRunComplete {
		s.lastRun = msg.Data
	}
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			s.logger.Printf("Client fell %d messages behind, disconnecting", clientQueue)
			s.dropLocked(c)
		}
	}
}

// handleWebSocket registers a client, queues its status message and
// writes its queue until either side goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
	})
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientQueue)}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = conn.Close(websocket.StatusGoingAway, "dashboard stopping")
		return
	}
	s.clients[c] = struct{}{}
	connected := len(s.clients)
	status, err := json.Marshal(StatusData{Clients: connected, LastRun: s.lastRun})
	if err == nil {
		status, err = json.Marshal(Message{Type: MessageTypeStatus, Timestamp: time.Now(), Data: status})
	}
	if err == nil {
		c.send <- status
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	s.logger.Printf("Client connected (%d connected)", connected)
	s.serveClient(c)
}

// serveClient writes queued messages to c. Reads only serve to notice the
// peer closing.
func (s *Server) serveClient(c *client) {
	peerGone := c.conn.CloseRead(context.Background())
	defer func() {
		s.mu.Lock()
		s.dropLocked(c)
		connected := len(s.clients)
		s.mu.Unlock()

		if s.ctx.Err() != nil {
			_ = c.conn.Close(websocket.StatusGoingAway, "dashboard stopping")
		} else {
			_ = c.conn.Close(websocket.StatusNormalClosure, "")
		}
		s.logger.Printf("Client disconnected (%d connected)", connected)
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-peerGone.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.logger.Printf("Write to client failed: %v", err)
				return
			}
		}
	}
}

// dropLocked unregisters c and closes its queue. s.mu must be held.
func (s *Server) dropLocked(c *client) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	close(c.send)
}

// handleHealth reports the client count and the last completed run.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	body := struct {
		Status  string          `json:"status"`
		Clients int             `json:"clients"`
		LastRun json.RawMessage `json:"last_run,omitempty"`
	}{"ok", len(s.clients), s.lastRun}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

// handleRoot serves a page that lists incoming messages, newest first.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head><title>edit-ghi watch</title></head>
<body>
  <h1>edit-ghi watch</h1>
  <p>Messages from <code>ws://%s/ws</code>, newest first. <a href="/health">health</a></p>
  <pre id="log"></pre>
  <script>
    const out = document.getElementById("log");
    const ws = new WebSocket("ws://" + location.host + "/ws");
    ws.onmessage = (e) => { out.textContent = e.data + "\n" + out.textContent; };
    ws.onclose = () => { out.textContent = "disconnected\n" + out.textContent; };
  </script>
</body>
</html>`, r.Host)
}

// GetAddr returns the listening address, or the configured one before Start.
func (s *Server) GetAddr() string {
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
