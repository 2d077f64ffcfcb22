package debugsrv

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// client is one connected introspection viewer: a connection plus a
// closed flag guarded by its own mutex.
type client struct {
	id     string
	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
}

func (c *client) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.closed = true
		return err
	}
	return nil
}

// Server serves Snapshot updates to any number of connected clients
// over a single upgraded websocket endpoint. Read-only: it never
// consumes a client's messages beyond discarding them to keep the
// connection's read pump alive.
type Server struct {
	rec      *Recorder
	upgrader websocket.Upgrader
	http     *http.Server
	interval time.Duration

	mu      sync.RWMutex
	clients map[string]*client
	nextID  uint64
}

// NewServer builds a Server that broadcasts rec's snapshots to every
// connected client every interval (a sensible default of 250ms is used
// if interval <= 0).
func NewServer(addr string, rec *Recorder, interval time.Duration) *Server {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	s := &Server{
		rec:      rec,
		interval: interval,
		clients:  make(map[string]*client),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/introspect", s.handleUpgrade)
	s.http = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Start begins serving in the background and begins the broadcast
// loop. It returns immediately. Stop closes the clients and the HTTP
// server; the broadcast loop started here has no exit and keeps
// ticking after Stop.
func (s *Server) Start() {
	go s.http.ListenAndServe()
	go s.broadcastLoop()
}

// Stop closes every connected client and shuts down the HTTP server.
func (s *Server) Stop() error {
	s.mu.Lock()
	for _, c := range s.clients {
		c.mu.Lock()
		c.closed = true
		c.conn.Close()
		c.mu.Unlock()
	}
	s.clients = make(map[string]*client)
	s.mu.Unlock()
	return s.http.Close()
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.nextID++
	id := fmt.Sprintf("client_%d", s.nextID)
	c := &client{id: id, conn: conn}
	s.clients[id] = c
	s.mu.Unlock()

	go s.readPump(c)
}

// readPump discards every inbound message (the endpoint is read-only
// from the client's perspective) and removes the client once the
// connection drops.
func (s *Server) readPump(c *client) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, c.id)
		s.mu.Unlock()
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) broadcastLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for range ticker.C {
		snap := s.rec.Current()
		data, err := json.Marshal(snap)
		if err != nil {
			continue
		}
		s.mu.RLock()
		clients := make([]*client, 0, len(s.clients))
		for _, c := range s.clients {
			clients = append(clients, c)
		}
		s.mu.RUnlock()
		for _, c := range clients {
			c.send(data)
		}
	}
}

