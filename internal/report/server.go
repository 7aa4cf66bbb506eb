// Package report implements the reporting tasks: independent consumers of
// the shared telemetry snapshot. Each reporter reads the snapshot at its own
// cadence and serializes it into its own wire format; all of them tolerate a
// stale-but-consistent snapshot and a skipped read.
package report

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"tailwind/internal/model"
)

// ControlPort is the controller as seen by reporting tasks: snapshot reads
// plus the mode request sink.
type ControlPort interface {
	Snapshot() (model.Snapshot, bool)
	Profiles() []model.AssistProfile
	RequestMode(index int) bool
	RequestEmergencyStop() bool
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Server exposes the snapshot over HTTP (/status, /modes) and pushes it to
// websocket clients, and accepts mode change commands (/mode).
type Server struct {
	cfg  model.ReportConfig
	port ControlPort

	mu      sync.Mutex
	last    model.Snapshot
	clients map[*websocket.Conn]bool

	server *http.Server
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewServer constructs the HTTP/websocket reporter.
func NewServer(cfg model.ReportConfig, port ControlPort) *Server {
	return &Server{
		cfg:     cfg,
		port:    port,
		clients: map[*websocket.Conn]bool{},
		stop:    make(chan struct{}),
	}
}

// Handler returns the route table. Split out so tests can drive it without a
// listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/modes", s.handleModes)
	mux.HandleFunc("/mode", s.handleMode)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Start launches the HTTP server and the websocket push loop.
func (s *Server) Start() {
	s.server = &http.Server{Addr: s.cfg.HTTPAddr, Handler: s.Handler()}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		log.Info().Str("addr", s.cfg.HTTPAddr).Msg("status server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("status server failed")
		}
	}()
	go s.pushLoop()
}

// pushLoop reads the snapshot at the reporter cadence and broadcasts it to
// websocket clients. A skipped read keeps the previous copy.
func (s *Server) pushLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Duration(s.cfg.UpdateRateMs) * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if snap, ok := s.port.Snapshot(); ok {
				s.mu.Lock()
				s.last = snap
				s.mu.Unlock()
			}
			s.broadcast()
		}
	}
}

func (s *Server) broadcast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteJSON(s.last); err != nil {
			log.Debug().Err(err).Msg("websocket client dropped")
			_ = conn.Close()
			delete(s.clients, conn)
		}
	}
}

// handleStatus serves the latest snapshot as a fixed JSON schema.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if snap, ok := s.port.Snapshot(); ok {
		s.mu.Lock()
		s.last = snap
		s.mu.Unlock()
	}
	s.mu.Lock()
	snap := s.last
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		log.Debug().Err(err).Msg("status encode failed")
	}
}

// handleModes lists the assist profiles with their indices.
func (s *Server) handleModes(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		Index int `json:"index"`
		model.AssistProfile
	}
	profiles := s.port.Profiles()
	out := make([]entry, len(profiles))
	for i, p := range profiles {
		out[i] = entry{Index: i, AssistProfile: p}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{"modes": out}); err != nil {
		log.Debug().Err(err).Msg("modes encode failed")
	}
}

// handleMode accepts a mode change or command. Invalid indices are rejected
// by the engine, not here; the request is just queued for the control task.
func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Mode    *int   `json:"mode"`
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	switch {
	case req.Command == "EMERGENCY_STOP":
		s.port.RequestEmergencyStop()
	case req.Mode != nil:
		s.port.RequestMode(*req.Mode)
	default:
		http.Error(w, "missing mode or command", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleWS upgrades the connection and registers the client for pushes.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	// Reader goroutine only detects disconnects; clients never send data.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.mu.Lock()
				delete(s.clients, conn)
				s.mu.Unlock()
				_ = conn.Close()
				return
			}
		}
	}()
}

// Stop shuts the server down and drops all websocket clients.
func (s *Server) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	if s.server != nil {
		_ = s.server.Close()
	}
	s.mu.Lock()
	for conn := range s.clients {
		_ = conn.Close()
		delete(s.clients, conn)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
