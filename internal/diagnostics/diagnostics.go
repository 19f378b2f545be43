// Package diagnostics exposes an optional /healthz + /progress HTTP server
// and a websocket progress fan-out for the extraction engine. It is off by
// default — the in-process progress callback is what a driving CLI or TUI
// consumes; this server exists for operators who run the engine headless
// and want to poll or stream progress externally.
package diagnostics

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/R3E-Network/sfmc-inv2/pkg/logger"
)

// Event is one progress update broadcast to /progress subscribers and
// recorded for /healthz's "last event" field.
type Event struct {
	Kind      string    `json:"kind"`
	Done      int       `json:"done"`
	Total     int       `json:"total"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Status reports the engine's overall run state for /healthz.
type Status struct {
	Running    bool   `json:"running"`
	LastEvent  *Event `json:"lastEvent,omitempty"`
	EventCount int    `json:"eventCount"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the composition root for the diagnostics HTTP surface.
type Server struct {
	log *logger.Logger

	mu         sync.Mutex
	running    bool
	lastEvent  *Event
	eventCount int
	subs       map[chan Event]struct{}

	router     *mux.Router
	httpServer *http.Server
}

// New constructs a Server bound to addr (e.g. ":8089"). Call Start to
// actually listen.
func New(addr string, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewDefault("diagnostics")
	}
	s := &Server{log: log, subs: make(map[chan Event]struct{})}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	router.HandleFunc("/progress", s.handleProgressWS)
	s.router = router

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Handle mounts h at path (e.g. a Prometheus handler at /metrics). Call
// before Start.
func (s *Server) Handle(path string, h http.Handler) {
	s.router.Handle(path, h)
}

// Start begins listening in a background goroutine. It never blocks the
// caller; listen errors are logged.
func (s *Server) Start() {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithField("error", err.Error()).Error("diagnostics server stopped unexpectedly")
		}
	}()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// SetRunning flips the /healthz "running" flag. The composition root calls
// this around a Runner.Run/RunSequential call.
func (s *Server) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
}

// Report feeds one progress event into the server; its signature matches
// runner.ProgressSink, so it can be passed directly as one.
func (s *Server) Report(kind string, done, total int, message string) {
	evt := Event{Kind: kind, Done: done, Total: total, Message: message, Timestamp: time.Now()}

	s.mu.Lock()
	s.lastEvent = &evt
	s.eventCount++
	subs := make([]chan Event, 0, len(s.subs))
	for ch := range s.subs {
		subs = append(subs, ch)
	}
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- evt:
		default: // slow subscriber; drop rather than block the extractor
		}
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	status := Status{Running: s.running, LastEvent: s.lastEvent, EventCount: s.eventCount}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

func (s *Server) handleProgressWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithField("error", err.Error()).Warn("progress websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch := make(chan Event, 32)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
		close(ch)
	}()

	for evt := range ch {
		if err := conn.WriteJSON(evt); err != nil {
			return
		}
	}
}
