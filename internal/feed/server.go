// ABOUTME: Presentation feed HTTP server: health, JSON snapshots and the live websocket
// ABOUTME: Any number of displays can watch the station and send operator commands

package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teamera/basestation/internal/agent"
	"github.com/teamera/basestation/internal/dedupe"
	"github.com/teamera/basestation/internal/events"
	"github.com/teamera/basestation/internal/fusion"
)

// Station is what the feed needs from the coordinator. *station.Station
// satisfies it.
type Station interface {
	World() *fusion.Estimate
	Agents() []agent.Snapshot
	ConnectedCount() int
	Events() *events.Broadcaster

	ConnectAll(ctx context.Context) []agent.ConnectResult
	DisconnectAll()
	StartRefBox(addr string) bool
	StopRefBox()

	SetParameters(id int, raw map[string]string) error
	SendParameters(id int) error
	SendParametersToAll(raw map[string]string) error
	SaveParameters(id int, path string) (string, error)
	LoadParameters(id int, path string) ([]string, error)
	Move(id int, direction string) error

	StartRecording() (string, error)
	StopRecording() (string, error)
}

// Replies to commands carrying an id are kept this long.
const (
	replyTTL       = 5 * time.Minute
	replyCacheSize = 1024
)

// Server serves the presentation feed.
type Server struct {
	station    Station
	httpServer *http.Server
	upgrader   websocket.Upgrader
	replies    *dedupe.Cache[Reply]
	logger     *slog.Logger

	// ctx is cancelled by Shutdown so hijacked websocket connections, which
	// http.Server.Shutdown does not track, close too.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// New creates a feed server for st listening on addr.
func New(addr string, st Station, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		station: st,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			// Displays run on the operator's LAN and are served from anywhere.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		replies: dedupe.New[Reply](replyTTL, replyCacheSize, time.Minute),
		logger:  logger.With("component", "feed"),
		ctx:     ctx,
		cancel:  cancel,
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the feed's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /health/ready", s.handleReady)
	mux.HandleFunc("GET /api/world", s.handleWorld)
	mux.HandleFunc("GET /api/agents", s.handleAgents)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

// Run listens on the configured address and serves until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on feed address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, stopping feed")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("feed listening", "addr", ln.Addr().String())
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("feed server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, closes every websocket and waits for
// their handlers to return.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.replies.Close()
	err := s.httpServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = ctx.Err()
		}
	}
	return err
}

// track registers a websocket session unless the server is shutting down.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if at least one team agent is connected.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	n := s.station.ConnectedCount()
	if n == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no agents connected"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d agents)", n)
}

func (s *Server) handleWorld(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.station.World())
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.station.Agents())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
