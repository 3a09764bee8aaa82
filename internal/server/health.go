package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Pinger checks connectivity to the event bus.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Event bus states reported by /healthz.
const (
	EventsConnected    = "connected"
	EventsDisconnected = "disconnected"
	EventsDisabled     = "disabled"
)

// HealthServer provides HTTP health check endpoints for the board server.
type HealthServer struct {
	srv    *Server
	events Pinger
	logger *slog.Logger
	server *http.Server
	ln     net.Listener
}

// NewHealthServer creates a new health check server. events may be nil when
// the event bus is disabled.
func NewHealthServer(srv *Server, events Pinger, logger *slog.Logger) *HealthServer {
	return &HealthServer{
		srv:    srv,
		events: events,
		logger: logger,
	}
}

// Start binds addr and serves /healthz in the background.
func (h *HealthServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	h.ln = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.healthCheckHandler)

	h.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("health server error", "error", err)
		}
	}()

	h.logger.Info("health server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (h *HealthServer) Addr() net.Addr {
	if h.ln == nil {
		return nil
	}
	return h.ln.Addr()
}

// Shutdown gracefully shuts down the health check server.
func (h *HealthServer) Shutdown(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

// healthCheckHandler handles GET /healthz requests.
// Returns 200 OK unless an enabled event bus is unreachable, then 503.
func (h *HealthServer) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := h.srv.Board().Stats()
	response := HealthResponse{
		Status:      "healthy",
		Notes:       stats.Notes,
		PinnedNotes: stats.PinnedNotes,
		Pins:        stats.Pins,
		Connections: h.srv.Stats().ActiveConnections,
		Events:      EventsDisabled,
	}

	status := http.StatusOK
	if h.events != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.events.Ping(ctx); err != nil {
			response.Status = "unhealthy"
			response.Events = EventsDisconnected
			response.Error = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			response.Events = EventsConnected
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status      string `json:"status"`
	Notes       int    `json:"notes"`
	PinnedNotes int    `json:"pinned_notes"`
	Pins        int    `json:"pins"`
	Connections int64  `json:"connections"`
	Events      string `json:"events"`
	Error       string `json:"error,omitempty"`
}
