package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/mkoriyama/Akari/common/version"
)

// statusProvider is the slice of Store the health endpoints read from.
type statusProvider interface {
	CountNotes(ctx context.Context) (int, error)
	CountNotifications(ctx context.Context) (int, error)
}

// HealthServer exposes GET /health (liveness) and GET /status (runtime
// stats). It is optional; Akari runs without it when HTTPAddr is empty.
type HealthServer struct {
	addr      string
	store     statusProvider
	startedAt time.Time
	handler   http.Handler
	server    *http.Server
}

// buildInfo appears in both endpoint payloads.
type buildInfo struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// statusPayload is returned by GET /status.
type statusPayload struct {
	buildInfo
	BuildTime         string    `json:"build_time"`
	StartedAt         time.Time `json:"started_at"`
	UptimeSecs        float64   `json:"uptime_seconds"`
	NoteCount         int       `json:"note_count"`
	NotificationCount int       `json:"notification_count"`
}

// NewHealthServer wires the routes but does not listen yet.
func NewHealthServer(addr string, sp statusProvider) *HealthServer {
	hs := &HealthServer{
		addr:      addr,
		store:     sp,
		startedAt: time.Now(),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", hs.handleHealth)
	mux.HandleFunc("GET /status", hs.handleStatus)
	hs.handler = mux
	return hs
}

// ServeHTTP lets tests hit the routes through httptest without a listener.
func (h *HealthServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

// Start opens the listener, serves in the background, and shuts down when
// ctx is cancelled. It returns once the port is bound, so callers know the
// endpoint is reachable.
func (h *HealthServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("health server: listen %s: %w", h.addr, err)
	}

	h.server = &http.Server{
		Handler:      h,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("health server listening", "addr", ln.Addr().String())
		if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("health server stopped", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		h.Stop()
	}()
	return nil
}

// Stop drains in-flight requests with a short deadline.
func (h *HealthServer) Stop() {
	if h.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.server.Shutdown(ctx); err != nil {
		slog.Warn("health server shutdown error", "err", err)
	}
}

func (h *HealthServer) build() buildInfo {
	return buildInfo{Status: "ok", Version: version.Version, Commit: version.GitCommit}
}

func (h *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.build())
}

func (h *HealthServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	p := statusPayload{
		buildInfo:  h.build(),
		BuildTime:  version.BuildTime,
		StartedAt:  h.startedAt,
		UptimeSecs: time.Since(h.startedAt).Seconds(),
	}
	// Count failures degrade to zeros; /status must answer even when the
	// database is wedged.
	if h.store != nil {
		if n, err := h.store.CountNotes(r.Context()); err == nil {
			p.NoteCount = n
		}
		if n, err := h.store.CountNotifications(r.Context()); err == nil {
			p.NotificationCount = n
		}
	}
	writeJSON(w, http.StatusOK, p)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("health: encode response", "err", err)
	}
}
