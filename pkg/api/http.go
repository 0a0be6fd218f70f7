package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/cuemby/downtime/pkg/log"
	"github.com/cuemby/downtime/pkg/manager"
	"github.com/cuemby/downtime/pkg/metrics"
)

// HTTPServer is the HTTP side of the controller: the websocket endpoint
// agents connect to, health and readiness checks, and metrics
type HTTPServer struct {
	manager *manager.Manager
	mux     *http.ServeMux
	server  *http.Server
	checks  []readinessCheck
}

// readinessCheck is one condition /ready requires. A nil error passes.
type readinessCheck struct {
	name  string
	check func() error
}

var (
	errNoManager    = errors.New("not initialized")
	errWaitingTick  = errors.New("waiting for first tick")
	errStoreFailure = errors.New("store not accessible")
)

// NewHTTPServer builds the HTTP handler tree. A nil manager serves health
// and metrics only and is never ready.
func NewHTTPServer(mgr *manager.Manager) *HTTPServer {
	hs := &HTTPServer{
		manager: mgr,
		mux:     http.NewServeMux(),
	}
	hs.checks = []readinessCheck{
		{name: "storage", check: hs.checkStore},
		{name: "reconciler", check: hs.checkReconciler},
	}

	hs.mux.HandleFunc("GET /health", hs.healthHandler)
	hs.mux.HandleFunc("GET /ready", hs.readyHandler)
	hs.mux.Handle("GET /live", metrics.LivenessHandler())
	hs.mux.Handle("GET /health/components", metrics.HealthHandler())
	hs.mux.Handle("GET /metrics", metrics.Handler())
	if mgr != nil {
		hs.mux.Handle("GET /ws/{client_id}", mgr.Hub())
	}
	return hs
}

// Start serves on addr until Shutdown
func (hs *HTTPServer) Start(addr string) error {
	hs.server = &http.Server{
		Addr:              addr,
		Handler:           hs.mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Logger.Info().Str("addr", addr).Msg("HTTP server listening")
	if err := hs.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for handlers to return.
// Hijacked websocket connections are closed by the manager, not here.
func (hs *HTTPServer) Shutdown(ctx context.Context) error {
	if hs.server == nil {
		return nil
	}
	return hs.server.Shutdown(ctx)
}

// Handler returns the handler tree for embedding in other servers
func (hs *HTTPServer) Handler() http.Handler {
	return hs.mux
}

// HealthResponse is the /health body
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
	Clients   int       `json:"clients"`
	Connected int       `json:"connected"`
}

// ReadyResponse is the /ready body
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// healthHandler answers 200 while the process can serve requests, with
// a count of known and connected clients
func (hs *HTTPServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   metrics.GetHealth().Version,
	}
	if hs.manager != nil {
		for _, c := range hs.manager.ListClients() {
			resp.Clients++
			if c.Connected {
				resp.Connected++
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// readyHandler answers 200 once every readiness check passes. The message
// names the first failing check.
func (hs *HTTPServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	resp := ReadyResponse{
		Status:    "ready",
		Timestamp: time.Now(),
		Checks:    make(map[string]string, len(hs.checks)),
	}

	for _, c := range hs.checks {
		if err := c.check(); err != nil {
			resp.Checks[c.name] = err.Error()
			if resp.Message == "" {
				resp.Message = c.name + ": " + err.Error()
			}
			continue
		}
		resp.Checks[c.name] = "ok"
	}

	code := http.StatusOK
	if resp.Message != "" {
		resp.Status = "not ready"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (hs *HTTPServer) checkStore() error {
	if hs.manager == nil {
		return errNoManager
	}
	if err := hs.manager.CheckStore(); err != nil {
		return errStoreFailure
	}
	return nil
}

func (hs *HTTPServer) checkReconciler() error {
	if hs.manager == nil {
		return errNoManager
	}
	if !hs.manager.Ready() {
		return errWaitingTick
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
