// Package api serves the twin's REST control surface, the WebSocket feed
// and the metrics endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"microgrid_twin/internal/log"
	"microgrid_twin/internal/metrics"
	"microgrid_twin/internal/simulator"
	"microgrid_twin/internal/store"
)

// Server wires HTTP routes to the engine and its history.
type Server struct {
	engine  *simulator.Engine
	store   *store.Store
	metrics *metrics.Metrics
	ws      http.Handler

	httpServer *http.Server
}

// New creates a server. metrics and ws may be nil.
func New(engine *simulator.Engine, st *store.Store, m *metrics.Metrics, ws http.Handler) *Server {
	return &Server{engine: engine, store: st, metrics: m, ws: ws}
}

// Handler builds the full route tree.
func (s *Server) Handler() http.Handler {
	api := mux.NewRouter()
	route := func(path string, h http.HandlerFunc) *mux.Route {
		return api.Handle(path, s.metrics.WrapHandler(path, h))
	}

	route("/api/data", s.handleData).Methods(http.MethodGet)
	route("/api/overview", s.handleOverview).Methods(http.MethodGet)
	route("/api/settings", s.handleSettings).Methods(http.MethodGet)
	route("/api/runs", s.handleRuns).Methods(http.MethodGet)
	route("/api/runs/{id}/samples", s.handleRunSamples).Methods(http.MethodGet)
	route("/api/history", s.handleHistory).Methods(http.MethodGet)

	route("/api/start", s.handleStart).Methods(http.MethodPost)
	route("/api/stop", s.handleStop).Methods(http.MethodPost)
	route("/api/panel/{id:[0-9]+}", s.handlePanel).Methods(http.MethodPost)
	route("/api/cell/{id:[0-9]+}", s.handleCell).Methods(http.MethodPost)
	route("/api/load/{load}", s.handleLoad).Methods(http.MethodPost)
	route("/api/auto", s.handleAuto).Methods(http.MethodPost)
	route("/api/calibration", s.handleCalibration).Methods(http.MethodPost)

	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, "not found", http.StatusNotFound)
	})
	api.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
	})

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	if s.ws != nil {
		// not gzipped: the upgrade needs the raw connection
		r.Handle("/ws", s.ws)
	}
	r.PathPrefix("/api/").Handler(gziphandler.GzipHandler(api))

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	logged := handlers.CustomLoggingHandler(io.Discard, r, logRequest)
	return handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(cors(logged))
}

func logRequest(_ io.Writer, p handlers.LogFormatterParams) {
	ctx := p.Request.Context()
	log.Ctx(ctx).DebugContext(ctx, "http request",
		slog.String("method", p.Request.Method),
		slog.String("path", p.URL.Path),
		slog.Int("status", p.StatusCode),
		slog.Int("size", p.Size),
		slog.Duration("elapsed", time.Since(p.TimeStamp)),
	)
}

// Run starts the HTTP server and blocks until the context is canceled or an error occurs.
// It also handles graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		log.Ctx(ctx).InfoContext(ctx, "starting server", slog.String("addr", addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Ctx(ctx).InfoContext(ctx, "shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg}); err != nil {
		slog.Warn("failed to write error response", slog.Any("error", err))
		panic(http.ErrAbortHandler)
	}
}
