// Package server exposes optimization runs over HTTP: runs are started with a
// POST, observed through JSON status and an SSE progress stream, and their
// snapshots are served from the output directory.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cwbudde/gridopt/internal/config"
	"github.com/cwbudde/gridopt/internal/placement"
	"github.com/cwbudde/gridopt/internal/render"
	"github.com/cwbudde/gridopt/internal/search"
	"github.com/cwbudde/gridopt/internal/store"
)

// Config holds the server settings
type Config struct {
	Addr        string
	OutputDir   string // Each run writes to OutputDir/<run id>
	ProfilePath string // Station profiles for requests naming a profile
	ModelPath   string // Method settings for requests without params
	NoSnapshots bool   // Skip image rendering
}

// Server represents the HTTP server
type Server struct {
	cfg     Config
	field   *placement.CostField
	runs    *RunManager
	metrics *Metrics

	baseCtx context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
	server  *http.Server
}

// NewServer creates a server over a shared zone table. Every run works on
// its own fork of field.
func NewServer(cfg Config, field *placement.CostField) *Server {
	ctx, stop := context.WithCancel(context.Background())
	return &Server{
		cfg:     cfg,
		field:   field,
		runs:    NewRunManager(),
		metrics: NewMetrics(),
		baseCtx: ctx,
		stop:    stop,
	}
}

// Handler returns the routed and wrapped HTTP handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/runs", s.handleRuns)
	mux.HandleFunc("/api/v1/runs/", s.handleRunsWithID)
	mux.HandleFunc("/outputs/", s.handleOutput)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, "ok\n")
	})

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting HTTP server", "addr", s.cfg.Addr, "outputs", s.cfg.OutputDir)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, cancels active runs and waits for
// their workers to return.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")

	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	s.stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

// handleRuns handles /api/v1/runs
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateRun(w, r)
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.runs.ListRuns())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRunsWithID handles /api/v1/runs/:id/*
func (s *Server) handleRunsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Run ID required", http.StatusBadRequest)
		return
	}

	runID := parts[0]
	sub := ""
	if len(parts) > 1 {
		sub = parts[1]
	}

	switch {
	case sub == "" && r.Method == http.MethodGet:
		s.handleGetRun(w, runID)
	case sub == "" && r.Method == http.MethodDelete:
		s.handleCancelRun(w, runID)
	case sub == "events" && r.Method == http.MethodGet:
		s.handleRunStream(w, r, runID)
	case sub == "snapshots" && r.Method == http.MethodGet:
		s.handleListSnapshots(w, runID)
	case sub == "" || sub == "events" || sub == "snapshots":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateRun handles POST /api/v1/runs. The driver is built before the
// run is registered so configuration problems are reported synchronously.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	method, cfg, params, err := s.resolve(req)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	run := s.runs.CreateRun(req)
	field := s.field.Fork()

	opts := search.Options{
		Field:         field,
		Configuration: cfg,
		Optimizable:   req.Optimizable,
		Params:        params,
	}
	if !s.cfg.NoSnapshots {
		outputs, err := store.NewFSStore(filepath.Join(s.cfg.OutputDir, run.ID))
		if err != nil {
			s.failEarly(w, run.ID, err)
			return
		}
		opts.Renderer = render.NewPlotRenderer(outputs)
		opts.Cleaner = outputs
	}

	driver, err := search.New(method, opts)
	if err != nil {
		s.failEarly(w, run.ID, err)
		return
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	s.runs.setCancel(run.ID, cancel)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		defer s.runs.clearCancel(run.ID)

		executeRun(ctx, s.runs, s.metrics, task{
			runID:   run.ID,
			driver:  driver,
			field:   field,
			initial: cfg,
			urlBase: "/outputs/" + run.ID + "/",
		})
	}()

	writeJSON(w, http.StatusCreated, run)
}

// resolve turns a request into the driver inputs, reading the profile and
// model documents when the request does not carry them inline.
func (s *Server) resolve(req RunRequest) (search.Method, placement.Configuration, search.Hyperparameters, error) {
	method, err := search.ParseMethod(req.Method)
	if err != nil {
		return "", nil, search.Hyperparameters{}, err
	}

	cfg := req.Stations
	if len(cfg) == 0 {
		if req.Profile == "" || s.cfg.ProfilePath == "" {
			return "", nil, search.Hyperparameters{}, &placement.ConfigError{Field: "profile", Reason: "request needs stations or a profile"}
		}
		cfg, err = config.LoadProfile(s.cfg.ProfilePath, req.Profile)
		if err != nil {
			return "", nil, search.Hyperparameters{}, err
		}
	}

	var params search.Hyperparameters
	if req.Params != nil {
		params = *req.Params
	} else {
		if s.cfg.ModelPath == "" {
			return "", nil, search.Hyperparameters{}, &placement.ConfigError{Field: "params", Reason: "request needs params or a model document"}
		}
		params, err = config.LoadHyperparameters(s.cfg.ModelPath, method)
		if err != nil {
			return "", nil, search.Hyperparameters{}, err
		}
	}
	if req.MaxIter > 0 {
		params.MaxIter = req.MaxIter
	}

	return method, cfg, params, nil
}

// failEarly records a run that could not be constructed
func (s *Server) failEarly(w http.ResponseWriter, runID string, err error) {
	markRunFailed(s.runs, s.metrics, runID, err)
	s.runs.broadcaster.Close(runID)
	http.Error(w, err.Error(), statusFor(err))
}

// handleGetRun handles GET /api/v1/runs/:id
func (s *Server) handleGetRun(w http.ResponseWriter, runID string) {
	run, exists := s.runs.GetRun(runID)
	if !exists {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	var elapsed time.Duration
	if run.EndTime != nil {
		elapsed = run.EndTime.Sub(run.StartTime)
	} else {
		elapsed = time.Since(run.StartTime)
	}

	writeJSON(w, http.StatusOK, struct {
		Run
		Elapsed float64 `json:"elapsed"`
	}{run, elapsed.Seconds()})
}

// handleCancelRun handles DELETE /api/v1/runs/:id
func (s *Server) handleCancelRun(w http.ResponseWriter, runID string) {
	if _, exists := s.runs.GetRun(runID); !exists {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if !s.runs.CancelRun(runID) {
		http.Error(w, "Run is not active", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleListSnapshots handles GET /api/v1/runs/:id/snapshots
func (s *Server) handleListSnapshots(w http.ResponseWriter, runID string) {
	if _, exists := s.runs.GetRun(runID); !exists {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if s.cfg.NoSnapshots {
		writeJSON(w, http.StatusOK, []store.SnapshotInfo{})
		return
	}

	outputs, err := store.NewFSStore(filepath.Join(s.cfg.OutputDir, runID))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	infos, err := outputs.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleOutput handles GET /outputs/:id/:name
func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/outputs/"), "/")
	if len(parts) != 2 {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	runID, name := parts[0], parts[1]
	if _, exists := s.runs.GetRun(runID); !exists {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	if s.cfg.NoSnapshots {
		http.Error(w, "Snapshot not found", http.StatusNotFound)
		return
	}

	outputs, err := store.NewFSStore(filepath.Join(s.cfg.OutputDir, runID))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	f, err := outputs.Open(name)
	var ve *store.ValidationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Snapshot not found", http.StatusNotFound)
		return
	case errors.As(err, &ve):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := io.Copy(w, f); err != nil {
		slog.Error("Failed to send snapshot", "run_id", runID, "name", name, "error", err)
	}
}

// eventFor describes the current state of a run as a progress event
func (s *Server) eventFor(run Run) ProgressEvent {
	return ProgressEvent{
		RunID:     run.ID,
		State:     run.State,
		Iteration: run.Iteration,
		Score:     run.Score,
		Snapshot:  run.Snapshot,
		Error:     run.Error,
		Timestamp: time.Now(),
	}
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, placement.ErrConfig),
		errors.Is(err, placement.ErrDataShape),
		errors.Is(err, placement.ErrDegenerateWeight):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
