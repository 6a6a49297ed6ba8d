// Copyright 2025 Autopatch Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

// Package web exposes run state over a small JSON API: SLO queries, the
// latest chart scan report, and manual run triggers.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/autopatch-io/autopatch/pkg/orchestrator"
	"github.com/autopatch-io/autopatch/pkg/slo"
)

// Server wires the API routes. Trigger endpoints run synchronously; the
// orchestrator is stateless, so concurrent triggers are safe but wasteful,
// and a mutex keeps them serialized instead.
type Server struct {
	log      *zap.Logger
	orch     *orchestrator.Orchestrator
	tracker  *slo.Tracker
	releases orchestrator.ReleaseSource
	resolver orchestrator.ReleaseResolver

	mu         sync.Mutex
	lastPlan   *orchestrator.PlanOutcome
	lastPlanAt time.Time
}

// Options carries the Server's collaborators. Tracker and Releases may be
// nil; their endpoints then report 404.
type Options struct {
	Log      *zap.Logger
	Orch     *orchestrator.Orchestrator
	Tracker  *slo.Tracker
	Releases orchestrator.ReleaseSource
	Resolver orchestrator.ReleaseResolver
}

// NewServer builds a Server from its collaborators.
func NewServer(opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		log:      log,
		orch:     opts.Orch,
		tracker:  opts.Tracker,
		releases: opts.Releases,
		resolver: opts.Resolver,
	}
}

// Router returns the API routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/slo", s.handleSLOSummary).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/slo/history", s.handleSLOHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/report", s.handleReport).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/runs/plan", s.handlePlanRun).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/runs/fix", s.handleFixRun).Methods(http.MethodPost)
	return r
}

// Serve runs the API server until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router()}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("api server listening", zap.String("addr", addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errc:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSLOSummary(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		http.NotFound(w, r)
		return
	}
	sum, err := s.tracker.Summarize()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleSLOHistory(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		http.NotFound(w, r)
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	hist, err := s.tracker.History(limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": hist})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	last, at := s.lastPlan, s.lastPlanAt
	s.mu.Unlock()
	if last == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no planning run has completed yet"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"planned_at": at,
		"report":     last.Report,
		"batches":    last.Batches,
		"skipped":    last.Skipped,
	})
}

func (s *Server) handlePlanRun(w http.ResponseWriter, r *http.Request) {
	if s.releases == nil {
		http.NotFound(w, r)
		return
	}
	apply := r.URL.Query().Get("apply") == "true"

	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.orch.PlanRun(r.Context(), s.releases, s.resolver, apply)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.lastPlan = out
	s.lastPlanAt = time.Now().UTC()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleFixRun(w http.ResponseWriter, r *http.Request) {
	dryRun := r.URL.Query().Get("dry_run") == "true"
	severities := r.URL.Query()["severity"]

	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.orch.FixRun(r.Context(), severities, dryRun)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.log.Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
