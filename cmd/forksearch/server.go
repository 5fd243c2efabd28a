package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pdrpinto/forksearch"
	"github.com/pdrpinto/forksearch/grid"
	"github.com/pdrpinto/forksearch/internal/store"
)

const (
	maxMazeBytes = 1 << 20
	// maxMazeCells bounds rows*cols. The branch kept by each task recurses
	// once per cell, so a long corridor costs one stack frame per cell.
	maxMazeCells = 1 << 18
)

type solveResponse struct {
	RunID     string   `json:"run_id"`
	Outcome   string   `json:"outcome"`
	Found     bool     `json:"found"`
	Rows      int      `json:"rows"`
	Cols      int      `json:"cols"`
	Start     [2]int   `json:"start"`
	Goal      *[2]int  `json:"goal,omitempty"`
	Path      [][2]int `json:"path,omitempty"`
	Visited   int      `json:"visited"`
	Claimed   int      `json:"claimed"`
	Tasks     int      `json:"tasks"`
	ElapsedMs float64  `json:"elapsed_ms"`
	Digest    string   `json:"digest"`
}

type server struct {
	logger   *slog.Logger
	metrics  *forksearch.Metrics
	registry *prometheus.Registry
	store    store.Store
}

func newServer(logger *slog.Logger, st store.Store) *server {
	registry := prometheus.NewRegistry()
	return &server{
		logger:   logger,
		metrics:  forksearch.NewMetrics(registry),
		registry: registry,
		store:    st,
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /solve", s.handleSolve)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

func toPair(p grid.Point) [2]int { return [2]int{p.Row, p.Col} }

func (s *server) handleSolve(w http.ResponseWriter, r *http.Request) {
	g, err := grid.Parse(io.LimitReader(r.Body, maxMazeBytes))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if cells := g.Rows() * g.Cols(); cells > maxMazeCells {
		http.Error(w, fmt.Sprintf("maze has %d cells, limit is %d", cells, maxMazeCells), http.StatusBadRequest)
		return
	}

	opts := searchOptions(s.logger, s.metrics)
	if v := r.URL.Query().Get("max_tasks"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "max_tasks must be a non-negative integer", http.StatusBadRequest)
			return
		}
		opts = append(opts, forksearch.WithMaxTasks(n))
	}

	result, err := forksearch.Search(r.Context(), g, g.Start(), opts...)
	switch {
	case errors.Is(err, context.Canceled):
		// client went away
		return
	case err != nil && !errors.Is(err, context.DeadlineExceeded):
		s.logger.Error("search failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if s.store != nil {
		if err := s.store.SaveRun(toRun("http", g, result)); err != nil {
			s.logger.Warn("record run failed", "run_id", result.RunID, "error", err)
		}
	}

	resp := solveResponse{
		RunID:     result.RunID,
		Outcome:   string(result.Outcome),
		Found:     result.Found,
		Rows:      g.Rows(),
		Cols:      g.Cols(),
		Start:     toPair(g.Start()),
		Visited:   result.VisitedNodes,
		Claimed:   result.ClaimedNodes,
		Tasks:     result.TasksCreated,
		ElapsedMs: float64(result.Elapsed.Microseconds()) / 1000,
		Digest:    g.Digest(),
	}
	if result.Found {
		goal := toPair(result.Goal)
		resp.Goal = &goal
		resp.Path = make([][2]int, 0, len(result.Path))
		for _, p := range result.Path {
			resp.Path = append(resp.Path, toPair(p))
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
