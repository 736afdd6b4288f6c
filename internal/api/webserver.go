// Package api serves run history, summaries and charts over HTTP.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/banshee-data/vegetation.report/internal/batch"
	"github.com/banshee-data/vegetation.report/internal/chart"
	"github.com/banshee-data/vegetation.report/internal/metrics"
	"github.com/banshee-data/vegetation.report/internal/ndvi"
	"github.com/banshee-data/vegetation.report/internal/store"
	"github.com/banshee-data/vegetation.report/internal/summary"
)

// WebServer handles the HTTP interface over the run store.
type WebServer struct {
	address string
	store   *store.Store
	metrics *metrics.Collector
	server  *http.Server
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address string
	Store   *store.Store
	Metrics *metrics.Collector
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) *WebServer {
	ws := &WebServer{
		address: config.Address,
		store:   config.Store,
		metrics: config.Metrics,
	}

	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}

	return ws
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Start begins the HTTP server and blocks until ctx is cancelled, then
// shuts the server down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	go func() {
		log.Printf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	log.Printf("HTTP server routine stopped")
	return nil
}

// Handler exposes the route mux, mainly for tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.server.Handler
}

func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", ws.handleHealth)
	mux.HandleFunc("GET /api/runs", ws.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}/results", ws.handleRunResults)
	mux.HandleFunc("GET /api/runs/{id}/summary", ws.handleRunSummary)
	mux.HandleFunc("GET /charts/timeseries", ws.handleTimeseriesChart)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ws.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (ws *WebServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := ws.store.ListRuns()
	if err != nil {
		ws.metrics.RecordAPIRequest("/api/runs", "500")
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	ws.metrics.RecordAPIRequest("/api/runs", "200")
	ws.writeJSON(w, http.StatusOK, runs)
}

// unitResultResponse is the JSON shape of one stored unit result.
type unitResultResponse struct {
	PointNo   string            `json:"point_no"`
	Lat       float64           `json:"lat"`
	Lon       float64           `json:"lon"`
	File      string            `json:"file"`
	Date      string            `json:"date"`
	State     string            `json:"state"`
	Stats     *ndvi.StatsRecord `json:"stats,omitempty"`
	Error     string            `json:"error,omitempty"`
	ElapsedMs int64             `json:"elapsed_ms"`
}

func (ws *WebServer) handleRunResults(w http.ResponseWriter, r *http.Request) {
	results, ok := ws.loadRunResults(w, r, "/api/runs/{id}/results")
	if !ok {
		return
	}

	out := make([]unitResultResponse, 0, len(results))
	for _, res := range results {
		out = append(out, unitResultResponse{
			PointNo:   res.PointID,
			Lat:       res.Lat,
			Lon:       res.Lon,
			File:      res.File,
			Date:      res.Date,
			State:     res.State.String(),
			Stats:     res.Stats,
			Error:     res.Err,
			ElapsedMs: res.Elapsed.Milliseconds(),
		})
	}
	ws.metrics.RecordAPIRequest("/api/runs/{id}/results", "200")
	ws.writeJSON(w, http.StatusOK, out)
}

func (ws *WebServer) handleRunSummary(w http.ResponseWriter, r *http.Request) {
	results, ok := ws.loadRunResults(w, r, "/api/runs/{id}/summary")
	if !ok {
		return
	}

	wide, long, err := summary.Aggregate(results)
	if errors.Is(err, summary.ErrNoSummary) {
		ws.metrics.RecordAPIRequest("/api/runs/{id}/summary", "404")
		ws.writeJSONError(w, http.StatusNotFound, "run has no successful units")
		return
	}
	if err != nil {
		ws.metrics.RecordAPIRequest("/api/runs/{id}/summary", "500")
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("aggregate: %v", err))
		return
	}

	ws.metrics.RecordAPIRequest("/api/runs/{id}/summary", "200")
	ws.writeJSON(w, http.StatusOK, map[string]any{
		"wide": wide,
		"long": long,
	})
}

// loadRunResults resolves the {id} path value to its stored results,
// writing the error response itself when the run cannot be served.
func (ws *WebServer) loadRunResults(w http.ResponseWriter, r *http.Request, endpoint string) ([]batch.UnitResult, bool) {
	id := r.PathValue("id")
	if id == "" {
		ws.metrics.RecordAPIRequest(endpoint, "400")
		ws.writeJSONError(w, http.StatusBadRequest, "missing run id")
		return nil, false
	}

	if _, err := ws.store.GetRun(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			ws.metrics.RecordAPIRequest(endpoint, "404")
			ws.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("no run '%s'", id))
			return nil, false
		}
		ws.metrics.RecordAPIRequest(endpoint, "500")
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get run: %v", err))
		return nil, false
	}

	results, err := ws.store.ResultsForRun(id)
	if err != nil {
		ws.metrics.RecordAPIRequest(endpoint, "500")
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("load results: %v", err))
		return nil, false
	}
	return results, true
}

// handleTimeseriesChart renders a run's per-point time series.
// Query params:
//
//	run_id (required)
//	format (optional: "html" default, or "png")
//	limit  (optional: cap on rendered points)
func (ws *WebServer) handleTimeseriesChart(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		ws.metrics.RecordAPIRequest("/charts/timeseries", "400")
		ws.writeJSONError(w, http.StatusBadRequest, "missing 'run_id' parameter")
		return
	}

	if _, err := ws.store.GetRun(runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			ws.metrics.RecordAPIRequest("/charts/timeseries", "404")
			ws.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("no run '%s'", runID))
			return
		}
		ws.metrics.RecordAPIRequest("/charts/timeseries", "500")
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get run: %v", err))
		return
	}

	results, err := ws.store.ResultsForRun(runID)
	if err != nil {
		ws.metrics.RecordAPIRequest("/charts/timeseries", "500")
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("load results: %v", err))
		return
	}

	wide, _, err := summary.Aggregate(results)
	if errors.Is(err, summary.ErrNoSummary) {
		ws.metrics.RecordAPIRequest("/charts/timeseries", "404")
		ws.writeJSONError(w, http.StatusNotFound, "run has no successful units")
		return
	}
	if err != nil {
		ws.metrics.RecordAPIRequest("/charts/timeseries", "500")
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("aggregate: %v", err))
		return
	}

	series := chart.SeriesFromTable(wide)
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit < len(series) {
			series = series[:limit]
		}
	}

	title := "NDVI Time Series"
	switch r.URL.Query().Get("format") {
	case "", "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := chart.RenderHTML(w, title, series); err != nil {
			log.Printf("api: render html chart: %v", err)
		}
	case "png":
		w.Header().Set("Content-Type", "image/png")
		if err := chart.RenderPNG(w, title, series); err != nil {
			log.Printf("api: render png chart: %v", err)
		}
	default:
		ws.metrics.RecordAPIRequest("/charts/timeseries", "400")
		ws.writeJSONError(w, http.StatusBadRequest, "format must be 'html' or 'png'")
		return
	}
	ws.metrics.RecordAPIRequest("/charts/timeseries", "200")
}
