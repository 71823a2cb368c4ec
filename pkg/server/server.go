package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marketlens/pulse/internal/store"
	"github.com/marketlens/pulse/pkg/consensus"
	"github.com/marketlens/pulse/pkg/model"
	"github.com/marketlens/pulse/pkg/pipeline"
)

// Evaluator runs one full evaluation pass. Implemented by the scheduler.
type Evaluator interface {
	Evaluate(ctx context.Context) (*pipeline.Batch, error)
}

// Server provides the HTTP API.
type Server struct {
	store     store.Store
	evaluator Evaluator
	gatherer  prometheus.Gatherer
	port      int
}

// New creates a new HTTP server.
func New(s store.Store, evaluator Evaluator, gatherer prometheus.Gatherer, port int) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{
		store:     s,
		evaluator: evaluator,
		gatherer:  gatherer,
		port:      port,
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/consensus", s.handleConsensus)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/topics", s.handleTopics)
	mux.HandleFunc("/api/v1/investigations", s.handleInvestigations)
	mux.HandleFunc("/api/v1/predictions", s.handlePredictions)
	mux.HandleFunc("/api/v1/evaluate", s.handleEvaluate)
	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	addr := fmt.Sprintf(":%d", s.port)
	fmt.Printf("pulse server listening on %s\n", addr)
	return http.ListenAndServe(addr, mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleConsensus recomputes the consensus views on demand from the
// current active-signal set. The report is ephemeral and never persisted.
func (s *Server) handleConsensus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	signals, err := s.store.ListPredictions(r.Context(), store.PredictionListOpts{
		Status: model.PredictionActive,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	writeJSON(w, http.StatusOK, map[string]any{
		"overall":      consensus.Compute(signals, now),
		"by_indicator": consensus.GroupByIndicator(signals, now),
		"signals":      len(signals),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	opts := store.EventListOpts{Limit: 100}
	if section := r.URL.Query().Get("section"); section != "" {
		parsed, err := model.ParseDisplaySection(section)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		opts.Section = parsed
	}
	if since := r.URL.Query().Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			opts.Since = t
		}
	}

	events, err := s.store.ListEvents(r.Context(), opts)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  events,
		"count": len(events),
	})
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	topics, err := s.store.ListTopics(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  topics,
		"count": len(topics),
	})
}

func (s *Server) handleInvestigations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var status model.InvestigationStatus
	if q := r.URL.Query().Get("status"); q != "" {
		parsed, err := model.ParseInvestigationStatus(q)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		status = parsed
	}

	invs, err := s.store.ListInvestigations(r.Context(), status)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  invs,
		"count": len(invs),
	})
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	opts := store.PredictionListOpts{Limit: 200}
	if q := r.URL.Query().Get("status"); q != "" {
		parsed, err := model.ParsePredictionStatus(q)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		opts.Status = parsed
	}
	if q := r.URL.Query().Get("indicator"); q != "" {
		opts.Indicator = q
	}

	preds, err := s.store.ListPredictions(r.Context(), opts)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  preds,
		"count": len(preds),
	})
}

// handleEvaluate triggers a full evaluation pass and returns the batch
// result, including per-entity errors.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	batch, err := s.evaluator.Evaluate(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	var skipped []string
	for _, e := range batch.Errors {
		skipped = append(skipped, e.Error())
	}

	resp := map[string]any{
		"events":         len(batch.Events),
		"topics":         len(batch.Topics),
		"investigations": len(batch.Investigations),
		"predictions":    len(batch.Predictions),
		"consensus":      batch.Consensus,
	}
	if len(skipped) > 0 {
		resp["skipped"] = skipped
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
