package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/valluvarai/valluvarai/internal/history"
	"github.com/valluvarai/valluvarai/internal/kural"
	"github.com/valluvarai/valluvarai/internal/pipeline"
)

// Generator is the pipeline surface the HTTP handlers depend on.
type Generator interface {
	Generate(ctx context.Context, req pipeline.GenerationRequest) (pipeline.Outcome, error)
	Search(keyword string) (kural.Verse, bool)
}

// GenerationLog is the optional history surface. A nil log disables the
// history endpoint.
type GenerationLog interface {
	Append(ctx context.Context, keyword string, outcome pipeline.Outcome) error
	Recent(ctx context.Context, limit int) ([]history.Record, error)
}

// Handler routes the public API over the pipeline.
type Handler struct {
	generator Generator
	log       GenerationLog
	logger    *slog.Logger
	metrics   http.Handler
}

// NewHandler builds the HTTP routing for the service. metricsHandler and log
// may be nil.
func NewHandler(generator Generator, log GenerationLog, logger *slog.Logger, metricsHandler http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		generator: generator,
		log:       log,
		logger:    logger.With(slog.String("component", "api")),
		metrics:   metricsHandler,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /generate", h.handleGenerate)
	mux.HandleFunc("GET /search", h.handleSearch)
	mux.HandleFunc("GET /history", h.handleHistory)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}
	return mux
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req pipeline.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome, err := h.generator.Generate(r.Context(), req)
	switch {
	case errors.Is(err, pipeline.ErrEmptyRequest):
		writeError(w, http.StatusBadRequest, "keyword or verse_id required")
		return
	case errors.Is(err, pipeline.ErrVerseNotFound):
		writeError(w, http.StatusNotFound, "no verse matches the request")
		return
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
		return
	case err != nil:
		h.logger.Error("generation failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "generation failed")
		return
	}

	if h.log != nil {
		if err := h.log.Append(r.Context(), req.Keyword, outcome); err != nil {
			h.logger.Warn("history append failed", slog.Any("error", err))
		}
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	keyword := strings.TrimSpace(r.URL.Query().Get("keyword"))
	if keyword == "" {
		writeError(w, http.StatusBadRequest, "keyword query parameter required")
		return
	}
	verse, ok := h.generator.Search(keyword)
	if !ok {
		writeError(w, http.StatusNotFound, "no verse matches the keyword")
		return
	}
	writeJSON(w, http.StatusOK, verse)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.log == nil {
		writeError(w, http.StatusServiceUnavailable, "history is disabled")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	records, err := h.log.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("history query failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
