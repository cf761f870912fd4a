package handler

import (
	"log/slog"
	"net/http"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
)

// ReflectionHandler serves trade post-mortems and weekly reports.
type ReflectionHandler struct {
	reflections domain.ReflectionStore
	logger      *slog.Logger
}

func NewReflectionHandler(reflections domain.ReflectionStore, logger *slog.Logger) *ReflectionHandler {
	return &ReflectionHandler{reflections: reflections, logger: logger}
}

// ListReflections returns a paginated slice of trade reflections, newest
// first.
// GET /api/reflections?limit=&offset=
func (h *ReflectionHandler) ListReflections(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	reflections, total, err := h.reflections.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list reflections failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list reflections")
		return
	}
	if reflections == nil {
		reflections = []domain.Reflection{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reflections": reflections,
		"total":       total,
		"limit":       opts.Limit,
		"offset":      opts.Offset,
	})
}

// ListWeeklyReports returns all weekly roll-ups, newest first.
// GET /api/reports/weekly
func (h *ReflectionHandler) ListWeeklyReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reflections.ListWeekly(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list weekly reports failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list weekly reports")
		return
	}
	if reports == nil {
		reports = []domain.WeeklyReport{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}
