package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
	"github.com/Nostem/Auto-Trading-Bot/internal/settings"
)

// RecommendationHandler serves the human approval gate for parameter
// recommendations. Approval is the only path by which a proposed value
// reaches the live settings table.
type RecommendationHandler struct {
	recs   domain.RecommendationStore
	logger *slog.Logger
}

func NewRecommendationHandler(recs domain.RecommendationStore, logger *slog.Logger) *RecommendationHandler {
	return &RecommendationHandler{recs: recs, logger: logger}
}

// ListRecommendations returns recommendations, optionally filtered by
// status.
// GET /api/recommendations?status=pending&limit=&offset=
func (h *RecommendationHandler) ListRecommendations(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	recs, total, err := h.recs.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list recommendations failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list recommendations")
		return
	}
	if recs == nil {
		recs = []domain.Recommendation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"recommendations": recs,
		"total":           total,
		"limit":           opts.Limit,
		"offset":          opts.Offset,
	})
}

// ApproveRecommendation applies a pending recommendation. The proposed
// value is re-validated against the guardrails before the store applies it
// to the settings table in the same transaction that flips the status.
// POST /api/recommendations/{id}/approve
func (h *RecommendationHandler) ApproveRecommendation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	rec, err := h.recs.GetByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "recommendation not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "handler: get recommendation failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get recommendation")
		return
	}
	if rec.Status != domain.RecommendationPending {
		writeError(w, http.StatusConflict, "recommendation is not pending")
		return
	}
	if err := settings.ValidateProposed(rec.SettingKey, rec.ProposedValue); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	applied, err := h.recs.Approve(ctx, id)
	if err != nil {
		h.logger.ErrorContext(ctx, "handler: approve recommendation failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to approve recommendation")
		return
	}
	h.logger.InfoContext(ctx, "recommendation approved",
		"id", id, "key", applied.SettingKey, "value", applied.ProposedValue)
	writeJSON(w, http.StatusOK, applied)
}

// DenyRecommendation rejects a pending recommendation. A non-empty reason
// is required; it is stored for the audit trail.
// POST /api/recommendations/{id}/deny
func (h *RecommendationHandler) DenyRecommendation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	var body struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	body.Reason = strings.TrimSpace(body.Reason)
	if body.Reason == "" {
		writeError(w, http.StatusBadRequest, "denial reason is required")
		return
	}

	err := h.recs.Deny(ctx, id, body.Reason)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "recommendation not found or not pending")
		return
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "handler: deny recommendation failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to deny recommendation")
		return
	}
	h.logger.InfoContext(ctx, "recommendation denied", "id", id, "reason", body.Reason)
	writeJSON(w, http.StatusOK, map[string]string{"status": "denied"})
}
