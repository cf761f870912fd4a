package handler

import (
	"log/slog"
	"net/http"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
)

// PositionHandler serves the open-position endpoints.
type PositionHandler struct {
	positions domain.PositionStore
	logger    *slog.Logger
}

func NewPositionHandler(positions domain.PositionStore, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{positions: positions, logger: logger}
}

// ListPositions returns all open positions with their latest marks.
// GET /api/positions
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.positions.ListOpen(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list positions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}
	if positions == nil {
		positions = []domain.Position{}
	}

	exposure := 0.0
	unrealized := 0.0
	for _, p := range positions {
		exposure += p.EntryValue()
		unrealized += p.UnrealizedPnL
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"positions":      positions,
		"open_exposure":  exposure,
		"unrealized_pnl": unrealized,
	})
}
