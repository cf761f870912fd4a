package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
)

// TradeHandler serves the read-only trade ledger endpoints.
type TradeHandler struct {
	trades domain.TradeStore
	logger *slog.Logger
}

func NewTradeHandler(trades domain.TradeStore, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{trades: trades, logger: logger}
}

// ListTrades returns a paginated slice of the ledger, optionally filtered
// by status.
// GET /api/trades?limit=&offset=&status=
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	trades, total, err := h.trades.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list trades failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}
	if trades == nil {
		trades = []domain.TradeRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"trades": trades,
		"total":  total,
		"limit":  opts.Limit,
		"offset": opts.Offset,
	})
}

// GetTrade returns one ledger entry by ID.
// GET /api/trades/{id}
func (h *TradeHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	trade, err := h.trades.GetByID(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "trade not found")
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get trade failed", "trade_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get trade")
		return
	}
	writeJSON(w, http.StatusOK, trade)
}
