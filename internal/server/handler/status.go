package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
	"github.com/Nostem/Auto-Trading-Bot/internal/settings"
)

// StatusHandler serves the dashboard's headline view of the bot: run mode,
// bankroll, breaker state, and open exposure.
type StatusHandler struct {
	mode      string
	startedAt time.Time
	settings  *settings.Service
	positions domain.PositionStore
	logger    *slog.Logger
}

// NewStatusHandler builds a StatusHandler.
func NewStatusHandler(mode string, startedAt time.Time, svc *settings.Service, positions domain.PositionStore, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		mode:      mode,
		startedAt: startedAt,
		settings:  svc,
		positions: positions,
		logger:    logger,
	}
}

// GetStatus reports the current control-plane state.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	snap, err := h.settings.Load(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "status: settings load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	open, err := h.positions.ListOpen(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "status: list positions failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}
	exposure := 0.0
	for _, p := range open {
		exposure += p.EntryValue()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mode":               h.mode,
		"uptime_seconds":     int64(time.Since(h.startedAt).Seconds()),
		"bot_enabled":        snap.BotEnabled(),
		"bankroll":           snap.Bankroll(),
		"breaker_tripped_on": snap.BreakerTrippedOn(),
		"open_positions":     len(open),
		"open_exposure":      exposure,
		"sizing_mode":        snap.SizingMode(),
	})
}
