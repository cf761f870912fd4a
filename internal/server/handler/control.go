package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
	"github.com/Nostem/Auto-Trading-Bot/internal/settings"
)

// controlKeys are the non-tunable settings the API may write directly.
// Everything else must be a guardrailed tunable.
var controlKeys = map[string]func(string) bool{
	"bot_enabled": func(v string) bool {
		_, err := strconv.ParseBool(v)
		return err == nil
	},
	"sizing_mode": func(v string) bool {
		return v == "kelly" || v == "fixed"
	},
	"fixed_notional": func(v string) bool {
		f, err := strconv.ParseFloat(v, 64)
		return err == nil && f > 0
	},
	"kelly_fraction": func(v string) bool {
		f, err := strconv.ParseFloat(v, 64)
		return err == nil && f > 0 && f <= 1
	},
	"bond_enabled":          isBool,
	"market_making_enabled": isBool,
	"btc_enabled":           isBool,
	"news_enabled":          isBool,
}

func isBool(v string) bool {
	_, err := strconv.ParseBool(v)
	return err == nil
}

// ControlHandler serves the operator controls: pause/resume, breaker
// reset, and direct settings edits.
type ControlHandler struct {
	store  domain.SettingStore
	logger *slog.Logger
}

func NewControlHandler(store domain.SettingStore, logger *slog.Logger) *ControlHandler {
	return &ControlHandler{store: store, logger: logger}
}

// Pause stops new entries. Open positions continue to be monitored and
// exited.
// POST /api/controls/pause
func (h *ControlHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, false)
}

// Resume re-enables new entries. It does not clear a latched daily loss
// breaker; that requires ResetBreaker.
// POST /api/controls/resume
func (h *ControlHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.setEnabled(w, r, true)
}

func (h *ControlHandler) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	ctx := r.Context()
	if err := h.store.Put(ctx, "bot_enabled", strconv.FormatBool(enabled)); err != nil {
		h.logger.ErrorContext(ctx, "handler: toggle bot_enabled failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update setting")
		return
	}
	h.logger.InfoContext(ctx, "bot toggled", "enabled", enabled)
	writeJSON(w, http.StatusOK, map[string]any{"bot_enabled": enabled})
}

// ResetBreaker clears a latched daily loss breaker so trading can resume
// before the next UTC day.
// POST /api/controls/reset-breaker
func (h *ControlHandler) ResetBreaker(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.store.Delete(ctx, "breaker_tripped_on"); err != nil {
		h.logger.ErrorContext(ctx, "handler: reset breaker failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reset breaker")
		return
	}
	h.logger.WarnContext(ctx, "daily loss breaker manually reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "breaker reset"})
}

// GetSettings dumps the full settings table.
// GET /api/settings
func (h *ControlHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	values, err := h.store.All(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: load settings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": values})
}

// PutSetting writes one setting. Tunable parameters are validated against
// their guardrails; other keys must be on the control allowlist.
// PUT /api/settings/{key}
func (h *ControlHandler) PutSetting(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := r.PathValue("key")

	var body struct {
		Value string `json:"value"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, tunable := settings.Tunables[key]; tunable {
		if err := settings.ValidateProposed(key, body.Value); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	} else if validate, ok := controlKeys[key]; !ok {
		writeError(w, http.StatusBadRequest, "unknown setting key")
		return
	} else if !validate(body.Value) {
		writeError(w, http.StatusUnprocessableEntity, "invalid value for setting")
		return
	}

	if err := h.store.Put(ctx, key, body.Value); err != nil {
		h.logger.ErrorContext(ctx, "handler: put setting failed", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to write setting")
		return
	}
	h.logger.InfoContext(ctx, "setting updated", "key", key, "value", body.Value)
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": body.Value})
}
