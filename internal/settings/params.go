// Package settings provides the configuration snapshot read fresh from the
// control-plane settings table at the start of every task invocation, plus
// the guardrail registry for the tunable parameters the recommender may
// propose changes to.
package settings

import (
	"fmt"
	"strconv"
)

// ParamSpec bounds one tunable parameter. The recommender builds proposals
// from this registry and the control API validates against it on approval,
// so an out-of-range value can never reach the live settings table.
type ParamSpec struct {
	Key         string
	Description string
	Default     float64
	Min         float64
	Max         float64
	Integer     bool
}

// Tunables is the registry of parameters eligible for recommendations.
var Tunables = map[string]ParamSpec{
	"max_position_pct": {
		Key:         "max_position_pct",
		Description: "maximum single position size as fraction of bankroll",
		Default:     0.15, Min: 0.05, Max: 0.25,
	},
	"daily_loss_limit_pct": {
		Key:         "daily_loss_limit_pct",
		Description: "daily realized loss limit as fraction of bankroll",
		Default:     0.03, Min: 0.01, Max: 0.10,
	},
	"stop_loss_threshold": {
		Key:         "stop_loss_threshold",
		Description: "percentage stop-loss as fraction of entry value",
		Default:     0.50, Min: 0.20, Max: 0.70,
	},
	"bond_stop_loss_cents": {
		Key:         "bond_stop_loss_cents",
		Description: "bond absolute price-drop stop in price units",
		Default:     0.06, Min: 0.02, Max: 0.10,
	},
	"btc_take_profit_pct": {
		Key:         "btc_take_profit_pct",
		Description: "btc take-profit as fraction of entry value",
		Default:     0.30, Min: 0.10, Max: 0.60,
	},
	"mm_max_hold_hours": {
		Key:         "mm_max_hold_hours",
		Description: "maximum hours to hold a market-making position",
		Default:     4, Min: 1, Max: 12,
		Integer: true,
	},
	"bond_pre_expiry_sec": {
		Key:         "bond_pre_expiry_sec",
		Description: "seconds before market close to exit bond positions",
		Default:     300, Min: 60, Max: 900,
		Integer: true,
	},
	"mm_pre_expiry_sec": {
		Key:         "mm_pre_expiry_sec",
		Description: "seconds before market close to exit market-making positions",
		Default:     600, Min: 120, Max: 1800,
		Integer: true,
	},
	"btc_pre_expiry_sec": {
		Key:         "btc_pre_expiry_sec",
		Description: "seconds before market close to exit btc positions",
		Default:     60, Min: 15, Max: 300,
		Integer: true,
	},
	"min_edge": {
		Key:         "min_edge",
		Description: "minimum edge a signal must carry to survive filtering",
		Default:     0.02, Min: 0.005, Max: 0.10,
	},
}

// ValidateProposed checks a proposed raw value against the parameter's
// guardrails. Returns nil only for a known key with an in-bounds value of
// the right type.
func ValidateProposed(key, raw string) error {
	spec, ok := Tunables[key]
	if !ok {
		return fmt.Errorf("settings: unknown tunable parameter %q", key)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("settings: %s: cannot parse %q as number", key, raw)
	}
	if spec.Integer && v != float64(int64(v)) {
		return fmt.Errorf("settings: %s: value %s must be an integer", key, raw)
	}
	if v < spec.Min {
		return fmt.Errorf("settings: %s: value %s below minimum %g", key, raw, spec.Min)
	}
	if v > spec.Max {
		return fmt.Errorf("settings: %s: value %s above maximum %g", key, raw, spec.Max)
	}
	return nil
}
