package settings

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateProposedBounds(t *testing.T) {
	assert.NoError(t, ValidateProposed("min_edge", "0.03"))
	assert.Error(t, ValidateProposed("min_edge", "0.004"), "below minimum")
	assert.Error(t, ValidateProposed("min_edge", "0.15"), "above maximum")
	assert.Error(t, ValidateProposed("min_edge", "abc"))
	assert.Error(t, ValidateProposed("not_a_tunable", "1"))
}

func TestValidateProposedIntegerParams(t *testing.T) {
	assert.NoError(t, ValidateProposed("mm_max_hold_hours", "6"))
	assert.Error(t, ValidateProposed("mm_max_hold_hours", "6.5"))
	assert.Error(t, ValidateProposed("bond_pre_expiry_sec", "30"), "below minimum")
}

func TestTunableRegistryIsSelfConsistent(t *testing.T) {
	for key, spec := range Tunables {
		assert.Equal(t, key, spec.Key)
		assert.Less(t, spec.Min, spec.Max, key)
		assert.GreaterOrEqual(t, spec.Default, spec.Min, key)
		assert.LessOrEqual(t, spec.Default, spec.Max, key)
		def := strconv.FormatFloat(spec.Default, 'f', -1, 64)
		assert.NoError(t, ValidateProposed(key, def), key)
	}
}

func TestParamFallsBackAndClamps(t *testing.T) {
	snap := NewSnapshot(map[string]string{
		"min_edge":             "0.50", // stored above guardrail max
		"daily_loss_limit_pct": "nonsense",
	})

	assert.Equal(t, Tunables["min_edge"].Max, snap.Param("min_edge"))
	assert.Equal(t, Tunables["daily_loss_limit_pct"].Default, snap.Param("daily_loss_limit_pct"))
	assert.Equal(t, Tunables["stop_loss_threshold"].Default, snap.Param("stop_loss_threshold"))
}

func TestSnapshotDefaults(t *testing.T) {
	snap := NewSnapshot(nil)

	assert.True(t, snap.BotEnabled())
	assert.Equal(t, 1000.0, snap.Bankroll())
	assert.Equal(t, "kelly", snap.SizingMode())
	assert.Equal(t, 0.5, snap.KellyFraction())
	assert.Equal(t, 0.60, snap.MaxTotalExposurePct())
	assert.Equal(t, 3, snap.MaxCategoryPositions())
	assert.Empty(t, snap.BreakerTrippedOn())
	assert.True(t, snap.ScannerEnabled("bond"))
}

func TestSnapshotReadsStoredValues(t *testing.T) {
	snap := NewSnapshot(map[string]string{
		"bot_enabled":        "false",
		"current_bankroll":   "823.50",
		"sizing_mode":        "fixed",
		"fixed_notional":     "25",
		"breaker_tripped_on": "2026-08-29",
		"btc_enabled":        "false",
	})

	assert.False(t, snap.BotEnabled())
	assert.Equal(t, 823.50, snap.Bankroll())
	assert.Equal(t, "fixed", snap.SizingMode())
	assert.Equal(t, 25.0, snap.FixedNotional())
	assert.Equal(t, "2026-08-29", snap.BreakerTrippedOn())
	assert.False(t, snap.ScannerEnabled("btc"))
	assert.True(t, snap.ScannerEnabled("bond"))
}

func TestSizingModeRejectsUnknownValues(t *testing.T) {
	snap := NewSnapshot(map[string]string{"sizing_mode": "martingale"})
	assert.Equal(t, "kelly", snap.SizingMode())
}

func TestRawReportsPresence(t *testing.T) {
	snap := NewSnapshot(map[string]string{"min_edge": "0.02"})

	v, ok := snap.Raw("min_edge")
	require.True(t, ok)
	assert.Equal(t, "0.02", v)

	_, ok = snap.Raw("absent")
	assert.False(t, ok)
}
