package intelligence

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
	"github.com/Nostem/Auto-Trading-Bot/internal/settings"
)

// Recommendation triggers. Each trigger proposes at most one change per
// parameter and never overwrites a still-pending proposal for the key.
const (
	TriggerConsecutiveLosses = "consecutive_losses"
	TriggerCumulativeLosses  = "cumulative_losses"
	TriggerWeeklyReport      = "weekly_report"
)

const (
	consecutiveLossCount = 3
	cumulativeLossEvery  = 10
	staleRecAge          = 7 * 24 * time.Hour
)

const weeklySystem = "You are a trading performance analyst for a prediction market bot. " +
	"Provide honest, data-driven weekly summaries. Return JSON only."

const recommendSystem = "You are a risk tuning assistant for a prediction market bot. " +
	"Propose conservative parameter adjustments grounded in the statistics given. Return JSON only."

// Analyst produces weekly reports and parameter recommendations from the
// closed-trade ledger. All of its output is human-gated: a recommendation
// only reaches the live settings table through an explicit approval.
type Analyst struct {
	reasoner    Reasoner
	trades      domain.TradeStore
	reflections domain.ReflectionStore
	recs        domain.RecommendationStore
	settings    domain.SettingStore
	logger      *slog.Logger
	now         func() time.Time
}

// NewAnalyst returns an Analyst over the given stores.
func NewAnalyst(reasoner Reasoner, trades domain.TradeStore, reflections domain.ReflectionStore, recs domain.RecommendationStore, settingStore domain.SettingStore, logger *slog.Logger) *Analyst {
	return &Analyst{
		reasoner:    reasoner,
		trades:      trades,
		reflections: reflections,
		recs:        recs,
		settings:    settingStore,
		logger:      logger.With("component", "analyst"),
		now:         time.Now,
	}
}

// WeeklyReport rolls up the last seven days of closed trades, saves the
// report, and runs the weekly recommendation pass. A week with no trades
// produces nothing.
func (a *Analyst) WeeklyReport(ctx context.Context) error {
	now := a.now()
	weekStart := now.AddDate(0, 0, -7)

	closed, err := a.trades.ClosedSince(ctx, weekStart)
	if err != nil {
		return fmt.Errorf("intelligence: weekly trades: %w", err)
	}
	if len(closed) == 0 {
		a.logger.InfoContext(ctx, "no trades this week, skipping weekly report")
		return nil
	}

	stats := domain.ComputeTradeStats(closed)
	learnings := a.recentLearnings(ctx, 10)

	var out struct {
		Summary      string `json:"summary"`
		KeyLearnings string `json:"key_learnings"`
	}
	generated := false
	if a.reasoner != nil && a.reasoner.Enabled() {
		prompt := fmt.Sprintf(`Weekly trading performance summary:
Period: %s to %s
Total trades: %d
Win rate: %.1f%%
Net PnL: $%.2f
Best strategy: %s
Strategy breakdown: %s

Recent trade reflections:
%s

Return JSON: {"summary": "3-4 sentence overview", "key_learnings": "2-3 bullet points of actionable insights"}`,
			weekStart.Format("2006-01-02"), now.Format("2006-01-02"),
			stats.TotalTrades, stats.WinRate, stats.NetPnL, stats.TopStrategy,
			formatStrategyPnL(stats.StrategyPnL), learnings)
		if err := a.reasoner.CompleteJSON(ctx, weeklySystem, prompt, &out); err != nil {
			a.logger.WarnContext(ctx, "weekly summary generation failed, using fallback", "error", err)
		} else {
			generated = true
		}
	}
	if !generated || out.Summary == "" {
		out.Summary = fmt.Sprintf("Week of %s: %d trades, %.1f%% win rate, $%.2f net PnL.",
			weekStart.Format("2006-01-02"), stats.TotalTrades, stats.WinRate, stats.NetPnL)
		out.KeyLearnings = "Manual review recommended."
	}

	report := domain.WeeklyReport{
		ID:           uuid.NewString(),
		WeekStart:    weekStart,
		WeekEnd:      now,
		TotalTrades:  stats.TotalTrades,
		WinRate:      stats.WinRate,
		NetPnL:       stats.NetPnL,
		TopStrategy:  stats.TopStrategy,
		Summary:      out.Summary,
		KeyLearnings: out.KeyLearnings,
		CreatedAt:    now,
	}
	if err := a.reflections.CreateWeekly(ctx, report); err != nil {
		return fmt.Errorf("intelligence: save weekly report: %w", err)
	}
	a.logger.InfoContext(ctx, "weekly report saved",
		"trades", stats.TotalTrades, "win_rate", stats.WinRate, "net_pnl", stats.NetPnL)

	if err := a.Recommend(ctx, TriggerWeeklyReport); err != nil {
		a.logger.WarnContext(ctx, "weekly recommendation pass failed", "error", err)
	}
	return nil
}

// CheckLossTriggers fires the event-driven recommendation triggers: a run
// of consecutive losses, or the cumulative loss count crossing another
// threshold multiple. The consecutive trigger wins when both apply.
func (a *Analyst) CheckLossTriggers(ctx context.Context) error {
	recent, err := a.trades.RecentClosed(ctx, consecutiveLossCount)
	if err != nil {
		return fmt.Errorf("intelligence: recent closed trades: %w", err)
	}
	if len(recent) == consecutiveLossCount && allLosses(recent) {
		oldest := recent[len(recent)-1]
		if oldest.ResolvedAt != nil {
			exists, err := a.recs.ExistsForTriggerSince(ctx, TriggerConsecutiveLosses, *oldest.ResolvedAt)
			if err != nil {
				return fmt.Errorf("intelligence: dedupe consecutive trigger: %w", err)
			}
			if !exists {
				a.logger.InfoContext(ctx, "consecutive losses detected, generating recommendations",
					"count", consecutiveLossCount)
				return a.Recommend(ctx, TriggerConsecutiveLosses)
			}
		}
		return nil
	}

	totalLosses, err := a.trades.CountClosedLosses(ctx)
	if err != nil {
		return fmt.Errorf("intelligence: count losses: %w", err)
	}
	if totalLosses > 0 && totalLosses%cumulativeLossEvery == 0 {
		existing, err := a.recs.CountForTrigger(ctx, TriggerCumulativeLosses)
		if err != nil {
			return fmt.Errorf("intelligence: count cumulative recs: %w", err)
		}
		if existing < totalLosses/cumulativeLossEvery {
			a.logger.InfoContext(ctx, "cumulative loss threshold crossed, generating recommendations",
				"total_losses", totalLosses)
			return a.Recommend(ctx, TriggerCumulativeLosses)
		}
	}
	return nil
}

// Recommend asks the reasoning service for parameter adjustments based on
// the trailing week's statistics. Proposals are validated against the
// guardrail registry, deduplicated against pending recommendations, and
// stored as pending; nothing is applied here.
func (a *Analyst) Recommend(ctx context.Context, trigger string) error {
	if a.reasoner == nil || !a.reasoner.Enabled() {
		a.logger.InfoContext(ctx, "reasoning disabled, skipping recommendations", "trigger", trigger)
		return nil
	}

	now := a.now()
	closed, err := a.trades.ClosedSince(ctx, now.AddDate(0, 0, -7))
	if err != nil {
		return fmt.Errorf("intelligence: trades for recommendation: %w", err)
	}
	stats := domain.ComputeTradeStats(closed)

	current, err := a.settings.All(ctx)
	if err != nil {
		return fmt.Errorf("intelligence: settings for recommendation: %w", err)
	}

	var proposals []struct {
		SettingKey    string `json:"setting_key"`
		ProposedValue string `json:"proposed_value"`
		Reasoning     string `json:"reasoning"`
	}
	prompt := fmt.Sprintf(`Trading performance over the last 7 days:
Trigger: %s
Total trades: %d
Win rate: %.1f%%
Net PnL: $%.2f
Strategy breakdown: %s

Tunable parameters (key, current, allowed range):
%s

Propose at most 3 parameter changes that would improve risk-adjusted results.
Return JSON: [{"setting_key": "...", "proposed_value": "...", "reasoning": "one sentence"}]
Return [] if no change is warranted.`,
		trigger, stats.TotalTrades, stats.WinRate, stats.NetPnL,
		formatStrategyPnL(stats.StrategyPnL), tunableTable(current))
	if err := a.reasoner.CompleteJSON(ctx, recommendSystem, prompt, &proposals); err != nil {
		a.logger.WarnContext(ctx, "recommendation generation failed", "trigger", trigger, "error", err)
		return nil
	}

	seen := make(map[string]bool)
	for _, p := range proposals {
		if seen[p.SettingKey] {
			continue
		}
		seen[p.SettingKey] = true

		if err := settings.ValidateProposed(p.SettingKey, p.ProposedValue); err != nil {
			a.logger.WarnContext(ctx, "rejecting out-of-bounds proposal",
				"key", p.SettingKey, "value", p.ProposedValue, "error", err)
			continue
		}
		pending, err := a.recs.HasPendingForKey(ctx, p.SettingKey)
		if err != nil {
			return fmt.Errorf("intelligence: pending check for %s: %w", p.SettingKey, err)
		}
		if pending {
			a.logger.InfoContext(ctx, "proposal already pending for key, skipping", "key", p.SettingKey)
			continue
		}

		rec := domain.Recommendation{
			ID:            uuid.NewString(),
			SettingKey:    p.SettingKey,
			CurrentValue:  currentValue(current, p.SettingKey),
			ProposedValue: p.ProposedValue,
			Rationale:     p.Reasoning,
			Trigger:       trigger,
			Status:        domain.RecommendationPending,
			CreatedAt:     now,
		}
		if err := a.recs.Create(ctx, rec); err != nil {
			return fmt.Errorf("intelligence: save recommendation: %w", err)
		}
		a.logger.InfoContext(ctx, "recommendation created",
			"key", p.SettingKey, "current", rec.CurrentValue,
			"proposed", p.ProposedValue, "trigger", trigger)
	}
	return nil
}

// ExpireStale denies pending recommendations older than seven days.
func (a *Analyst) ExpireStale(ctx context.Context) error {
	cutoff := a.now().Add(-staleRecAge)
	n, err := a.recs.ExpirePending(ctx, cutoff, "Auto-expired after 7 days")
	if err != nil {
		return fmt.Errorf("intelligence: expire recommendations: %w", err)
	}
	if n > 0 {
		a.logger.InfoContext(ctx, "expired stale recommendations", "count", n)
	}
	return nil
}

func (a *Analyst) recentLearnings(ctx context.Context, limit int) string {
	reflections, err := a.reflections.Recent(ctx, limit)
	if err != nil || len(reflections) == 0 {
		return "No reflections yet."
	}
	var b strings.Builder
	for _, r := range reflections {
		fmt.Fprintf(&b, "- [%s] %s\n", r.CreatedAt.Format("2006-01-02"), r.Summary)
		if r.Suggestion != "" {
			fmt.Fprintf(&b, "  Suggestion: %s\n", r.Suggestion)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func allLosses(trades []domain.TradeRecord) bool {
	for _, t := range trades {
		if !t.IsLoss() {
			return false
		}
	}
	return true
}

func formatStrategyPnL(pnl map[string]float64) string {
	names := make([]string, 0, len(pnl))
	for n := range pnl {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, n := range names {
		parts = append(parts, fmt.Sprintf("%s: $%.2f", n, pnl[n]))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func tunableTable(current map[string]string) string {
	keys := make([]string, 0, len(settings.Tunables))
	for k := range settings.Tunables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		spec := settings.Tunables[k]
		fmt.Fprintf(&b, "- %s = %s (range %g to %g): %s\n",
			k, currentValue(current, k), spec.Min, spec.Max, spec.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func currentValue(current map[string]string, key string) string {
	if v, ok := current[key]; ok && v != "" {
		return v
	}
	if spec, ok := settings.Tunables[key]; ok {
		return fmt.Sprintf("%g", spec.Default)
	}
	return ""
}
