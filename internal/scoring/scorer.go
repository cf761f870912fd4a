// Package scoring ranks candidate signals by risk-adjusted expected value.
// All functions are pure: they read the snapshot passed in and touch no
// other state.
package scoring

import (
	"sort"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
)

const (
	edgeWeight       = 0.4
	annualizedWeight = 0.3
	confidenceWeight = 0.3

	// annualizedCap normalizes annualized return into [0,1]. Returns above
	// 500% all score the same on this component.
	annualizedCap = 5.0

	// horizonPenalty is the multiplier applied to signals resolving beyond
	// the configured horizon.
	horizonPenalty = 0.8
)

// Score computes the composite score for one signal.
func Score(s domain.CandidateSignal, horizonHours float64) float64 {
	normAnnualized := s.AnnualizedReturn / annualizedCap
	if normAnnualized > 1 {
		normAnnualized = 1
	}
	if normAnnualized < 0 {
		normAnnualized = 0
	}

	score := edgeWeight*s.Edge() +
		annualizedWeight*normAnnualized +
		confidenceWeight*s.Confidence

	if horizonHours > 0 && s.HoursToResolution > horizonHours {
		score *= horizonPenalty
	}
	return score
}

// Rank scores every signal, deduplicates by (market, side) keeping the
// higher score, and returns the result sorted descending by score. The
// input slice is not modified.
func Rank(signals []domain.CandidateSignal, horizonHours float64) []domain.CandidateSignal {
	best := make(map[string]domain.CandidateSignal, len(signals))
	for _, s := range signals {
		s.Score = Score(s, horizonHours)
		if prev, ok := best[s.Key()]; ok && prev.Score >= s.Score {
			continue
		}
		best[s.Key()] = s
	}

	ranked := make([]domain.CandidateSignal, 0, len(best))
	for _, s := range best {
		ranked = append(ranked, s)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// FilterMinimumEdge drops signals whose edge is below minEdge.
func FilterMinimumEdge(signals []domain.CandidateSignal, minEdge float64) []domain.CandidateSignal {
	kept := make([]domain.CandidateSignal, 0, len(signals))
	for _, s := range signals {
		if s.Edge() >= minEdge {
			kept = append(kept, s)
		}
	}
	return kept
}
