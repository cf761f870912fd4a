// Package scanner holds the opportunity scanners. Each scanner reads market
// state through the read-only exchange capability and emits candidate
// signals; it never places orders and never writes storage.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
	"github.com/Nostem/Auto-Trading-Bot/internal/settings"
)

// Scanner is the contract every opportunity scanner implements. held maps
// ticker to true for every market with an open position; implementations
// must skip those markets so a re-run proposes nothing already held.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, ex domain.MarketReader, held map[string]bool) ([]domain.CandidateSignal, error)
}

// Registry manages the named collection of scanners selected at composition
// time. It is safe for concurrent use.
type Registry struct {
	scanners map[string]Scanner
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		scanners: make(map[string]Scanner),
		logger:   logger.With("component", "scanner_registry"),
	}
}

// Register adds a scanner under its own name. A scanner registered twice
// replaces the earlier instance.
func (r *Registry) Register(s Scanner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanners[s.Name()] = s
}

// Get retrieves a scanner by name. It returns an error when the name is not
// registered.
func (r *Registry) Get(name string) (Scanner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.scanners[name]
	if !ok {
		return nil, fmt.Errorf("scanner %q: not registered", name)
	}
	return s, nil
}

// List returns the names of all registered scanners in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.scanners))
	for n := range r.scanners {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ScanAll runs every enabled scanner in name order and collects their
// candidates. A failing scanner degrades to an empty contribution and the
// cycle continues; only the error is logged. Scanners disabled through the
// settings snapshot are skipped entirely.
func (r *Registry) ScanAll(ctx context.Context, ex domain.MarketReader, held map[string]bool, snap settings.Snapshot) []domain.CandidateSignal {
	var out []domain.CandidateSignal
	for _, name := range r.List() {
		if !snap.ScannerEnabled(name) {
			continue
		}
		s, err := r.Get(name)
		if err != nil {
			continue
		}
		signals, err := s.Scan(ctx, ex, held)
		if err != nil {
			r.logger.WarnContext(ctx, "scanner failed, skipping its output",
				"scanner", name, "error", err)
			continue
		}
		out = append(out, signals...)
	}
	return out
}

// annualize scales a per-trade expected return to a yearly rate. Horizons
// under floorHours are treated as floorHours so very short markets do not
// produce absurd annualized figures.
func annualize(expectedReturn, hours, floorHours float64) float64 {
	if hours < floorHours {
		hours = floorHours
	}
	return expectedReturn * (8760 / hours)
}
