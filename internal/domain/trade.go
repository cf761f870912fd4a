package domain

import "time"

// TradeStatus tracks the ledger lifecycle of a trade.
type TradeStatus string

const (
	TradeStatusOpen      TradeStatus = "open"
	TradeStatusClosed    TradeStatus = "closed"
	TradeStatusCancelled TradeStatus = "cancelled"
)

// TradeRecord is an append-only ledger entry. It is created at execution
// time with status open and finalized exactly once at close; after closure
// the only permitted write is attaching a Reflection row that references it.
type TradeRecord struct {
	ID          string
	Ticker      string
	MarketTitle string
	Strategy    string
	Side        Side
	Size        int
	EntryPrice  float64
	ExitPrice   *float64
	GrossPnL    *float64
	Fees        *float64
	NetPnL      *float64
	Status      TradeStatus
	Rationale   string
	CreatedAt   time.Time
	ResolvedAt  *time.Time
}

// IsLoss reports whether the trade closed with negative net PnL.
func (t TradeRecord) IsLoss() bool {
	return t.Status == TradeStatusClosed && t.NetPnL != nil && *t.NetPnL < 0
}

// CloseTrade carries everything needed to finalize one trade atomically:
// the ledger update, the position delete, and the bankroll adjustment all
// happen in a single transaction.
type CloseTrade struct {
	TradeID    string
	PositionID string
	ExitPrice  float64
	GrossPnL   float64
	Fees       float64
	NetPnL     float64
	Status     TradeStatus // closed or cancelled
	ResolvedAt time.Time
}

// TradeStats are aggregate statistics over a set of closed trades.
type TradeStats struct {
	TotalTrades   int
	Wins          int
	WinRate       float64 // percent
	NetPnL        float64
	StrategyPnL   map[string]float64
	TopStrategy   string
	WorstStrategy string
}

// ComputeTradeStats aggregates closed trades into summary statistics.
func ComputeTradeStats(trades []TradeRecord) TradeStats {
	stats := TradeStats{StrategyPnL: make(map[string]float64)}
	for _, t := range trades {
		if t.Status != TradeStatusClosed || t.NetPnL == nil {
			continue
		}
		stats.TotalTrades++
		if *t.NetPnL > 0 {
			stats.Wins++
		}
		stats.NetPnL += *t.NetPnL
		stats.StrategyPnL[t.Strategy] += *t.NetPnL
	}
	if stats.TotalTrades > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.TotalTrades) * 100
	}
	best, worst := 0.0, 0.0
	for name, pnl := range stats.StrategyPnL {
		if stats.TopStrategy == "" || pnl > best {
			stats.TopStrategy, best = name, pnl
		}
		if stats.WorstStrategy == "" || pnl < worst {
			stats.WorstStrategy, worst = name, pnl
		}
	}
	return stats
}
