package domain

import "time"

// Position is a live holding in one market. At most one open Position may
// exist per ticker; the positions table enforces this with a unique index
// and the scanner layer re-checks it before proposing entries.
//
// Created by the execution engine on fill, price-refreshed by the position
// monitor, and deleted when closed.
type Position struct {
	ID            string
	Ticker        string
	MarketTitle   string
	Strategy      string
	Category      string
	Side          Side
	Size          int
	EntryPrice    float64
	CurrentPrice  float64
	UnrealizedPnL float64
	OpenedAt      time.Time
	ExpiresAt     *time.Time
}

// EntryValue is the capital committed at entry.
func (p Position) EntryValue() float64 {
	return p.EntryPrice * float64(p.Size)
}
