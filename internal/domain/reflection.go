package domain

import "time"

// Reflection is a post-mortem for one closed trade, produced best-effort by
// the reasoning service. Exactly one is attached per closed TradeRecord.
type Reflection struct {
	ID              string
	TradeID         string
	Summary         string
	WhatWorked      string
	WhatFailed      string
	ConfidenceScore int // 1-10
	Suggestion      string
	CreatedAt       time.Time
}

// WeeklyReport is the Monday roll-up of the previous seven days of trading.
type WeeklyReport struct {
	ID           string
	WeekStart    time.Time
	WeekEnd      time.Time
	TotalTrades  int
	WinRate      float64
	NetPnL       float64
	TopStrategy  string
	Summary      string
	KeyLearnings string
	CreatedAt    time.Time
}

// RecommendationStatus is the human-approval state machine. The only legal
// transitions are pending -> approved and pending -> denied, performed by
// an external actor through the control API; the loop only reads terminal
// states.
type RecommendationStatus string

const (
	RecommendationPending  RecommendationStatus = "pending"
	RecommendationApproved RecommendationStatus = "approved"
	RecommendationDenied   RecommendationStatus = "denied"
)

// Recommendation is a proposed change to one tunable parameter. It never
// self-applies: approval through the control API is the only path by which
// it mutates the settings table.
type Recommendation struct {
	ID            string
	SettingKey    string
	CurrentValue  string
	ProposedValue string
	Rationale     string
	Trigger       string // "consecutive_losses", "cumulative_losses", "weekly_report"
	Status        RecommendationStatus
	DenialReason  string
	ResolvedAt    *time.Time
	CreatedAt     time.Time
}
