package domain

import "time"

// AdvisoryDirection is the classified market impact of a headline.
type AdvisoryDirection string

const (
	AdvisoryYesUp   AdvisoryDirection = "yes_up"
	AdvisoryNoUp    AdvisoryDirection = "no_up"
	AdvisoryNeutral AdvisoryDirection = "neutral"
)

// ClassifiedHeadline is a news headline after classification by the
// reasoning service. Advisory only: it can nudge the news scanner toward a
// market but never bypasses the risk gate, and a missing or malformed
// classification simply produces no headline at all.
type ClassifiedHeadline struct {
	Headline   string            `json:"headline"`
	Summary    string            `json:"summary"`
	Source     string            `json:"source"`
	Published  time.Time         `json:"published"`
	Relevant   bool              `json:"relevant"`
	Categories []string          `json:"categories"`
	Direction  AdvisoryDirection `json:"direction"`
	Confidence float64           `json:"confidence"`
	Reasoning  string            `json:"reasoning"`
}
