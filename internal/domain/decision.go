package domain

// TradeDecision is the risk gate's verdict on a candidate. It is immutable
// once produced; every order submission must trace back to an approved one.
type TradeDecision struct {
	Approved        bool
	RecommendedSize int     // contracts, >= 0
	Reason          string
	SizingFraction  float64 // Kelly fraction actually applied (0 in fixed mode)
}

// Reject builds a rejection decision with the given reason.
func Reject(reason string) TradeDecision {
	return TradeDecision{Approved: false, RecommendedSize: 0, Reason: reason}
}
