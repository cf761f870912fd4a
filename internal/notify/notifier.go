// Package notify fans operator alerts out to the configured channels
// (Telegram, Discord). Every alert carries an event type so operators can
// subscribe to the trade lifecycle events they care about and mute the
// rest.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Event types emitted by the trading loop.
const (
	EventTradeOpened    = "trade_opened"
	EventPositionClosed = "position_closed"
	EventBreakerTripped = "breaker_tripped"
	EventRecommendation = "recommendation"
	EventError          = "error"
)

// Sender delivers one alert over a single channel.
type Sender interface {
	Send(ctx context.Context, event, title, message string) error
	// Name identifies the channel, e.g. "telegram".
	Name() string
}

// Notifier dispatches alerts to every registered Sender, filtered by an
// allowed-event set. An empty set allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier builds a Notifier delivering to the given senders. Only
// events listed in events pass the filter; an empty list allows all.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With("component", "notifier"),
	}
}

// Notify delivers the alert to all senders if its event type passes the
// filter. Delivery failures never propagate into the trading loop; they
// are logged and collected into the returned error for callers that care.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", "event", event)
		return nil
	}
	return n.dispatch(ctx, event, title, message)
}

// NotifyAll delivers the alert to all senders regardless of the filter.
func (n *Notifier) NotifyAll(ctx context.Context, event, title, message string) error {
	return n.dispatch(ctx, event, title, message)
}

func (n *Notifier) dispatch(ctx context.Context, event, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, event, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				"sender", s.Name(), "event", event, "error", err)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			"sender", s.Name(), "event", event, "title", title)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
