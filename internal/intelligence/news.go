package intelligence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
)

const classifySystem = "You are a prediction market trading assistant. " +
	"Classify news headlines for their impact on Kalshi prediction markets. Return JSON only."

const classifyTemplate = `Headline: %s
Summary: %s

Return JSON: {"relevant": bool, "affected_categories": ["list of Kalshi categories like 'politics', 'economics', 'crypto', 'sports'"], "direction": "yes_up" or "no_up" or "neutral", "confidence": 0.0-1.0, "reasoning": "one sentence"}`

const (
	dispatchMinConfidence = 0.5
	summaryMaxRunes       = 500
	seenCap               = 10_000
)

// Listener polls RSS feeds, classifies unseen headlines through the
// reasoning service, and appends the classified results to the advisory
// stream. It only ever writes advisories; acting on them is the news
// scanner's job, behind the same risk gate as every other signal.
type Listener struct {
	feeds      []string
	bus        domain.SignalBus
	reasoner   Reasoner
	parser     *gofeed.Parser
	interval   time.Duration
	maxPerPoll int
	seen       map[string]bool
	logger     *slog.Logger
	now        func() time.Time
}

// NewListener returns a Listener over the given feed URLs.
func NewListener(feeds []string, bus domain.SignalBus, reasoner Reasoner, interval time.Duration, maxPerPoll int, logger *slog.Logger) *Listener {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if maxPerPoll <= 0 {
		maxPerPoll = 10
	}
	return &Listener{
		feeds:      feeds,
		bus:        bus,
		reasoner:   reasoner,
		parser:     gofeed.NewParser(),
		interval:   interval,
		maxPerPoll: maxPerPoll,
		seen:       make(map[string]bool),
		logger:     logger.With("component", "news_listener"),
		now:        time.Now,
	}
}

// Run polls all feeds on the configured interval until the context is
// cancelled. Feed and classification failures are logged and skipped; the
// loop itself never stops on them.
func (l *Listener) Run(ctx context.Context) error {
	if l.reasoner == nil || !l.reasoner.Enabled() {
		l.logger.InfoContext(ctx, "reasoning disabled, news listener idle")
		<-ctx.Done()
		return nil
	}
	l.logger.InfoContext(ctx, "starting feed polling",
		"feeds", len(l.feeds), "interval", l.interval)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		l.pollOnce(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (l *Listener) pollOnce(ctx context.Context) {
	fresh := 0
	for _, url := range l.feeds {
		feed, err := l.parser.ParseURLWithContext(url, ctx)
		if err != nil {
			l.logger.WarnContext(ctx, "feed fetch failed", "url", url, "error", err)
			continue
		}
		source := url
		if feed.Title != "" {
			source = feed.Title
		}
		for _, item := range feed.Items {
			if fresh >= l.maxPerPoll {
				return
			}
			id := itemID(item)
			if id == "" || l.seen[id] {
				continue
			}
			l.markSeen(id)
			fresh++
			l.classifyAndAppend(ctx, item, source)
		}
	}
	if fresh > 0 {
		l.logger.DebugContext(ctx, "processed new headlines", "count", fresh)
	}
}

func (l *Listener) classifyAndAppend(ctx context.Context, item *gofeed.Item, source string) {
	summary := item.Description
	if runes := []rune(summary); len(runes) > summaryMaxRunes {
		summary = string(runes[:summaryMaxRunes])
	}

	var out struct {
		Relevant   bool     `json:"relevant"`
		Categories []string `json:"affected_categories"`
		Direction  string   `json:"direction"`
		Confidence float64  `json:"confidence"`
		Reasoning  string   `json:"reasoning"`
	}
	prompt := fmt.Sprintf(classifyTemplate, item.Title, summary)
	if err := l.reasoner.CompleteJSON(ctx, classifySystem, prompt, &out); err != nil {
		l.logger.WarnContext(ctx, "headline classification failed",
			"title", item.Title, "error", err)
		return
	}
	if !out.Relevant || out.Confidence < dispatchMinConfidence {
		return
	}

	published := l.now()
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC()
	}
	classified := domain.ClassifiedHeadline{
		Headline:   item.Title,
		Summary:    summary,
		Source:     source,
		Published:  published,
		Relevant:   out.Relevant,
		Categories: out.Categories,
		Direction:  domain.AdvisoryDirection(out.Direction),
		Confidence: out.Confidence,
		Reasoning:  out.Reasoning,
	}
	payload, err := json.Marshal(classified)
	if err != nil {
		l.logger.ErrorContext(ctx, "headline marshal failed", "title", item.Title, "error", err)
		return
	}
	if err := l.bus.StreamAppend(ctx, domain.StreamAdvisory, payload); err != nil {
		l.logger.WarnContext(ctx, "advisory stream append failed",
			"title", item.Title, "error", err)
		return
	}
	l.logger.InfoContext(ctx, "relevant headline dispatched",
		"title", item.Title, "direction", out.Direction, "confidence", out.Confidence)
}

// markSeen records a headline ID, resetting the set when it grows past the
// cap. A reset can re-dispatch old headlines; the scanner's age cutoff
// keeps stale ones from producing signals.
func (l *Listener) markSeen(id string) {
	if len(l.seen) >= seenCap {
		l.seen = make(map[string]bool)
	}
	l.seen[id] = true
}

func itemID(item *gofeed.Item) string {
	if item.Link != "" {
		return item.Link
	}
	if item.GUID != "" {
		return item.GUID
	}
	return item.Title
}
