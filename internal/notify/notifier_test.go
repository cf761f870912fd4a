package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	name   string
	err    error
	events []string
}

func (f *fakeSender) Send(_ context.Context, event, _, _ string) error {
	f.events = append(f.events, event)
	return f.err
}

func (f *fakeSender) Name() string { return f.name }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFiltersUnlistedEvents(t *testing.T) {
	s := &fakeSender{name: "telegram"}
	n := NewNotifier([]Sender{s}, []string{EventTradeOpened}, testLogger())

	require.NoError(t, n.Notify(context.Background(), EventTradeOpened, "t", "m"))
	require.NoError(t, n.Notify(context.Background(), EventPositionClosed, "t", "m"))

	assert.Equal(t, []string{EventTradeOpened}, s.events)
}

func TestNotifyEmptyFilterAllowsEverything(t *testing.T) {
	s := &fakeSender{name: "telegram"}
	n := NewNotifier([]Sender{s}, nil, testLogger())

	require.NoError(t, n.Notify(context.Background(), EventError, "t", "m"))

	assert.Equal(t, []string{EventError}, s.events)
}

func TestDispatchContinuesPastFailedSender(t *testing.T) {
	bad := &fakeSender{name: "telegram", err: assert.AnError}
	good := &fakeSender{name: "discord"}
	n := NewNotifier([]Sender{bad, good}, nil, testLogger())

	err := n.NotifyAll(context.Background(), EventBreakerTripped, "t", "m")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram")
	assert.Len(t, good.events, 1)
}
