package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
)

type fakePutter struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func (f *fakePutter) Put(_ context.Context, key string, body []byte, contentType string) error {
	if f.err != nil {
		return f.err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
		f.types = map[string]string{}
	}
	f.objects[key] = body
	f.types[key] = contentType
	return nil
}

type fakeTradeStore struct {
	domain.TradeStore
	closed []domain.TradeRecord
}

func (f *fakeTradeStore) ClosedBefore(_ context.Context, _ time.Time, limit int) ([]domain.TradeRecord, error) {
	if len(f.closed) > limit {
		return f.closed[:limit], nil
	}
	return f.closed, nil
}

type fakeReflectionStore struct {
	domain.ReflectionStore
	reflections []domain.Reflection
}

func (f *fakeReflectionStore) List(_ context.Context, _ domain.ListOpts) ([]domain.Reflection, int, error) {
	return f.reflections, len(f.reflections), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func closedTrade(id string) domain.TradeRecord {
	net := -0.40
	resolved := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return domain.TradeRecord{
		ID:         id,
		Ticker:     "FED-CUT",
		Strategy:   "bond",
		Side:       domain.SideYes,
		Size:       10,
		EntryPrice: 0.90,
		NetPnL:     &net,
		Status:     domain.TradeStatusClosed,
		CreatedAt:  resolved.Add(-2 * time.Hour),
		ResolvedAt: &resolved,
	}
}

func TestArchiveWritesDateKeyedSnapshots(t *testing.T) {
	putter := &fakePutter{}
	a := NewArchiver(
		&fakeTradeStore{closed: []domain.TradeRecord{closedTrade("t1"), closedTrade("t2")}},
		&fakeReflectionStore{reflections: []domain.Reflection{{ID: "r1", TradeID: "t1", Summary: "s"}}},
		putter, testLogger())
	a.now = func() time.Time { return time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC) }

	require.NoError(t, a.Archive(context.Background()))

	require.Contains(t, putter.objects, "trades/2026-03-02.jsonl")
	require.Contains(t, putter.objects, "reflections/2026-03-02.jsonl")
	assert.Equal(t, ndjsonContentType, putter.types["trades/2026-03-02.jsonl"])

	scanner := bufio.NewScanner(bytes.NewReader(putter.objects["trades/2026-03-02.jsonl"]))
	var lines []tradeLine
	for scanner.Scan() {
		var line tradeLine
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.Len(t, lines, 2)
	assert.Equal(t, "t1", lines[0].ID)
	assert.Equal(t, "yes", lines[0].Side)
	require.NotNil(t, lines[0].NetPnL)
	assert.Equal(t, -0.40, *lines[0].NetPnL)
}

func TestArchiveSkipsEmptyLedger(t *testing.T) {
	putter := &fakePutter{}
	a := NewArchiver(&fakeTradeStore{}, &fakeReflectionStore{}, putter, testLogger())

	require.NoError(t, a.Archive(context.Background()))

	assert.Empty(t, putter.objects)
}

func TestArchivePropagatesUploadFailure(t *testing.T) {
	putter := &fakePutter{err: assert.AnError}
	a := NewArchiver(
		&fakeTradeStore{closed: []domain.TradeRecord{closedTrade("t1")}},
		&fakeReflectionStore{}, putter, testLogger())

	assert.Error(t, a.Archive(context.Background()))
}
