package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nostem/Auto-Trading-Bot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRecStore struct {
	domain.RecommendationStore
	recs     map[string]domain.Recommendation
	approved []string
	denied   map[string]string
}

func newFakeRecStore() *fakeRecStore {
	return &fakeRecStore{
		recs:   map[string]domain.Recommendation{},
		denied: map[string]string{},
	}
}

func (f *fakeRecStore) GetByID(_ context.Context, id string) (domain.Recommendation, error) {
	rec, ok := f.recs[id]
	if !ok {
		return domain.Recommendation{}, domain.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRecStore) Approve(_ context.Context, id string) (domain.Recommendation, error) {
	rec, ok := f.recs[id]
	if !ok {
		return domain.Recommendation{}, domain.ErrNotFound
	}
	f.approved = append(f.approved, id)
	rec.Status = domain.RecommendationApproved
	f.recs[id] = rec
	return rec, nil
}

func (f *fakeRecStore) Deny(_ context.Context, id, reason string) error {
	if _, ok := f.recs[id]; !ok {
		return domain.ErrNotFound
	}
	f.denied[id] = reason
	return nil
}

type fakeSettingStore struct {
	domain.SettingStore
	values  map[string]string
	deleted []string
}

func newFakeSettingStore() *fakeSettingStore {
	return &fakeSettingStore{values: map[string]string{}}
}

func (f *fakeSettingStore) Put(_ context.Context, key, value string) error {
	f.values[key] = value
	return nil
}

func (f *fakeSettingStore) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.values, key)
	return nil
}

func (f *fakeSettingStore) All(_ context.Context) (map[string]string, error) {
	return f.values, nil
}

func pendingRec(id, key, value string) domain.Recommendation {
	return domain.Recommendation{
		ID:            id,
		SettingKey:    key,
		CurrentValue:  "0.15",
		ProposedValue: value,
		Trigger:       "weekly_report",
		Status:        domain.RecommendationPending,
		CreatedAt:     time.Now().UTC(),
	}
}

func recRequest(t *testing.T, h http.HandlerFunc, method, path, id, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.SetPathValue("id", id)
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func TestApproveAppliesPendingRecommendation(t *testing.T) {
	store := newFakeRecStore()
	store.recs["r1"] = pendingRec("r1", "max_position_pct", "0.10")
	h := NewRecommendationHandler(store, testLogger())

	w := recRequest(t, h.ApproveRecommendation, http.MethodPost, "/api/recommendations/r1/approve", "r1", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"r1"}, store.approved)
}

func TestApproveRejectsOutOfBoundsValue(t *testing.T) {
	store := newFakeRecStore()
	store.recs["r1"] = pendingRec("r1", "max_position_pct", "0.90")
	h := NewRecommendationHandler(store, testLogger())

	w := recRequest(t, h.ApproveRecommendation, http.MethodPost, "/api/recommendations/r1/approve", "r1", "")

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Empty(t, store.approved)
}

func TestApproveRejectsNonPending(t *testing.T) {
	store := newFakeRecStore()
	rec := pendingRec("r1", "max_position_pct", "0.10")
	rec.Status = domain.RecommendationDenied
	store.recs["r1"] = rec
	h := NewRecommendationHandler(store, testLogger())

	w := recRequest(t, h.ApproveRecommendation, http.MethodPost, "/api/recommendations/r1/approve", "r1", "")

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, store.approved)
}

func TestApproveUnknownID(t *testing.T) {
	h := NewRecommendationHandler(newFakeRecStore(), testLogger())

	w := recRequest(t, h.ApproveRecommendation, http.MethodPost, "/api/recommendations/nope/approve", "nope", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDenyRequiresReason(t *testing.T) {
	store := newFakeRecStore()
	store.recs["r1"] = pendingRec("r1", "max_position_pct", "0.10")
	h := NewRecommendationHandler(store, testLogger())

	w := recRequest(t, h.DenyRecommendation, http.MethodPost, "/api/recommendations/r1/deny", "r1", `{"reason": "  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, store.denied)

	w = recRequest(t, h.DenyRecommendation, http.MethodPost, "/api/recommendations/r1/deny", "r1", `{"reason": "too aggressive"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "too aggressive", store.denied["r1"])
}

func TestPutSettingValidatesTunables(t *testing.T) {
	store := newFakeSettingStore()
	h := NewControlHandler(store, testLogger())

	put := func(key, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/api/settings/"+key, strings.NewReader(body))
		req.SetPathValue("key", key)
		w := httptest.NewRecorder()
		h.PutSetting(w, req)
		return w
	}

	w := put("max_position_pct", `{"value": "0.20"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0.20", store.values["max_position_pct"])

	w = put("max_position_pct", `{"value": "0.90"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "0.20", store.values["max_position_pct"])

	w = put("sizing_mode", `{"value": "fixed"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = put("sizing_mode", `{"value": "martingale"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = put("totally_unknown", `{"value": "1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPauseResumeToggleBotEnabled(t *testing.T) {
	store := newFakeSettingStore()
	h := NewControlHandler(store, testLogger())

	w := httptest.NewRecorder()
	h.Pause(w, httptest.NewRequest(http.MethodPost, "/api/controls/pause", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "false", store.values["bot_enabled"])

	w = httptest.NewRecorder()
	h.Resume(w, httptest.NewRequest(http.MethodPost, "/api/controls/resume", nil))
	assert.Equal(t, "true", store.values["bot_enabled"])
}

func TestResetBreakerDeletesLatch(t *testing.T) {
	store := newFakeSettingStore()
	store.values["breaker_tripped_on"] = "2026-03-02"
	h := NewControlHandler(store, testLogger())

	w := httptest.NewRecorder()
	h.ResetBreaker(w, httptest.NewRequest(http.MethodPost, "/api/controls/reset-breaker", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"breaker_tripped_on"}, store.deleted)
}

type fakeTradeStore struct {
	domain.TradeStore
	trades []domain.TradeRecord
}

func (f *fakeTradeStore) List(_ context.Context, opts domain.ListOpts) ([]domain.TradeRecord, int, error) {
	return f.trades, len(f.trades), nil
}

func (f *fakeTradeStore) GetByID(_ context.Context, id string) (domain.TradeRecord, error) {
	for _, tr := range f.trades {
		if tr.ID == id {
			return tr, nil
		}
	}
	return domain.TradeRecord{}, domain.ErrNotFound
}

func TestListTradesPaginates(t *testing.T) {
	store := &fakeTradeStore{trades: []domain.TradeRecord{{ID: "t1"}, {ID: "t2"}}}
	h := NewTradeHandler(store, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/trades?limit=2&offset=0", nil)
	w := httptest.NewRecorder()
	h.ListTrades(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Trades []json.RawMessage `json:"trades"`
		Total  int               `json:"total"`
		Limit  int               `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Trades, 2)
	assert.Equal(t, 2, body.Total)
	assert.Equal(t, 2, body.Limit)
}

func TestGetTradeNotFound(t *testing.T) {
	h := NewTradeHandler(&fakeTradeStore{}, testLogger())

	w := recRequest(t, h.GetTrade, http.MethodGet, "/api/trades/nope", "nope", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}
