package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"copytrader/src/model"
)

type mockSignalRepo struct {
	created *model.Signal
	err     error
	latest  []model.Signal
}

func (m *mockSignalRepo) Create(_ context.Context, signal *model.Signal) error {
	m.created = signal
	return m.err
}

func (m *mockSignalRepo) FindLatest(_ context.Context, _ int) ([]model.Signal, error) {
	return m.latest, m.err
}

type mockMatcher struct {
	matches []model.SignalSubscription
	err     error
}

func (m *mockMatcher) Match(_ context.Context, _ *model.Signal) ([]model.SignalSubscription, error) {
	return m.matches, m.err
}

type mockDispatcher struct {
	mu      sync.Mutex
	done    chan struct{}
	signal  *model.Signal
	matches []model.SignalSubscription
}

func newMockDispatcher() *mockDispatcher {
	return &mockDispatcher{done: make(chan struct{})}
}

func (m *mockDispatcher) Dispatch(signal *model.Signal, matches []model.SignalSubscription) {
	m.mu.Lock()
	m.signal = signal
	m.matches = matches
	m.mu.Unlock()
	close(m.done)
}

func postSignal(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/signals", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestIngestSignalHandler_MalformedJSON(t *testing.T) {
	handler := IngestSignalHandler(&mockSignalRepo{}, &mockMatcher{}, newMockDispatcher(), nil)

	rr := postSignal(t, handler, `{"provider_id": "tv1",`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}

	var resp map[string]string
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "malformed")
}

func TestIngestSignalHandler_InvalidAction(t *testing.T) {
	handler := IngestSignalHandler(&mockSignalRepo{}, &mockMatcher{}, newMockDispatcher(), nil)

	rr := postSignal(t, handler, `{"provider_id":"tv1","symbol":"BTCUSD","action":"hold","price":100}`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestIngestSignalHandler_NonPositivePrice(t *testing.T) {
	handler := IngestSignalHandler(&mockSignalRepo{}, &mockMatcher{}, newMockDispatcher(), nil)

	rr := postSignal(t, handler, `{"provider_id":"tv1","symbol":"BTCUSD","action":"buy","price":0}`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestIngestSignalHandler_MissingSymbol(t *testing.T) {
	handler := IngestSignalHandler(&mockSignalRepo{}, &mockMatcher{}, newMockDispatcher(), nil)

	rr := postSignal(t, handler, `{"provider_id":"tv1","action":"buy","price":100}`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestIngestSignalHandler_RepoError(t *testing.T) {
	repo := &mockSignalRepo{err: assert.AnError}
	handler := IngestSignalHandler(repo, &mockMatcher{}, newMockDispatcher(), nil)

	rr := postSignal(t, handler, `{"provider_id":"tv1","symbol":"BTCUSD","action":"buy","price":100}`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
}

func TestIngestSignalHandler_AcceptedAndDispatched(t *testing.T) {
	repo := &mockSignalRepo{}
	matches := []model.SignalSubscription{
		{ID: 1, UserID: 10, AutoTrade: true},
		{ID: 2, UserID: 11, AutoTrade: false}, // notification only
	}
	dispatcher := newMockDispatcher()
	handler := IngestSignalHandler(repo, &mockMatcher{matches: matches}, dispatcher, nil)

	body := `{"provider_id":"tv1","symbol":"BTCUSD","action":"buy","price":"65000.50","confidence":80}`
	rr := postSignal(t, handler, body)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", rr.Code)
	}

	var resp map[string]string
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp["signal_id"])

	if repo.created == nil {
		t.Fatal("expected signal to be persisted")
	}
	assert.Equal(t, resp["signal_id"], repo.created.ID)
	assert.Equal(t, "BTCUSD", repo.created.Symbol)
	assert.Equal(t, body, repo.created.RawPayload)
	assert.Equal(t, "65000.5", repo.created.Price.String())

	<-dispatcher.done
	assert.Equal(t, repo.created.ID, dispatcher.signal.ID)
	// only the auto-trade match reaches the pool
	assert.Len(t, dispatcher.matches, 1)
	assert.Equal(t, uint(10), dispatcher.matches[0].UserID)
}

func TestIngestSignalHandler_UniqueIDsPerDelivery(t *testing.T) {
	repo := &mockSignalRepo{}
	handler := IngestSignalHandler(repo, &mockMatcher{}, newMockDispatcher(), nil)

	first := postSignal(t, handler, `{"provider_id":"tv1","symbol":"BTCUSD","action":"buy","price":100}`)
	firstID := repo.created.ID

	second := postSignal(t, handler, `{"provider_id":"tv1","symbol":"BTCUSD","action":"buy","price":100}`)
	secondID := repo.created.ID

	assert.Equal(t, http.StatusAccepted, first.Code)
	assert.Equal(t, http.StatusAccepted, second.Code)
	assert.NotEqual(t, firstID, secondID, "every delivery gets its own signal ID")
}

func TestLatestSignalsHandler_Success(t *testing.T) {
	repo := &mockSignalRepo{latest: []model.Signal{{ID: "sig-1", Symbol: "BTCUSD"}}}
	handler := LatestSignalsHandler(repo)

	req := httptest.NewRequest(http.MethodGet, "/signals?limit=5", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var signals []model.Signal
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &signals))
	assert.Len(t, signals, 1)
	assert.Equal(t, "sig-1", signals[0].ID)
}

func TestLatestSignalsHandler_InvalidLimit(t *testing.T) {
	handler := LatestSignalsHandler(&mockSignalRepo{})

	req := httptest.NewRequest(http.MethodGet, "/signals?limit=abc", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}
