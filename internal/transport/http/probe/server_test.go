package probehttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"stratprobe/internal/market"
	"stratprobe/internal/probe"
)

type fixedSource struct {
	bars []market.BarData
}

func (f *fixedSource) GetBarData(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]market.BarData, error) {
	return f.bars, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	svc := probe.NewService(probe.ServiceConfig{Source: &fixedSource{}, Tracker: probe.NewTracker()})
	srv, err := NewServer(Config{Svc: svc})
	require.NoError(t, err)
	return srv
}

func doJSON(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewServerRequiresService(t *testing.T) {
	_, err := NewServer(Config{})
	assert.Error(t, err)
}

func TestStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(srv, http.MethodGet, "/api/probe/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, "ok", gjson.Get(body, "status").String())
	assert.Greater(t, gjson.Get(body, "strategies").Int(), int64(0))
}

func TestStrategiesEndpoint(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(srv, http.MethodGet, "/api/probe/strategies", "")
	require.Equal(t, http.StatusOK, rec.Code)

	names := gjson.Get(rec.Body.String(), "strategies.#.name")
	found := map[string]bool{}
	for _, n := range names.Array() {
		found[n.String()] = true
	}
	assert.True(t, found["ema_trend_follow"])
	assert.True(t, found["rsi_mean_reversion"])
	assert.True(t, found["sma_breakout"])
}

func TestRunSubmitAccepted(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(srv, http.MethodPost, "/api/probe/runs", `{
		"symbol": "AAPL",
		"timeframe": "1Hour",
		"strategy": "rsi_mean_reversion",
		"risk": "high",
		"start": "2024-01-01T00:00:00Z",
		"end": "2024-02-01T00:00:00Z"
	}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	body := rec.Body.String()
	id := gjson.Get(body, "run.id").String()
	assert.NotEmpty(t, id)
	assert.Equal(t, "high", gjson.Get(body, "run.risk").String())

	// The accepted run must be visible on the list and detail endpoints.
	listRec := doJSON(srv, http.MethodGet, "/api/probe/runs", "")
	require.Equal(t, http.StatusOK, listRec.Code)
	assert.Contains(t, listRec.Body.String(), id)

	detailRec := doJSON(srv, http.MethodGet, "/api/probe/runs/"+id, "")
	require.Equal(t, http.StatusOK, detailRec.Code)
	assert.Equal(t, id, gjson.Get(detailRec.Body.String(), "run.id").String())
}

func TestRunSubmitMissingFields(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(srv, http.MethodPost, "/api/probe/runs", `{"symbol": "AAPL"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunSubmitBadTimestamps(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(srv, http.MethodPost, "/api/probe/runs", `{
		"symbol": "AAPL",
		"timeframe": "1Hour",
		"strategy": "rsi_mean_reversion",
		"start": "tomorrow",
		"end": "2024-02-01T00:00:00Z"
	}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "RFC3339")
}

func TestRunSubmitUnknownStrategy(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(srv, http.MethodPost, "/api/probe/runs", `{
		"symbol": "AAPL",
		"timeframe": "1Hour",
		"strategy": "does_not_exist",
		"start": "2024-01-01T00:00:00Z",
		"end": "2024-02-01T00:00:00Z"
	}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown strategy")
}

func TestRunDetailNotFound(t *testing.T) {
	srv := newTestServer(t)
	rec := doJSON(srv, http.MethodGet, "/api/probe/runs/missing-id", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartShutsDownOnCancel(t *testing.T) {
	svc := probe.NewService(probe.ServiceConfig{Source: &fixedSource{}, Tracker: probe.NewTracker()})
	srv, err := NewServer(Config{Addr: "127.0.0.1:0", Svc: svc})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down after cancel")
	}
}
