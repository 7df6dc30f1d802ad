package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stratprobe/internal/market"
	"stratprobe/internal/strategy"
)

type stubSource struct {
	bars []market.BarData
	err  error
}

func (s *stubSource) GetBarData(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]market.BarData, error) {
	return s.bars, s.err
}

func validRequest() RunRequest {
	return RunRequest{
		Symbol:    "AAPL",
		Timeframe: "1Hour",
		Strategy:  "rsi_mean_reversion",
		Risk:      "medium",
		Start:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	}
}

func waitForStatus(t *testing.T, tracker *Tracker, id string, want RunStatus) Run {
	t.Helper()
	var run Run
	require.Eventually(t, func() bool {
		got, err := tracker.Get(id)
		if err != nil {
			return false
		}
		run = got
		return got.Status == want
	}, 2*time.Second, 5*time.Millisecond)
	return run
}

func TestSubmitRunCompletes(t *testing.T) {
	source := &stubSource{bars: buildSeries([]testBar{
		{100, 101, 99, 100},
		{100, 101, 99, 100},
		{100, 101, 99, 100},
	})}
	svc := NewService(ServiceConfig{Source: source, Tracker: NewTracker()})

	run, err := svc.SubmitRun(validRequest())
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, "rsi_mean_reversion", run.Strategy)
	assert.Equal(t, "medium", run.Risk)

	done := waitForStatus(t, svc.Tracker(), run.ID, RunCompleted)
	require.NotNil(t, done.FinishedAt)
	assert.Empty(t, done.Error)
	assert.Equal(t, done.Summary.TotalTrades, len(done.Trades))
}

func TestSubmitRunSourceFailure(t *testing.T) {
	source := &stubSource{err: errors.New("data service unreachable")}
	svc := NewService(ServiceConfig{Source: source, Tracker: NewTracker()})

	run, err := svc.SubmitRun(validRequest())
	require.NoError(t, err)

	failed := waitForStatus(t, svc.Tracker(), run.ID, RunFailed)
	assert.Contains(t, failed.Error, "data service unreachable")
	require.NotNil(t, failed.FinishedAt)
}

func TestSubmitRunUnknownStrategy(t *testing.T) {
	svc := NewService(ServiceConfig{Source: &stubSource{}, Tracker: NewTracker()})
	req := validRequest()
	req.Strategy = "no_such_strategy"
	_, err := svc.SubmitRun(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy")
}

func TestSubmitRunValidation(t *testing.T) {
	svc := NewService(ServiceConfig{Source: &stubSource{}, Tracker: NewTracker()})

	req := validRequest()
	req.Symbol = "  "
	_, err := svc.SubmitRun(req)
	assert.ErrorContains(t, err, "symbol")

	req = validRequest()
	req.Timeframe = ""
	_, err = svc.SubmitRun(req)
	assert.ErrorContains(t, err, "timeframe")

	req = validRequest()
	req.End = req.Start
	_, err = svc.SubmitRun(req)
	assert.ErrorContains(t, err, "end must be after start")
}

func TestSubmitRunUsesConfiguredDefaultRisk(t *testing.T) {
	svc := NewService(ServiceConfig{Source: &stubSource{}, Tracker: NewTracker(), DefaultRisk: "high"})
	req := validRequest()
	req.Risk = ""
	run, err := svc.SubmitRun(req)
	require.NoError(t, err)
	assert.Equal(t, "high", run.Risk)

	// An explicit risk on the request still wins over the default.
	req = validRequest()
	req.Risk = "low"
	run, err = svc.SubmitRun(req)
	require.NoError(t, err)
	assert.Equal(t, "low", run.Risk)
}

func TestSubmitRunDefaultRiskUnsetIsMedium(t *testing.T) {
	svc := NewService(ServiceConfig{Source: &stubSource{}, Tracker: NewTracker()})
	req := validRequest()
	req.Risk = ""
	run, err := svc.SubmitRun(req)
	require.NoError(t, err)
	assert.Equal(t, "medium", run.Risk)
}

func TestSubmitRunUnknownRiskFallsBackToMedium(t *testing.T) {
	svc := NewService(ServiceConfig{Source: &stubSource{}, Tracker: NewTracker()})
	req := validRequest()
	req.Risk = "silly"
	run, err := svc.SubmitRun(req)
	require.NoError(t, err)
	assert.Equal(t, "medium", run.Risk)
}

func TestTrackerGetMissing(t *testing.T) {
	tracker := NewTracker()
	_, err := tracker.Get("nope")
	assert.Error(t, err)
}

func TestTrackerListNewestFirst(t *testing.T) {
	tracker := NewTracker()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tracker.insert(&Run{ID: "a", SubmittedAt: base})
	tracker.insert(&Run{ID: "b", SubmittedAt: base.Add(time.Minute)})
	tracker.insert(&Run{ID: "c", SubmittedAt: base.Add(2 * time.Minute)})

	runs := tracker.List()
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	assert.Equal(t, "a", runs[2].ID)
}

func TestTrackerGetReturnsCopy(t *testing.T) {
	tracker := NewTracker()
	tracker.insert(&Run{ID: "x", Trades: []strategy.Trade{{ExitReason: "stop_loss"}}})

	got, err := tracker.Get("x")
	require.NoError(t, err)
	got.Trades[0].ExitReason = "mutated"
	got.Status = RunFailed

	again, err := tracker.Get("x")
	require.NoError(t, err)
	assert.Equal(t, "stop_loss", again.Trades[0].ExitReason)
	assert.NotEqual(t, RunFailed, again.Status)
}

func TestSummarize(t *testing.T) {
	trades := []strategy.Trade{
		{PnLPct: 0.05},
		{PnLPct: -0.02},
		{PnLPct: 0.03},
	}
	s := summarize(trades)
	assert.Equal(t, 3, s.TotalTrades)
	assert.Equal(t, 2, s.Wins)
	assert.InDelta(t, 2.0/3.0, s.WinRate, 1e-9)
	assert.InDelta(t, 0.06, s.TotalPnLPct, 1e-9)
	assert.InDelta(t, 0.02, s.AvgPnLPct, 1e-9)
}

func TestSummarizeEmpty(t *testing.T) {
	s := summarize(nil)
	assert.Zero(t, s.TotalTrades)
	assert.Zero(t, s.WinRate)
	assert.Zero(t, s.AvgPnLPct)
}
