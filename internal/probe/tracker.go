package probe

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"stratprobe/internal/strategy"
)

// RunStatus is the lifecycle state of a probe run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one probe execution: a strategy applied to a symbol/timeframe
// range under a risk profile.
type Run struct {
	ID          string           `json:"id"`
	Symbol      string           `json:"symbol"`
	Timeframe   string           `json:"timeframe"`
	Strategy    string           `json:"strategy"`
	Risk        string           `json:"risk"`
	Start       time.Time        `json:"start"`
	End         time.Time        `json:"end"`
	Status      RunStatus        `json:"status"`
	SubmittedAt time.Time        `json:"submitted_at"`
	FinishedAt  *time.Time       `json:"finished_at,omitempty"`
	Error       string           `json:"error,omitempty"`
	Trades      []strategy.Trade `json:"trades,omitempty"`
	Summary     Summary          `json:"summary"`
}

// Summary aggregates a run's trades.
type Summary struct {
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	WinRate     float64 `json:"win_rate"`
	TotalPnLPct float64 `json:"total_pnl_pct"`
	AvgPnLPct   float64 `json:"avg_pnl_pct"`
}

func summarize(trades []strategy.Trade) Summary {
	s := Summary{TotalTrades: len(trades)}
	if len(trades) == 0 {
		return s
	}
	for _, t := range trades {
		s.TotalPnLPct += t.PnLPct
		if t.PnLPct > 0 {
			s.Wins++
		}
	}
	s.WinRate = float64(s.Wins) / float64(len(trades))
	s.AvgPnLPct = s.TotalPnLPct / float64(len(trades))
	return s
}

// Tracker is the in-memory registry of probe runs. It holds no state
// beyond process lifetime.
type Tracker struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

func NewTracker() *Tracker {
	return &Tracker{runs: make(map[string]*Run)}
}

func (t *Tracker) insert(run *Run) {
	t.mu.Lock()
	t.runs[run.ID] = run
	t.mu.Unlock()
}

// update applies fn to the stored run under the write lock.
func (t *Tracker) update(id string, fn func(*Run)) {
	t.mu.Lock()
	if run, ok := t.runs[id]; ok {
		fn(run)
	}
	t.mu.Unlock()
}

// Get returns a copy of the run, so callers can't race the tracker.
func (t *Tracker) Get(id string) (Run, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	run, ok := t.runs[id]
	if !ok {
		return Run{}, fmt.Errorf("run %s not found", id)
	}
	return cloneRun(run), nil
}

// List returns copies of all runs, newest submission first.
func (t *Tracker) List() []Run {
	t.mu.RLock()
	out := make([]Run, 0, len(t.runs))
	for _, run := range t.runs {
		out = append(out, cloneRun(run))
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return out
}

func cloneRun(run *Run) Run {
	copied := *run
	if run.Trades != nil {
		copied.Trades = append([]strategy.Trade(nil), run.Trades...)
	}
	if run.FinishedAt != nil {
		finished := *run.FinishedAt
		copied.FinishedAt = &finished
	}
	return copied
}
