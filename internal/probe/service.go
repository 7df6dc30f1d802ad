package probe

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stratprobe/internal/logger"
	"stratprobe/internal/market"
	"stratprobe/internal/strategy"

	"github.com/google/uuid"
)

// DataSource supplies merged bar data for a probe run. Implemented by the
// marketdata client.
type DataSource interface {
	GetBarData(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]market.BarData, error)
}

// Service submits probe runs and executes them asynchronously.
type Service struct {
	source      DataSource
	tracker     *Tracker
	atrColumn   string
	atrPeriod   int
	defaultRisk string
}

// ServiceConfig describes the service's dependencies and run defaults.
// DefaultRisk is applied to submissions that leave the risk field empty.
type ServiceConfig struct {
	Source      DataSource
	Tracker     *Tracker
	ATRColumn   string
	ATRPeriod   int
	DefaultRisk string
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.ATRColumn == "" {
		cfg.ATRColumn = "atr_14"
	}
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = 14
	}
	if cfg.DefaultRisk == "" {
		cfg.DefaultRisk = "medium"
	}
	return &Service{
		source:      cfg.Source,
		tracker:     cfg.Tracker,
		atrColumn:   cfg.ATRColumn,
		atrPeriod:   cfg.ATRPeriod,
		defaultRisk: cfg.DefaultRisk,
	}
}

// Tracker exposes the run registry for read access.
func (s *Service) Tracker() *Tracker { return s.tracker }

// RunRequest describes one probe submission.
type RunRequest struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"timeframe"`
	Strategy  string    `json:"strategy"`
	Risk      string    `json:"risk"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

func (r RunRequest) validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	if strings.TrimSpace(r.Timeframe) == "" {
		return fmt.Errorf("timeframe is required")
	}
	if !r.End.After(r.Start) {
		return fmt.Errorf("end must be after start")
	}
	return nil
}

// SubmitRun validates the request, registers a pending run and starts its
// execution on a fresh goroutine. The returned Run snapshot carries the ID
// used to poll progress.
func (s *Service) SubmitRun(req RunRequest) (Run, error) {
	if err := req.validate(); err != nil {
		return Run{}, err
	}
	def := strategy.ByName(req.Strategy)
	if def == nil {
		return Run{}, fmt.Errorf("unknown strategy %q", req.Strategy)
	}
	risk := req.Risk
	if strings.TrimSpace(risk) == "" {
		risk = s.defaultRisk
	}
	profile := strategy.RiskProfileByName(risk)

	run := &Run{
		ID:          uuid.NewString(),
		Symbol:      req.Symbol,
		Timeframe:   req.Timeframe,
		Strategy:    def.Name,
		Risk:        profile.Name,
		Start:       req.Start,
		End:         req.End,
		Status:      RunPending,
		SubmittedAt: time.Now(),
	}
	s.tracker.insert(run)
	go s.execute(run.ID, def, profile, req)
	return s.tracker.Get(run.ID)
}

// execute owns the run lifecycle: fetch, simulate, record. Runs detach from
// the submitting request's context; the per-request HTTP timeout still
// bounds each fetch.
func (s *Service) execute(runID string, def *strategy.Def, profile strategy.RiskProfile, req RunRequest) {
	s.tracker.update(runID, func(r *Run) { r.Status = RunRunning })

	bars, err := s.source.GetBarData(context.Background(), req.Symbol, req.Timeframe, req.Start, req.End)
	if err != nil {
		s.finish(runID, nil, fmt.Errorf("fetching bar data: %w", err))
		return
	}
	runner := NewRunner(def, profile, s.atrColumn, s.atrPeriod)
	trades := runner.Run(bars)
	s.finish(runID, trades, nil)
}

func (s *Service) finish(runID string, trades []strategy.Trade, err error) {
	now := time.Now()
	s.tracker.update(runID, func(r *Run) {
		r.FinishedAt = &now
		if err != nil {
			r.Status = RunFailed
			r.Error = err.Error()
			logger.Errorf("[probe] run %s failed: %v", runID, err)
			return
		}
		r.Status = RunCompleted
		r.Trades = trades
		r.Summary = summarize(trades)
		logger.Infof("[probe] run %s completed with %d trades", runID, len(trades))
	})
}
