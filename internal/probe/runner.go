// Package probe runs strategy definitions bar-by-bar over historical data
// and records the resulting simulated trades.
package probe

import (
	"stratprobe/internal/logger"
	"stratprobe/internal/market"
	"stratprobe/internal/strategy"
	"stratprobe/internal/strategy/exit"
)

// Runner executes one strategy definition across a bar series.
type Runner struct {
	def       *strategy.Def
	profile   strategy.RiskProfile
	atrColumn string
	atrPeriod int
}

// NewRunner builds a Runner for the given strategy and risk profile.
// atrColumn names the indicator column holding ATR at entry; atrPeriod is
// the fallback computation window when the column is absent.
func NewRunner(def *strategy.Def, profile strategy.RiskProfile, atrColumn string, atrPeriod int) *Runner {
	return &Runner{def: def, profile: profile, atrColumn: atrColumn, atrPeriod: atrPeriod}
}

// Run walks the series with fill-on-next-bar semantics: a signal on bar i
// enters at the open of bar i+1. At most one position is open at a time.
// A position still open when the data runs out is discarded.
func (r *Runner) Run(bars []market.BarData) []strategy.Trade {
	if len(bars) == 0 {
		logger.Warnf("[probe] empty bar series for strategy %s", r.def.Name)
		return nil
	}

	atr := ATRSeries(bars, r.atrColumn, r.atrPeriod)
	trades := make([]strategy.Trade, 0, 32)

	var (
		hasOpenTrade  bool
		position      strategy.Direction
		engine        *exit.Engine
		entryBarIdx   int
		entryPrice    float64
		pendingSignal strategy.Direction
	)

	for i := 0; i < len(bars); i++ {
		bar := bars[i].Bar

		if pendingSignal != "" && !hasOpenTrade {
			if atr[i] > 0 {
				position = pendingSignal
				hasOpenTrade = true
				entryPrice = bar.Open
				entryBarIdx = i
				engine = exit.NewEngine(entryPrice, position, atr[i], r.def, r.profile)
				logger.Debugf("[probe] %s entered %s at %.4f (bar %d, atr %.4f)",
					r.def.Name, position, entryPrice, i, atr[i])
			}
			pendingSignal = ""
			// No exit checks on the entry bar.
			continue
		}

		if hasOpenTrade && engine != nil {
			reason := r.signalExit(bars, i, position)
			if reason == "" {
				reason = engine.Check(bar.High, bar.Low, bar.Close)
			}
			if reason != "" {
				exitPrice := exit.ResolveExitPrice(reason, position, entryPrice, engine, bar.Close)
				trades = append(trades, strategy.Trade{
					EntryTime:      bars[entryBarIdx].Bar.Timestamp,
					ExitTime:       bar.Timestamp,
					EntryPrice:     entryPrice,
					ExitPrice:      exitPrice,
					Direction:      position,
					PnLPct:         pnlPct(entryPrice, exitPrice, position),
					BarsHeld:       engine.BarsHeld(),
					MaxDrawdownPct: engine.MaxDrawdownPct(),
					MaxProfitPct:   engine.MaxProfitPct(),
					PnLStd:         engine.PnLStd(),
					ExitReason:     reason,
				})
				hasOpenTrade = false
				position = ""
				engine = nil
				entryBarIdx = 0
				entryPrice = 0
			}
		}

		if !hasOpenTrade && i < len(bars)-1 {
			if r.def.Sides == strategy.LongShort || r.def.Sides == strategy.LongOnly {
				if allConditions(r.def.EntryLong, bars, i) {
					pendingSignal = strategy.Long
					continue
				}
			}
			if r.def.Sides == strategy.LongShort || r.def.Sides == strategy.ShortOnly {
				if allConditions(r.def.EntryShort, bars, i) {
					pendingSignal = strategy.Short
					continue
				}
			}
		}
	}

	if hasOpenTrade {
		logger.Debugf("[probe] discarding open %s trade at end of data", position)
	}
	return trades
}

// signalExit checks the strategy's signal-based exits, which take
// precedence over mechanical exits for the same bar.
func (r *Runner) signalExit(bars []market.BarData, idx int, position strategy.Direction) string {
	conds := r.def.ExitLong
	if position == strategy.Short {
		conds = r.def.ExitShort
	}
	for _, cond := range conds {
		if safeCall(cond, bars, idx) {
			return "signal_exit"
		}
	}
	return ""
}

func allConditions(conds []strategy.ConditionFn, bars []market.BarData, idx int) bool {
	if len(conds) == 0 {
		return false
	}
	for _, cond := range conds {
		if !safeCall(cond, bars, idx) {
			return false
		}
	}
	return true
}

func safeCall(cond strategy.ConditionFn, bars []market.BarData, idx int) (result bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warnf("[probe] condition panicked at bar %d: %v", idx, r)
			result = false
		}
	}()
	return cond(bars, idx)
}

func pnlPct(entryPrice, exitPrice float64, direction strategy.Direction) float64 {
	if direction == strategy.Long {
		return (exitPrice - entryPrice) / entryPrice
	}
	return (entryPrice - exitPrice) / entryPrice
}
