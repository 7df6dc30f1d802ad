// Package exit implements the per-trade exit-condition state machine.
//
// One Engine is constructed per simulated position. The driver calls Check
// once per bar in strict timestamp order until a non-empty reason comes
// back, after which the engine must not be called again for that trade.
// There is no internal synchronisation; distinct instances are independent.
package exit

import (
	"math"

	"stratprobe/internal/strategy"
)

// Exit reasons reported by Check, in evaluation priority order.
const (
	ReasonStopLoss     = "stop_loss"
	ReasonTarget       = "target"
	ReasonTrailingStop = "trailing_stop"
	ReasonTimeStop     = "time_stop"
)

// Engine tracks one open position and decides when it should be closed.
type Engine struct {
	entryPrice float64
	direction  strategy.Direction
	atr        float64
	profile    strategy.RiskProfile

	// Risk-scaled thresholds, fixed at construction. Zero means inactive.
	stopDist   float64
	targetDist float64
	trailDist  float64
	timeLimit  int

	barsHeld   int
	bestPrice  float64
	worstPrice float64
	trailLevel float64
	hasTrail   bool
	barPnLs    []float64
}

// NewEngine builds an Engine for a trade entered at entryPrice. Thresholds
// derive from the strategy's ATR multipliers scaled by the risk profile;
// any multiplier <= 0 leaves that exit permanently inactive. The time limit
// truncates rather than rounds, matching the probe semantics.
func NewEngine(entryPrice float64, direction strategy.Direction, atrAtEntry float64, def *strategy.Def, profile strategy.RiskProfile) *Engine {
	e := &Engine{
		entryPrice: entryPrice,
		direction:  direction,
		atr:        atrAtEntry,
		profile:    profile,
		bestPrice:  entryPrice,
		worstPrice: entryPrice,
		barPnLs:    make([]float64, 0, 64),
	}
	if def.ATRStopMult > 0 {
		e.stopDist = def.ATRStopMult * profile.StopScale * atrAtEntry
	}
	if def.ATRTargetMult > 0 {
		e.targetDist = def.ATRTargetMult * profile.TargetScale * atrAtEntry
	}
	if def.TrailingATRMult > 0 {
		e.trailDist = def.TrailingATRMult * profile.TrailScale * atrAtEntry
		e.hasTrail = true
		if direction == strategy.Long {
			e.trailLevel = entryPrice - e.trailDist
		} else {
			e.trailLevel = entryPrice + e.trailDist
		}
	}
	if def.TimeStopBars > 0 {
		e.timeLimit = int(float64(def.TimeStopBars) * profile.TimeScale)
	}
	return e
}

// Check evaluates the exit conditions against one bar and returns the first
// triggered reason, or "" when the position stays open. Excursion and P&L
// tracking advance on every call, whatever the outcome.
func (e *Engine) Check(high, low, closePrice float64) string {
	e.barsHeld++

	if e.direction == strategy.Long {
		e.bestPrice = math.Max(e.bestPrice, high)
		e.worstPrice = math.Min(e.worstPrice, low)
	} else {
		e.bestPrice = math.Min(e.bestPrice, low)
		e.worstPrice = math.Max(e.worstPrice, high)
	}

	var barPnL float64
	if e.direction == strategy.Long {
		barPnL = (closePrice - e.entryPrice) / e.entryPrice
	} else {
		barPnL = (e.entryPrice - closePrice) / e.entryPrice
	}
	e.barPnLs = append(e.barPnLs, barPnL)

	// 1. Fixed stop loss. Takes precedence over the target even when both
	// levels are crossed on the same bar.
	if e.stopDist > 0 {
		if e.direction == strategy.Long {
			if decimalLTE(low, e.entryPrice-e.stopDist) {
				return ReasonStopLoss
			}
		} else {
			if decimalGTE(high, e.entryPrice+e.stopDist) {
				return ReasonStopLoss
			}
		}
	}

	// 2. Fixed target.
	if e.targetDist > 0 {
		if e.direction == strategy.Long {
			if decimalGTE(high, e.entryPrice+e.targetDist) {
				return ReasonTarget
			}
		} else {
			if decimalLTE(low, e.entryPrice-e.targetDist) {
				return ReasonTarget
			}
		}
	}

	// 3. Trailing stop. The level ratchets in the position's favor only,
	// then the bar's adverse extreme is tested against it.
	if e.hasTrail {
		if e.direction == strategy.Long {
			if candidate := high - e.trailDist; decimalGT(candidate, e.trailLevel) {
				e.trailLevel = candidate
			}
			if decimalLTE(low, e.trailLevel) {
				return ReasonTrailingStop
			}
		} else {
			if candidate := low + e.trailDist; decimalLT(candidate, e.trailLevel) {
				e.trailLevel = candidate
			}
			if decimalGTE(high, e.trailLevel) {
				return ReasonTrailingStop
			}
		}
	}

	// 4. Time stop.
	if e.timeLimit > 0 && e.barsHeld >= e.timeLimit {
		return ReasonTimeStop
	}

	return ""
}

// MaxDrawdownPct is the maximum adverse excursion as a fraction of entry.
func (e *Engine) MaxDrawdownPct() float64 {
	if e.direction == strategy.Long {
		return (e.entryPrice - e.worstPrice) / e.entryPrice
	}
	return (e.worstPrice - e.entryPrice) / e.entryPrice
}

// MaxProfitPct is the maximum favorable excursion as a fraction of entry.
func (e *Engine) MaxProfitPct() float64 {
	if e.direction == strategy.Long {
		return (e.bestPrice - e.entryPrice) / e.entryPrice
	}
	return (e.entryPrice - e.bestPrice) / e.entryPrice
}

// PnLStd is the population standard deviation (divisor N) of the per-bar
// fractional P&L sequence. Fewer than two recorded bars yields 0.
func (e *Engine) PnLStd() float64 {
	if len(e.barPnLs) < 2 {
		return 0.0
	}
	sum := 0.0
	for _, v := range e.barPnLs {
		sum += v
	}
	mean := sum / float64(len(e.barPnLs))
	varSum := 0.0
	for _, v := range e.barPnLs {
		diff := v - mean
		varSum += diff * diff
	}
	return math.Sqrt(varSum / float64(len(e.barPnLs)))
}

// TrailingStopLevel is the current ratcheted trail level. Meaningless when
// the trailing exit is inactive.
func (e *Engine) TrailingStopLevel() float64 { return e.trailLevel }

func (e *Engine) BarsHeld() int           { return e.barsHeld }
func (e *Engine) ATR() float64            { return e.atr }
func (e *Engine) StopDistance() float64   { return e.stopDist }
func (e *Engine) TargetDistance() float64 { return e.targetDist }
func (e *Engine) TrailDistance() float64  { return e.trailDist }
func (e *Engine) TimeLimit() int          { return e.timeLimit }

// ResolveExitPrice maps an exit reason to a fill price: stops and targets
// resolve to their fixed levels, trailing stops to the ratcheted level, and
// everything else (signal exits, time stops, unknown reasons) to the bar's
// close.
func ResolveExitPrice(reason string, direction strategy.Direction, entryPrice float64, e *Engine, closePrice float64) float64 {
	switch reason {
	case ReasonStopLoss:
		if e.stopDist > 0 {
			if direction == strategy.Long {
				return entryPrice - e.stopDist
			}
			return entryPrice + e.stopDist
		}
	case ReasonTarget:
		if e.targetDist > 0 {
			if direction == strategy.Long {
				return entryPrice + e.targetDist
			}
			return entryPrice - e.targetDist
		}
	case ReasonTrailingStop:
		if e.hasTrail {
			return e.trailLevel
		}
	}
	return closePrice
}
