// Package strategy defines trade direction, strategy exit parameters,
// risk-profile scaling and the simulated trade record.
package strategy

import (
	"fmt"
	"time"

	"stratprobe/internal/market"
)

// Direction is the side of a simulated position.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// SideSupport controls which directions a strategy may trade.
type SideSupport string

const (
	LongShort SideSupport = "long_short"
	LongOnly  SideSupport = "long_only"
	ShortOnly SideSupport = "short_only"
)

// ConditionFn evaluates an entry or exit signal at bar idx over the full
// series. Conditions must not mutate the series.
type ConditionFn func(bars []market.BarData, idx int) bool

// Def declares a probe strategy: signal conditions plus ATR-scaled
// mechanical exit parameters. A multiplier <= 0 disables that exit.
type Def struct {
	Name        string
	DisplayName string
	Sides       SideSupport

	EntryLong  []ConditionFn
	EntryShort []ConditionFn
	ExitLong   []ConditionFn
	ExitShort  []ConditionFn

	ATRStopMult     float64
	ATRTargetMult   float64
	TrailingATRMult float64
	TimeStopBars    int

	RequiredIndicators []string
}

// RiskProfile scales a strategy's exit parameters multiplicatively.
type RiskProfile struct {
	Name        string
	StopScale   float64
	TargetScale float64
	TrailScale  float64
	TimeScale   float64
}

var (
	RiskLow    = RiskProfile{Name: "low", StopScale: 1.0, TargetScale: 1.0, TrailScale: 1.0, TimeScale: 0.6}
	RiskMedium = RiskProfile{Name: "medium", StopScale: 1.5, TargetScale: 1.5, TrailScale: 1.5, TimeScale: 1.0}
	RiskHigh   = RiskProfile{Name: "high", StopScale: 2.0, TargetScale: 2.0, TrailScale: 2.0, TimeScale: 1.5}
)

// RiskProfileByName maps a profile name to its scaling set. Unknown names
// fall back to medium.
func RiskProfileByName(name string) RiskProfile {
	switch name {
	case "low":
		return RiskLow
	case "medium":
		return RiskMedium
	case "high":
		return RiskHigh
	default:
		return RiskMedium
	}
}

// Trade is one completed simulated trade produced by the probe runner.
type Trade struct {
	EntryTime      time.Time `json:"entry_time"`
	ExitTime       time.Time `json:"exit_time"`
	EntryPrice     float64   `json:"entry_price"`
	ExitPrice      float64   `json:"exit_price"`
	Direction      Direction `json:"direction"`
	PnLPct         float64   `json:"pnl_pct"`
	BarsHeld       int       `json:"bars_held"`
	MaxDrawdownPct float64   `json:"max_drawdown_pct"`
	MaxProfitPct   float64   `json:"max_profit_pct"`
	PnLStd         float64   `json:"pnl_std"`
	ExitReason     string    `json:"exit_reason"`
}

func (t Trade) String() string {
	return fmt.Sprintf("%s %s entry=%.4f exit=%.4f pnl=%.4f%% bars=%d reason=%s",
		t.Direction, t.EntryTime.Format("2006-01-02 15:04"),
		t.EntryPrice, t.ExitPrice, t.PnLPct*100, t.BarsHeld, t.ExitReason)
}
