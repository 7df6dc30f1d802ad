package strategy

import (
	"sort"
	"sync"
)

var (
	regMu      sync.RWMutex
	defsByName = make(map[string]*Def)
)

// Register adds or replaces a strategy definition.
func Register(def *Def) {
	regMu.Lock()
	defsByName[def.Name] = def
	regMu.Unlock()
}

// ByName returns the registered strategy with that name, or nil.
func ByName(name string) *Def {
	regMu.RLock()
	defer regMu.RUnlock()
	return defsByName[name]
}

// All returns every registered strategy sorted by name.
func All() []*Def {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]*Def, 0, len(defsByName))
	for _, def := range defsByName {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func init() {
	for _, def := range builtins() {
		Register(def)
	}
}

// builtins are the stock probe strategies. Entries fire on the listed
// indicator columns; mechanical exits come from the ATR multipliers.
func builtins() []*Def {
	return []*Def{
		{
			Name:        "ema_trend_follow",
			DisplayName: "EMA Trend Follow",
			Sides:       LongShort,
			EntryLong:   []ConditionFn{CrossesAbove("ema_20", ColRef("ema_50"))},
			EntryShort:  []ConditionFn{CrossesBelow("ema_20", ColRef("ema_50"))},
			ExitLong:    []ConditionFn{CrossesBelow("ema_20", ColRef("ema_50"))},
			ExitShort:   []ConditionFn{CrossesAbove("ema_20", ColRef("ema_50"))},
			ATRStopMult: 2.0, TrailingATRMult: 2.5,
			RequiredIndicators: []string{"ema_20", "ema_50", "atr_14"},
		},
		{
			Name:        "rsi_mean_reversion",
			DisplayName: "RSI Mean Reversion",
			Sides:       LongShort,
			EntryLong:   []ConditionFn{CrossesAbove("rsi_14", NumRef(30))},
			EntryShort:  []ConditionFn{CrossesBelow("rsi_14", NumRef(70))},
			ExitLong:    []ConditionFn{Above("rsi_14", NumRef(55))},
			ExitShort:   []ConditionFn{Below("rsi_14", NumRef(45))},
			ATRStopMult: 1.5, ATRTargetMult: 2.0, TimeStopBars: 20,
			RequiredIndicators: []string{"rsi_14", "atr_14"},
		},
		{
			Name:        "sma_breakout",
			DisplayName: "SMA Breakout",
			Sides:       LongOnly,
			EntryLong:   []ConditionFn{CrossesAbove("close", ColRef("sma_200"))},
			ATRStopMult: 2.0, ATRTargetMult: 3.0, TimeStopBars: 40,
			RequiredIndicators: []string{"sma_200", "atr_14"},
		},
	}
}
