package probe

import (
	"stratprobe/internal/market"

	talib "github.com/markcheno/go-talib"
)

// ATRSeries returns one ATR value per bar. Values come from the named
// indicator column when the row carries it; gaps are filled from a
// talib-computed ATR over the bar series itself. Bars with neither (for
// example the warmup prefix of a short series) get 0.
func ATRSeries(bars []market.BarData, column string, period int) []float64 {
	out := make([]float64, len(bars))
	missing := false
	for i, bd := range bars {
		if v, ok := bd.Indicators.Get(column); ok && v > 0 {
			out[i] = v
		} else {
			missing = true
		}
	}
	if !missing || len(bars) <= period {
		return out
	}

	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	for i, bd := range bars {
		highs[i] = bd.Bar.High
		lows[i] = bd.Bar.Low
		closes[i] = bd.Bar.Close
	}
	computed := talib.Atr(highs, lows, closes, period)
	for i := range out {
		if out[i] <= 0 && i < len(computed) && computed[i] > 0 {
			out[i] = computed[i]
		}
	}
	return out
}
