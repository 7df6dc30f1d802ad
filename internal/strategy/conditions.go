package strategy

import (
	"math"

	"stratprobe/internal/market"
)

// Ref points a condition at either an indicator/price column or a fixed
// numeric value.
type Ref struct {
	Col string
	Val float64
}

func ColRef(col string) Ref  { return Ref{Col: col} }
func NumRef(val float64) Ref { return Ref{Val: val} }

func resolve(bars []market.BarData, idx int, ref Ref) (float64, bool) {
	if ref.Col != "" {
		return columnValue(bars, idx, ref.Col)
	}
	return ref.Val, true
}

// columnValue reads a price field or indicator column at bar idx.
func columnValue(bars []market.BarData, idx int, col string) (float64, bool) {
	if idx < 0 || idx >= len(bars) {
		return math.NaN(), false
	}
	switch col {
	case "open":
		return bars[idx].Bar.Open, true
	case "high":
		return bars[idx].Bar.High, true
	case "low":
		return bars[idx].Bar.Low, true
	case "close":
		return bars[idx].Bar.Close, true
	case "volume":
		return bars[idx].Bar.Volume, true
	}
	return bars[idx].Indicators.Get(col)
}

// CrossesAbove fires when col moves from at-or-below ref to above it.
func CrossesAbove(col string, ref Ref) ConditionFn {
	return func(bars []market.BarData, idx int) bool {
		if idx < 1 {
			return false
		}
		curr, ok := columnValue(bars, idx, col)
		if !ok {
			return false
		}
		prev, ok := columnValue(bars, idx-1, col)
		if !ok {
			return false
		}
		currRef, ok := resolve(bars, idx, ref)
		if !ok {
			return false
		}
		prevRef, ok := resolve(bars, idx-1, ref)
		if !ok {
			return false
		}
		return prev <= prevRef && curr > currRef
	}
}

// CrossesBelow fires when col moves from at-or-above ref to below it.
func CrossesBelow(col string, ref Ref) ConditionFn {
	return func(bars []market.BarData, idx int) bool {
		if idx < 1 {
			return false
		}
		curr, ok := columnValue(bars, idx, col)
		if !ok {
			return false
		}
		prev, ok := columnValue(bars, idx-1, col)
		if !ok {
			return false
		}
		currRef, ok := resolve(bars, idx, ref)
		if !ok {
			return false
		}
		prevRef, ok := resolve(bars, idx-1, ref)
		if !ok {
			return false
		}
		return prev >= prevRef && curr < currRef
	}
}

// Above is true when col exceeds ref at the current bar.
func Above(col string, ref Ref) ConditionFn {
	return func(bars []market.BarData, idx int) bool {
		v, ok := columnValue(bars, idx, col)
		if !ok {
			return false
		}
		r, ok := resolve(bars, idx, ref)
		if !ok {
			return false
		}
		return v > r
	}
}

// Below is true when col is under ref at the current bar.
func Below(col string, ref Ref) ConditionFn {
	return func(bars []market.BarData, idx int) bool {
		v, ok := columnValue(bars, idx, col)
		if !ok {
			return false
		}
		r, ok := resolve(bars, idx, ref)
		if !ok {
			return false
		}
		return v < r
	}
}
