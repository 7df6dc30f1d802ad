// Package market defines the bar and indicator types shared by the data
// client and the probe engine.
package market

import (
	"math"
	"time"
)

// Bar is one OHLCV observation for a fixed timeframe interval. Bars are
// immutable once constructed and ordered timestamp-ascending within a series.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// IndicatorRow holds the computed indicator values aligned to one bar,
// keyed by column name. NaN and infinite values are filtered at ingestion,
// so absence of a key means "missing", never "zero".
type IndicatorRow map[string]float64

// Get returns the value for key. The second return is false when the key is
// absent or the stored value is not finite.
func (r IndicatorRow) Get(key string) (float64, bool) {
	v, ok := r[key]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return math.NaN(), false
	}
	return v, true
}

// BarData pairs a Bar with its indicator row. The row may be empty when
// indicators are unavailable for that timestamp, but it is never nil.
type BarData struct {
	Bar        Bar          `json:"bar"`
	Indicators IndicatorRow `json:"indicators"`
}
