package exit

import (
	"math"

	"github.com/shopspring/decimal"
)

// Decimal comparisons keep level-crossing checks stable when a bar extreme
// lands exactly on a computed level.

func decFromFloat(val float64) decimal.Decimal {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(val)
}

func decimalCompare(a, b float64) int {
	return decFromFloat(a).Cmp(decFromFloat(b))
}

func decimalLTE(a, b float64) bool { return decimalCompare(a, b) <= 0 }
func decimalGTE(a, b float64) bool { return decimalCompare(a, b) >= 0 }
func decimalLT(a, b float64) bool  { return decimalCompare(a, b) < 0 }
func decimalGT(a, b float64) bool  { return decimalCompare(a, b) > 0 }
