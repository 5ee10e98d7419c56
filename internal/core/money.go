// Package core provides the cooperative's domain model: money and date
// helpers, the amortization engine and the pure ledger aggregation.
//
// All amounts are plain float64 values rounded to whole cents at every
// computation point. Rounding goes through shopspring/decimal so that the
// half-up behavior is exact regardless of binary float artifacts.
package core

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// CentEpsilon is the tolerance used when deciding that an amount is fully
// settled. Anything within one cent counts as zero.
const CentEpsilon = 0.01

// RoundCents rounds an amount to two decimals, half-up.
//
// Examples:
//
//	RoundCents(10.004) -> 10.00
//	RoundCents(10.005) -> 10.01
func RoundCents(x float64) float64 {
	v, _ := decimal.NewFromFloat(x).Round(2).Float64()
	return v
}

// CeilCents rounds an amount up to the next cent. This is used only for the
// quoted monthly payment; every other rounding in the system is half-up.
func CeilCents(x float64) float64 {
	v, _ := decimal.NewFromFloat(x).RoundCeil(2).Float64()
	return v
}

// ApproxZero reports whether an amount is within one cent of zero.
func ApproxZero(x float64) bool {
	return math.Abs(x) <= CentEpsilon
}

// DateLayout is the wire format for all stored dates.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD date string in UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// FormatDate renders a time as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// AddMonths performs calendar month addition with Go's native
// normalization: adding one month to January 31st lands in early March
// rather than clamping to February's last day. Due dates therefore shift for
// loans started on the 29th-31st.
func AddMonths(t time.Time, n int) time.Time {
	return t.AddDate(0, n, 0)
}
