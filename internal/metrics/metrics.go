package metrics

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"stockpulse/internal/market"
)

// Window sizes, counted in trading days. The upstream daily series carries
// trading days only, so no further calendar filtering is applied.
const (
	ShortWindow    = 20
	LongWindow     = 50
	TrailingWindow = 22 // calendar-month proxy for returns and volatility
)

// Compute derives a metric snapshot from a validated price series. It is a
// pure function: identical inputs (including the at timestamp) produce
// identical snapshots. The series must already be ordered; malformed input is
// rejected with market.ErrInvalidSeries, never repaired.
func Compute(symbol string, series market.PriceSeries, at time.Time) (market.Snapshot, error) {
	if len(series) == 0 {
		return market.Snapshot{}, fmt.Errorf("%w: empty series", market.ErrInvalidSeries)
	}
	if err := series.Validate(); err != nil {
		return market.Snapshot{}, err
	}
	if last := series.Last().Date; at.Before(last) {
		return market.Snapshot{}, fmt.Errorf("%w: computation time %s precedes series end %s",
			market.ErrInvalidSeries, at.Format(time.RFC3339), last.Format(market.DateLayout))
	}

	closes := make([]decimal.Decimal, len(series))
	for i, p := range series {
		closes[i] = p.Close
	}

	snap := market.Snapshot{
		Symbol:      symbol,
		ComputedAt:  at,
		LatestClose: closes[len(closes)-1],
		MovingAvg20: movingAverage(closes, ShortWindow),
		MovingAvg50: movingAverage(closes, LongWindow),
	}

	snap.DailyChange, snap.DailyChangePct = dailyChange(closes)
	snap.MonthlyReturn = trailingReturn(closes, TrailingWindow)
	snap.Volatility = volatility(closes, TrailingWindow)

	return snap, nil
}

// movingAverage is the arithmetic mean of the last n closes, nil when the
// series is shorter than n.
func movingAverage(closes []decimal.Decimal, n int) *decimal.Decimal {
	if len(closes) < n {
		return nil
	}
	sum := decimal.Zero
	for _, c := range closes[len(closes)-n:] {
		sum = sum.Add(c)
	}
	mean := sum.Div(decimal.NewFromInt(int64(n)))
	return &mean
}

// dailyChange returns close[-1]-close[-2] and that delta over close[-2].
// The percentage is nil on a zero denominator; both are nil with fewer than
// two points.
func dailyChange(closes []decimal.Decimal) (*decimal.Decimal, *decimal.Decimal) {
	if len(closes) < 2 {
		return nil, nil
	}
	prev := closes[len(closes)-2]
	delta := closes[len(closes)-1].Sub(prev)
	if prev.IsZero() {
		return &delta, nil
	}
	pct := delta.Div(prev)
	return &delta, &pct
}

// trailingReturn is the fractional return over the last n closes, using the
// oldest close in the window as the base. Nil when history is short or the
// base is zero.
func trailingReturn(closes []decimal.Decimal, n int) *decimal.Decimal {
	if len(closes) < n {
		return nil
	}
	base := closes[len(closes)-n]
	if base.IsZero() {
		return nil
	}
	ret := closes[len(closes)-1].Sub(base).Div(base)
	return &ret
}

// volatility is the sample standard deviation of day-over-day fractional
// returns across the trailing window. Intermediate returns stay in decimal;
// the square root forces a float64 round trip. Nil when the window is
// incomplete or any denominator in it is zero.
func volatility(closes []decimal.Decimal, n int) *decimal.Decimal {
	if len(closes) < n {
		return nil
	}
	window := closes[len(closes)-n:]
	returns := make([]float64, 0, n-1)
	for i := 1; i < len(window); i++ {
		if window[i-1].IsZero() {
			return nil
		}
		r := window[i].Sub(window[i-1]).Div(window[i-1])
		returns = append(returns, r.InexactFloat64())
	}
	if len(returns) < 2 {
		return nil
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var sq float64
	for _, r := range returns {
		d := r - mean
		sq += d * d
	}
	std := math.Sqrt(sq / float64(len(returns)-1))

	v := decimal.NewFromFloat(std)
	return &v
}
