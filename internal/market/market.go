package market

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidSeries indicates a price series with out-of-order or duplicate dates.
var ErrInvalidSeries = errors.New("invalid price series")

// PricePoint is one daily OHLCV bar for a symbol.
type PricePoint struct {
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// PriceSeries is an ordered sequence of daily bars, strictly increasing by date.
type PriceSeries []PricePoint

// Validate checks the strict-ordering contract. Normalisation (sorting,
// deduplication) is the data source's job; consumers only ever reject.
func (s PriceSeries) Validate() error {
	for i := 1; i < len(s); i++ {
		prev, cur := s[i-1].Date, s[i].Date
		if !cur.After(prev) {
			return fmt.Errorf("%w: date %s at index %d does not advance past %s",
				ErrInvalidSeries, cur.Format(DateLayout), i, prev.Format(DateLayout))
		}
	}
	return nil
}

// Last returns the final point of the series. Callers must check Len first.
func (s PriceSeries) Last() PricePoint {
	return s[len(s)-1]
}

// Between returns the sub-series with dates in [from, to]. A zero from or to
// leaves that side unbounded.
func (s PriceSeries) Between(from, to time.Time) PriceSeries {
	out := make(PriceSeries, 0, len(s))
	for _, p := range s {
		if !from.IsZero() && p.Date.Before(from) {
			continue
		}
		if !to.IsZero() && p.Date.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// DateLayout is the wire format for calendar days.
const DateLayout = "2006-01-02"

// Snapshot is the single current computed-metrics record for a symbol,
// replaced wholesale on every refresh. Nil metric pointers mean the trailing
// window was too short, and marshal as JSON null rather than zero.
type Snapshot struct {
	Symbol         string           `json:"symbol"`
	ComputedAt     time.Time        `json:"computed_at"`
	LatestClose    decimal.Decimal  `json:"latest_close"`
	MovingAvg20    *decimal.Decimal `json:"moving_average_20"`
	MovingAvg50    *decimal.Decimal `json:"moving_average_50"`
	MonthlyReturn  *decimal.Decimal `json:"monthly_return"`
	Volatility     *decimal.Decimal `json:"volatility"`
	DailyChange    *decimal.Decimal `json:"daily_change"`
	DailyChangePct *decimal.Decimal `json:"daily_change_pct"`
}
