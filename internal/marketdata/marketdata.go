package marketdata

import (
	"context"
	"errors"

	"stockpulse/internal/market"
)

// Sentinel errors for the upstream boundary. Retry policy belongs to callers.
var (
	// ErrSourceUnavailable marks transient transport or provider failures.
	ErrSourceUnavailable = errors.New("market data source unavailable")
	// ErrUnknownSymbol marks a ticker the provider has no data for.
	ErrUnknownSymbol = errors.New("unknown symbol")
)

// Source retrieves the raw daily OHLCV history for a symbol. Implementations
// must return a normalised series (strictly increasing dates, no duplicates)
// covering at least rangeDays calendar days where the provider has data.
type Source interface {
	Fetch(ctx context.Context, symbol string, rangeDays int) (market.PriceSeries, error)
}
