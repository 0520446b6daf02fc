package marketdata

import (
	"context"
	"fmt"

	"stockpulse/internal/market"
)

// Static serves canned series, for tests and offline development.
type Static struct {
	Series map[string]market.PriceSeries
	Err    error
}

// Fetch returns the canned series for symbol, or ErrUnknownSymbol.
func (s *Static) Fetch(_ context.Context, symbol string, _ int) (market.PriceSeries, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	series, ok := s.Series[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	return series, nil
}

var _ Source = (*Static)(nil)
