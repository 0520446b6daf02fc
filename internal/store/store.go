package store

import (
	"context"
	"errors"

	"stockpulse/internal/market"
)

// ErrNotFound indicates the symbol has no stored series or snapshot yet.
var ErrNotFound = errors.New("store: not found")

// Store persists the latest raw series and computed snapshot per symbol.
// PutSnapshot replaces the current snapshot wholesale; every driver guarantees
// a reader sees either the previous complete snapshot or the new complete one,
// never a mix. The refresh service is the only writer.
type Store interface {
	PutSeries(ctx context.Context, symbol string, series market.PriceSeries) error
	GetSeries(ctx context.Context, symbol string) (market.PriceSeries, error)
	PutSnapshot(ctx context.Context, snap market.Snapshot) error
	GetSnapshot(ctx context.Context, symbol string) (market.Snapshot, error)
	// AllSnapshots returns only symbols holding a current snapshot; an empty
	// map is a valid result, not an error.
	AllSnapshots(ctx context.Context) (map[string]market.Snapshot, error)
	Close(ctx context.Context) error
}
