package store

import (
	"context"
	"fmt"
	"sync"

	"stockpulse/internal/market"
)

// Memory is an in-process Store used by the memory driver and by tests.
// Series are copied on the way in and out, and snapshots are value types, so
// readers can never observe a half-replaced record.
type Memory struct {
	mu        sync.RWMutex
	series    map[string]market.PriceSeries
	snapshots map[string]market.Snapshot
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		series:    make(map[string]market.PriceSeries),
		snapshots: make(map[string]market.Snapshot),
	}
}

// PutSeries replaces the stored series for symbol.
func (m *Memory) PutSeries(_ context.Context, symbol string, series market.PriceSeries) error {
	cp := make(market.PriceSeries, len(series))
	copy(cp, series)

	m.mu.Lock()
	m.series[symbol] = cp
	m.mu.Unlock()
	return nil
}

// GetSeries returns a copy of the stored series for symbol.
func (m *Memory) GetSeries(_ context.Context, symbol string) (market.PriceSeries, error) {
	m.mu.RLock()
	series, ok := m.series[symbol]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: series for %s", ErrNotFound, symbol)
	}

	cp := make(market.PriceSeries, len(series))
	copy(cp, series)
	return cp, nil
}

// PutSnapshot atomically replaces the current snapshot for snap.Symbol.
func (m *Memory) PutSnapshot(_ context.Context, snap market.Snapshot) error {
	m.mu.Lock()
	m.snapshots[snap.Symbol] = snap
	m.mu.Unlock()
	return nil
}

// GetSnapshot returns the current snapshot for symbol.
func (m *Memory) GetSnapshot(_ context.Context, symbol string) (market.Snapshot, error) {
	m.mu.RLock()
	snap, ok := m.snapshots[symbol]
	m.mu.RUnlock()
	if !ok {
		return market.Snapshot{}, fmt.Errorf("%w: snapshot for %s", ErrNotFound, symbol)
	}
	return snap, nil
}

// AllSnapshots returns the current snapshot of every symbol that has one.
func (m *Memory) AllSnapshots(_ context.Context) (map[string]market.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]market.Snapshot, len(m.snapshots))
	for symbol, snap := range m.snapshots {
		out[symbol] = snap
	}
	return out, nil
}

// Close is a no-op for the in-memory driver.
func (m *Memory) Close(_ context.Context) error { return nil }

var _ Store = (*Memory)(nil)
