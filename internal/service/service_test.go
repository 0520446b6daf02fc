package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stockpulse/internal/market"
	"stockpulse/internal/marketdata"
	"stockpulse/internal/store"
)

func testSeries(n int) market.PriceSeries {
	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	series := make(market.PriceSeries, n)
	for i := 0; i < n; i++ {
		c := decimal.NewFromInt(int64(100 + i))
		series[i] = market.PricePoint{Date: base.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1000}
	}
	return series
}

func newTestService(source marketdata.Source, st store.Store, symbols ...string) *Service {
	return New(nil, source, st, Options{
		Symbols:      symbols,
		RangeDays:    180,
		FetchTimeout: time.Second,
		StoreTimeout: time.Second,
	}, zerolog.Nop())
}

func cycleTime(series market.PriceSeries) time.Time {
	return series.Last().Date.Add(12 * time.Hour)
}

func TestRefreshCycleIsolatesFailures(t *testing.T) {
	series := testSeries(60)
	source := &marketdata.Static{Series: map[string]market.PriceSeries{
		"GOOD": series,
	}}
	st := store.NewMemory()
	svc := newTestService(source, st, "BAD", "GOOD")

	result := svc.RefreshCycle(context.Background(), cycleTime(series))
	if result.Updated != 1 || result.Failed != 1 || result.Skipped != 0 {
		t.Fatalf("cycle result = %+v, want 1 updated 1 failed", result)
	}

	if _, err := st.GetSnapshot(context.Background(), "GOOD"); err != nil {
		t.Fatalf("healthy symbol must still be refreshed: %v", err)
	}
	if _, err := st.GetSnapshot(context.Background(), "BAD"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("failed symbol must have no snapshot, got %v", err)
	}
}

func TestRefreshSymbolPreservesSnapshotOnFailure(t *testing.T) {
	series := testSeries(60)
	source := &marketdata.Static{Series: map[string]market.PriceSeries{
		"AAPL": series,
	}}
	st := store.NewMemory()
	svc := newTestService(source, st, "AAPL")

	at := cycleTime(series)
	if err := svc.RefreshSymbol(context.Background(), "AAPL", at); err != nil {
		t.Fatalf("initial refresh failed: %v", err)
	}
	before, err := st.GetSnapshot(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}

	source.Err = marketdata.ErrSourceUnavailable
	err = svc.RefreshSymbol(context.Background(), "AAPL", at.Add(5*time.Minute))
	if !errors.Is(err, marketdata.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}

	after, err := st.GetSnapshot(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if !after.ComputedAt.Equal(before.ComputedAt) || !after.LatestClose.Equal(before.LatestClose) {
		t.Fatal("failed refresh must leave the previous snapshot untouched")
	}
}

func TestRefreshSymbolRejectsBadCompute(t *testing.T) {
	series := testSeries(10)
	source := &marketdata.Static{Series: map[string]market.PriceSeries{
		"AAPL": series,
	}}
	st := store.NewMemory()
	svc := newTestService(source, st, "AAPL")

	// Cycle time before the series end makes the compute step fail;
	// nothing may be persisted, not even the fetched series.
	err := svc.RefreshSymbol(context.Background(), "AAPL", series[0].Date)
	if !errors.Is(err, market.ErrInvalidSeries) {
		t.Fatalf("expected ErrInvalidSeries, got %v", err)
	}
	if _, err := st.GetSeries(context.Background(), "AAPL"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("series must not be persisted on compute failure, got %v", err)
	}
}

// blockingSource parks every Fetch until released.
type blockingSource struct {
	entered  chan struct{}
	released chan struct{}
	series   market.PriceSeries
}

func (b *blockingSource) Fetch(ctx context.Context, _ string, _ int) (market.PriceSeries, error) {
	b.entered <- struct{}{}
	select {
	case <-b.released:
		return b.series, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestRefreshSymbolSkipsWhileInFlight(t *testing.T) {
	series := testSeries(60)
	source := &blockingSource{
		entered:  make(chan struct{}, 1),
		released: make(chan struct{}),
		series:   series,
	}
	st := store.NewMemory()
	svc := newTestService(source, st, "AAPL")

	at := cycleTime(series)
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- svc.RefreshSymbol(context.Background(), "AAPL", at)
	}()

	<-source.entered // first refresh is now parked inside Fetch

	if err := svc.RefreshSymbol(context.Background(), "AAPL", at); !errors.Is(err, errRefreshInFlight) {
		t.Fatalf("overlapping refresh must be skipped, got %v", err)
	}

	close(source.released)
	if err := <-firstDone; err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}

	// The guard clears once the first refresh returns.
	if err := svc.RefreshSymbol(context.Background(), "AAPL", at.Add(5*time.Minute)); err != nil {
		t.Fatalf("follow-up refresh failed: %v", err)
	}
}

func TestTickFailsOnlyWhenNothingUpdates(t *testing.T) {
	st := store.NewMemory()

	down := newTestService(&marketdata.Static{Err: marketdata.ErrSourceUnavailable}, st, "AAPL", "GOOGL")
	if err := down.tick(context.Background(), time.Now().UTC()); err == nil {
		t.Fatal("tick must report a cycle where every symbol failed")
	}

	series := testSeries(60)
	mixed := newTestService(&marketdata.Static{Series: map[string]market.PriceSeries{
		"AAPL": series,
	}}, st, "AAPL", "GOOGL")
	if err := mixed.tick(context.Background(), cycleTime(series)); err != nil {
		t.Fatalf("partial success must not fail the tick: %v", err)
	}
}

func TestRefreshCycleStopsOnCancelledContext(t *testing.T) {
	series := testSeries(60)
	source := &marketdata.Static{Series: map[string]market.PriceSeries{
		"AAPL": series, "GOOGL": series,
	}}
	svc := newTestService(source, store.NewMemory(), "AAPL", "GOOGL")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := svc.RefreshCycle(ctx, cycleTime(series))
	if result.Updated != 0 || result.Failed != 0 {
		t.Fatalf("cancelled cycle must not touch symbols, got %+v", result)
	}
}
