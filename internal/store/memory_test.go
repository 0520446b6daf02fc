package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stockpulse/internal/market"
)

func testSeries(closes ...float64) market.PriceSeries {
	base := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	series := make(market.PriceSeries, len(closes))
	for i, c := range closes {
		series[i] = market.PricePoint{Date: base.AddDate(0, 0, i), Close: decimal.NewFromFloat(c)}
	}
	return series
}

// numberedSnapshot stamps every field with the same generation so a torn
// read is detectable on any field pair.
func numberedSnapshot(symbol string, gen int64) market.Snapshot {
	v := decimal.NewFromInt(gen)
	return market.Snapshot{
		Symbol:         symbol,
		ComputedAt:     time.Unix(gen, 0).UTC(),
		LatestClose:    v,
		MovingAvg20:    &v,
		MovingAvg50:    &v,
		MonthlyReturn:  &v,
		Volatility:     &v,
		DailyChange:    &v,
		DailyChangePct: &v,
	}
}

func TestMemoryNotFound(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.GetSeries(ctx, "AAPL"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for series, got %v", err)
	}
	if _, err := m.GetSnapshot(ctx, "AAPL"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for snapshot, got %v", err)
	}
}

func TestMemoryAllSnapshotsEmpty(t *testing.T) {
	m := NewMemory()

	all, err := m.AllSnapshots(context.Background())
	if err != nil {
		t.Fatalf("AllSnapshots on an empty store must not fail: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty mapping, got %d entries", len(all))
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	series := testSeries(100, 101, 102)
	if err := m.PutSeries(ctx, "AAPL", series); err != nil {
		t.Fatalf("PutSeries failed: %v", err)
	}
	got, err := m.GetSeries(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetSeries failed: %v", err)
	}
	if len(got) != len(series) || !got[2].Close.Equal(series[2].Close) {
		t.Fatal("series round trip mismatch")
	}

	snap := numberedSnapshot("AAPL", 7)
	if err := m.PutSnapshot(ctx, snap); err != nil {
		t.Fatalf("PutSnapshot failed: %v", err)
	}
	gotSnap, err := m.GetSnapshot(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetSnapshot failed: %v", err)
	}
	if gotSnap.Symbol != "AAPL" || !gotSnap.LatestClose.Equal(snap.LatestClose) {
		t.Fatal("snapshot round trip mismatch")
	}

	all, err := m.AllSnapshots(ctx)
	if err != nil {
		t.Fatalf("AllSnapshots failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(all))
	}
}

func TestMemorySeriesCopiedOnReturn(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.PutSeries(ctx, "AAPL", testSeries(100, 200)); err != nil {
		t.Fatalf("PutSeries failed: %v", err)
	}

	got, err := m.GetSeries(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetSeries failed: %v", err)
	}
	got[0].Close = decimal.NewFromInt(-1)

	again, err := m.GetSeries(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetSeries failed: %v", err)
	}
	if !again[0].Close.Equal(decimal.NewFromInt(100)) {
		t.Fatal("mutating a returned series leaked into the store")
	}
}

// TestMemorySnapshotReplacementIsAtomic interleaves one writer with many
// readers and asserts every read is one complete generation, never a mix.
func TestMemorySnapshotReplacementIsAtomic(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	const generations = 500
	const readers = 8

	if err := m.PutSnapshot(ctx, numberedSnapshot("AAPL", 0)); err != nil {
		t.Fatalf("seed PutSnapshot failed: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for gen := int64(1); gen <= generations; gen++ {
			_ = m.PutSnapshot(ctx, numberedSnapshot("AAPL", gen))
		}
	}()

	var wg sync.WaitGroup
	errCh := make(chan error, readers)
	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}

				snap, err := m.GetSnapshot(ctx, "AAPL")
				if err != nil {
					errCh <- err
					return
				}
				gen := snap.LatestClose
				for name, field := range map[string]*decimal.Decimal{
					"moving_average_20": snap.MovingAvg20,
					"moving_average_50": snap.MovingAvg50,
					"monthly_return":    snap.MonthlyReturn,
					"volatility":        snap.Volatility,
					"daily_change":      snap.DailyChange,
					"daily_change_pct":  snap.DailyChangePct,
				} {
					if field == nil || !field.Equal(gen) {
						errCh <- errors.New("torn snapshot read on " + name)
						return
					}
				}
				if snap.ComputedAt.Unix() != gen.IntPart() {
					errCh <- errors.New("torn snapshot read on computed_at")
					return
				}
			}
		}()
	}

	wg.Wait()
	<-done
	close(errCh)
	if err := <-errCh; err != nil {
		t.Fatal(err)
	}
}
