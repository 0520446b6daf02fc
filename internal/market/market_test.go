package market

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func day(offset int) time.Time {
	return time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func point(offset int, close float64) PricePoint {
	return PricePoint{Date: day(offset), Close: decimal.NewFromFloat(close)}
}

func TestValidateAcceptsOrderedSeries(t *testing.T) {
	series := PriceSeries{point(0, 100), point(1, 101), point(3, 99)}
	if err := series.Validate(); err != nil {
		t.Fatalf("ordered series must validate: %v", err)
	}

	if err := (PriceSeries{}).Validate(); err != nil {
		t.Fatalf("empty series must validate: %v", err)
	}
}

func TestValidateRejectsDuplicateDates(t *testing.T) {
	series := PriceSeries{point(0, 100), point(0, 101)}
	if err := series.Validate(); !errors.Is(err, ErrInvalidSeries) {
		t.Fatalf("expected ErrInvalidSeries, got %v", err)
	}
}

func TestValidateRejectsBackwardsDates(t *testing.T) {
	series := PriceSeries{point(2, 100), point(1, 101)}
	if err := series.Validate(); !errors.Is(err, ErrInvalidSeries) {
		t.Fatalf("expected ErrInvalidSeries, got %v", err)
	}
}

func TestBetween(t *testing.T) {
	series := PriceSeries{point(0, 1), point(1, 2), point(2, 3), point(3, 4)}

	got := series.Between(day(1), day(2))
	if len(got) != 2 || !got[0].Date.Equal(day(1)) || !got[1].Date.Equal(day(2)) {
		t.Fatalf("bounded filter returned %d points", len(got))
	}

	if got := series.Between(time.Time{}, day(1)); len(got) != 2 {
		t.Fatalf("open-from filter returned %d points, want 2", len(got))
	}
	if got := series.Between(day(2), time.Time{}); len(got) != 2 {
		t.Fatalf("open-to filter returned %d points, want 2", len(got))
	}
	if got := series.Between(time.Time{}, time.Time{}); len(got) != len(series) {
		t.Fatalf("unbounded filter returned %d points, want %d", len(got), len(series))
	}
}
