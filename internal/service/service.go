package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stockpulse/internal/market"
	"stockpulse/internal/marketdata"
	"stockpulse/internal/metrics"
	"stockpulse/internal/scheduler"
	"stockpulse/internal/store"
)

// Options tune the refresh service.
type Options struct {
	Symbols      []string
	RangeDays    int
	FetchTimeout time.Duration
	StoreTimeout time.Duration
}

// Service orchestrates the fetch -> compute -> persist pipeline for the
// tracked symbol set. It is the store's only writer.
type Service struct {
	scheduler *scheduler.Scheduler
	source    marketdata.Source
	store     store.Store
	logger    zerolog.Logger
	opts      Options

	inflight sync.Map // symbol -> struct{}, at-most-one refresh per symbol
}

// CycleResult summarises one pass over the tracked symbols.
type CycleResult struct {
	Updated int
	Failed  int
	Skipped int
}

// New constructs the refresh service.
func New(sched *scheduler.Scheduler, source marketdata.Source, st store.Store, opts Options, logger zerolog.Logger) *Service {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}

	return &Service{
		scheduler: sched,
		source:    source,
		store:     st,
		logger:    logger.With().Str("component", "refresh").Logger(),
		opts:      opts,
	}
}

// Run begins the periodic refresh loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.tick)
}

func (s *Service) tick(ctx context.Context, at time.Time) error {
	result := s.RefreshCycle(ctx, at)
	if result.Updated == 0 && result.Failed > 0 {
		// Reportable but not fatal; the scheduler fires again next interval.
		return fmt.Errorf("all %d symbols failed to refresh", result.Failed)
	}
	return nil
}

// RefreshCycle runs one pass over the tracked symbols. A failure for one
// symbol is recorded and the cycle moves on, leaving that symbol's stored
// snapshot untouched: stale-but-available beats unavailable.
func (s *Service) RefreshCycle(ctx context.Context, at time.Time) CycleResult {
	var result CycleResult

	for _, symbol := range s.opts.Symbols {
		if ctx.Err() != nil {
			s.logger.Warn().Int("remaining", len(s.opts.Symbols)-result.Updated-result.Failed-result.Skipped).
				Msg("refresh cycle interrupted by shutdown")
			break
		}

		switch err := s.RefreshSymbol(ctx, symbol, at); {
		case err == nil:
			result.Updated++
		case errors.Is(err, errRefreshInFlight):
			result.Skipped++
			s.logger.Debug().Str("symbol", symbol).Msg("refresh already in flight, skipping")
		default:
			result.Failed++
			s.logger.Error().Err(err).Str("symbol", symbol).
				Str("kind", classifyError(err)).Msg("symbol refresh failed")
		}
	}

	s.logger.Info().Time("cycle", at).
		Int("updated", result.Updated).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("refresh cycle finished")
	return result
}

var errRefreshInFlight = errors.New("refresh already in flight")

// RefreshSymbol runs the strictly ordered fetch -> validate -> compute ->
// persist sequence for one symbol. A compute failure prevents the persist
// step entirely, so no partial state ever reaches the store.
func (s *Service) RefreshSymbol(ctx context.Context, symbol string, at time.Time) error {
	if _, loaded := s.inflight.LoadOrStore(symbol, struct{}{}); loaded {
		return errRefreshInFlight
	}
	defer s.inflight.Delete(symbol)

	fetchCtx, cancelFetch := context.WithTimeout(ctx, s.opts.FetchTimeout)
	series, err := s.source.Fetch(fetchCtx, symbol, s.opts.RangeDays)
	cancelFetch()
	if err != nil {
		return fmt.Errorf("fetch %s: %w", symbol, err)
	}

	if err := series.Validate(); err != nil {
		return fmt.Errorf("validate %s: %w", symbol, err)
	}

	snap, err := metrics.Compute(symbol, series, at)
	if err != nil {
		return fmt.Errorf("compute %s: %w", symbol, err)
	}

	storeCtx, cancelStore := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancelStore()

	if err := s.store.PutSeries(storeCtx, symbol, series); err != nil {
		return fmt.Errorf("persist series %s: %w", symbol, err)
	}
	if err := s.store.PutSnapshot(storeCtx, snap); err != nil {
		return fmt.Errorf("persist snapshot %s: %w", symbol, err)
	}

	s.logger.Debug().Str("symbol", symbol).
		Int("points", len(series)).
		Str("latest_close", snap.LatestClose.String()).
		Msg("symbol refreshed")
	return nil
}

func classifyError(err error) string {
	switch {
	case errors.Is(err, marketdata.ErrUnknownSymbol):
		return "unknown_symbol"
	case errors.Is(err, marketdata.ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, market.ErrInvalidSeries):
		return "invalid_series"
	default:
		return "internal"
	}
}
