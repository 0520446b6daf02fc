package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"stockpulse/internal/api"
	"stockpulse/internal/config"
	"stockpulse/internal/marketdata"
	"stockpulse/internal/scheduler"
	"stockpulse/internal/service"
	"stockpulse/internal/store"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newSource() marketdata.Source {
	return marketdata.NewYahoo(marketdata.YahooOptions{
		BaseURL:   a.Config.Source.BaseURL,
		Timeout:   a.Config.Source.RequestTimeout,
		UserAgent: a.Config.Source.UserAgent,
	}, a.Logger)
}

func (a *App) openStore(ctx context.Context) (store.Store, func(), error) {
	cfg := a.Config.Storage

	var st store.Store
	var err error
	switch cfg.Driver {
	case config.DriverMemory:
		a.Logger.Warn().Msg("memory storage driver selected; state is lost on restart")
		st = store.NewMemory()
	case config.DriverPostgres:
		st, err = store.NewPostgres(ctx, store.PostgresOptions{
			DSN:             cfg.PostgresDSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
			Timeout:         cfg.RequestTimeout,
		})
	case config.DriverMongo:
		st, err = store.NewMongo(ctx, store.MongoOptions{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDatabase,
			Timeout:  cfg.RequestTimeout,
		})
	default:
		err = fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, nil, err
	}

	closer := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := st.Close(closeCtx); err != nil {
			a.Logger.Error().Err(err).Msg("failed to close store")
		}
	}
	return st, closer, nil
}

func (a *App) newService(sched *scheduler.Scheduler, source marketdata.Source, st store.Store, symbols []string) *service.Service {
	if len(symbols) == 0 {
		symbols = a.Config.Symbols
	}
	return service.New(sched, source, st, service.Options{
		Symbols:      symbols,
		RangeDays:    a.Config.Source.RangeDays,
		FetchTimeout: a.Config.Source.RequestTimeout,
		StoreTimeout: a.Config.Storage.RequestTimeout,
	}, a.Logger)
}

// Run executes the long-running refresh loop and query API together.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToInterval,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc := a.newService(sched, a.newSource(), st, nil)
	server := api.NewServer(a.Config.HTTP, st, a.Logger)

	// Warm the store before the first aligned tick so the API has data to
	// serve immediately after startup, mirroring the original boot sequence.
	if result := svc.RefreshCycle(ctx, time.Now().UTC()); result.Updated == 0 {
		a.Logger.Warn().Int("failed", result.Failed).Msg("initial refresh produced no snapshots")
	}

	errCh := make(chan error, 2)
	go func() { errCh <- server.Run(ctx) }()
	go func() { errCh <- svc.Run(ctx) }()

	a.Logger.Info().Msg("stockpulse running")

	err = <-errCh
	cancel()
	if second := <-errCh; err == nil || errors.Is(err, context.Canceled) {
		err = second
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("stockpulse stopped")
	return nil
}

// RefreshOptions configure the one-shot refresh command.
type RefreshOptions struct {
	Symbols []string
}

// ExportOptions hold parameters for exporting a symbol's stored history.
type ExportOptions struct {
	Symbol    string
	CSVPath   string
	PNGPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct{}
