package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stockpulse/internal/market"
)

const (
	createSchemaSQL = `CREATE TABLE IF NOT EXISTS price_series (
        symbol     TEXT PRIMARY KEY,
        payload    JSONB NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL
    );
    CREATE TABLE IF NOT EXISTS metric_snapshots (
        symbol     TEXT PRIMARY KEY,
        payload    JSONB NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL
    );`

	upsertSeriesSQL = `INSERT INTO price_series (symbol, payload, updated_at)
    VALUES ($1, $2, $3)
    ON CONFLICT (symbol) DO UPDATE
    SET payload = EXCLUDED.payload,
        updated_at = EXCLUDED.updated_at;`

	selectSeriesSQL = `SELECT payload FROM price_series WHERE symbol = $1;`

	upsertSnapshotSQL = `INSERT INTO metric_snapshots (symbol, payload, updated_at)
    VALUES ($1, $2, $3)
    ON CONFLICT (symbol) DO UPDATE
    SET payload = EXCLUDED.payload,
        updated_at = EXCLUDED.updated_at;`

	selectSnapshotSQL = `SELECT payload FROM metric_snapshots WHERE symbol = $1;`

	selectAllSnapshotsSQL = `SELECT symbol, payload FROM metric_snapshots;`
)

// PostgresOptions parameterise the PostgreSQL driver.
type PostgresOptions struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Timeout         time.Duration
}

// Postgres keeps one JSONB row per symbol and table. Row-level upserts make
// snapshot replacement atomic without application-level locking.
type Postgres struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewPostgres configures a pgx pool and ensures the schema exists.
func NewPostgres(ctx context.Context, opts PostgresOptions) (*Postgres, error) {
	if opts.DSN == "" {
		return nil, errors.New("storage.postgres_dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pg := &Postgres{pool: pool, timeout: timeout}

	schemaCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := pool.Exec(schemaCtx, createSchemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return pg, nil
}

func (p *Postgres) upsert(ctx context.Context, sql, symbol string, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload for %s: %w", symbol, err)
	}

	opCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if _, err := p.pool.Exec(opCtx, sql, symbol, encoded, time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert row for %s: %w", symbol, err)
	}
	return nil
}

func (p *Postgres) selectOne(ctx context.Context, sql, symbol string, out any) error {
	opCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var payload []byte
	if err := p.pool.QueryRow(opCtx, sql, symbol).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: row for %s", ErrNotFound, symbol)
		}
		return fmt.Errorf("select row for %s: %w", symbol, err)
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode payload for %s: %w", symbol, err)
	}
	return nil
}

// PutSeries replaces the stored series row for symbol.
func (p *Postgres) PutSeries(ctx context.Context, symbol string, series market.PriceSeries) error {
	return p.upsert(ctx, upsertSeriesSQL, symbol, series)
}

// GetSeries loads the stored series for symbol.
func (p *Postgres) GetSeries(ctx context.Context, symbol string) (market.PriceSeries, error) {
	var series market.PriceSeries
	if err := p.selectOne(ctx, selectSeriesSQL, symbol, &series); err != nil {
		return nil, err
	}
	return series, nil
}

// PutSnapshot atomically replaces the current snapshot row.
func (p *Postgres) PutSnapshot(ctx context.Context, snap market.Snapshot) error {
	return p.upsert(ctx, upsertSnapshotSQL, snap.Symbol, snap)
}

// GetSnapshot loads the current snapshot for symbol.
func (p *Postgres) GetSnapshot(ctx context.Context, symbol string) (market.Snapshot, error) {
	var snap market.Snapshot
	if err := p.selectOne(ctx, selectSnapshotSQL, symbol, &snap); err != nil {
		return market.Snapshot{}, err
	}
	return snap, nil
}

// AllSnapshots loads the current snapshot of every symbol that has one.
func (p *Postgres) AllSnapshots(ctx context.Context) (map[string]market.Snapshot, error) {
	opCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	rows, err := p.pool.Query(opCtx, selectAllSnapshotsSQL)
	if err != nil {
		return nil, fmt.Errorf("list snapshot rows: %w", err)
	}
	defer rows.Close()

	out := make(map[string]market.Snapshot)
	for rows.Next() {
		var symbol string
		var payload []byte
		if err := rows.Scan(&symbol, &payload); err != nil {
			return nil, err
		}
		var snap market.Snapshot
		if err := json.Unmarshal(payload, &snap); err != nil {
			return nil, fmt.Errorf("decode snapshot payload for %s: %w", symbol, err)
		}
		out[symbol] = snap
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// Close releases the underlying pool resources.
func (p *Postgres) Close(_ context.Context) error {
	if p != nil && p.pool != nil {
		p.pool.Close()
	}
	return nil
}

var _ Store = (*Postgres)(nil)
