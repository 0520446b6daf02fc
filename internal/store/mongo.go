package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"stockpulse/internal/market"
)

const (
	mongoSeriesCollection   = "price_series"
	mongoSnapshotCollection = "metric_snapshots"
)

// MongoOptions parameterise the MongoDB driver.
type MongoOptions struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Mongo stores one document per symbol per collection. Documents carry the
// JSON-encoded payload so all drivers share one serialisation of the decimal
// fields, and ReplaceOne gives the atomic wholesale replacement the snapshot
// contract requires.
type Mongo struct {
	client  *mongo.Client
	db      *mongo.Database
	timeout time.Duration
}

type mongoDocument struct {
	Symbol    string    `bson:"_id"`
	UpdatedAt time.Time `bson:"updated_at"`
	Payload   []byte    `bson:"payload"`
}

// NewMongo connects and pings the configured MongoDB deployment.
func NewMongo(ctx context.Context, opts MongoOptions) (*Mongo, error) {
	if opts.URI == "" {
		return nil, errors.New("storage.mongo_uri is required")
	}
	database := opts.Database
	if database == "" {
		database = "stockpulse"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(opts.URI).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetRetryWrites(true).
		SetRetryReads(true)

	client, err := mongo.Connect(connectCtx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	return &Mongo{
		client:  client,
		db:      client.Database(database),
		timeout: timeout,
	}, nil
}

func (m *Mongo) put(ctx context.Context, collection, symbol string, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", collection, err)
	}

	doc := mongoDocument{
		Symbol:    symbol,
		UpdatedAt: time.Now().UTC(),
		Payload:   encoded,
	}

	opCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	replaceOpts := options.Replace().SetUpsert(true)
	if _, err := m.db.Collection(collection).ReplaceOne(opCtx, bson.M{"_id": symbol}, doc, replaceOpts); err != nil {
		return fmt.Errorf("replace %s document: %w", collection, err)
	}
	return nil
}

func (m *Mongo) get(ctx context.Context, collection, symbol string, out any) error {
	opCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var doc mongoDocument
	err := m.db.Collection(collection).FindOne(opCtx, bson.M{"_id": symbol}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("%w: %s for %s", ErrNotFound, collection, symbol)
		}
		return fmt.Errorf("find %s document: %w", collection, err)
	}
	if err := json.Unmarshal(doc.Payload, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", collection, err)
	}
	return nil
}

// PutSeries replaces the stored series document for symbol.
func (m *Mongo) PutSeries(ctx context.Context, symbol string, series market.PriceSeries) error {
	return m.put(ctx, mongoSeriesCollection, symbol, series)
}

// GetSeries loads the stored series for symbol.
func (m *Mongo) GetSeries(ctx context.Context, symbol string) (market.PriceSeries, error) {
	var series market.PriceSeries
	if err := m.get(ctx, mongoSeriesCollection, symbol, &series); err != nil {
		return nil, err
	}
	return series, nil
}

// PutSnapshot atomically replaces the current snapshot document.
func (m *Mongo) PutSnapshot(ctx context.Context, snap market.Snapshot) error {
	return m.put(ctx, mongoSnapshotCollection, snap.Symbol, snap)
}

// GetSnapshot loads the current snapshot for symbol.
func (m *Mongo) GetSnapshot(ctx context.Context, symbol string) (market.Snapshot, error) {
	var snap market.Snapshot
	if err := m.get(ctx, mongoSnapshotCollection, symbol, &snap); err != nil {
		return market.Snapshot{}, err
	}
	return snap, nil
}

// AllSnapshots loads the current snapshot of every symbol that has one.
func (m *Mongo) AllSnapshots(ctx context.Context) (map[string]market.Snapshot, error) {
	opCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	cursor, err := m.db.Collection(mongoSnapshotCollection).Find(opCtx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list snapshot documents: %w", err)
	}
	defer cursor.Close(opCtx)

	out := make(map[string]market.Snapshot)
	for cursor.Next(opCtx) {
		var doc mongoDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode snapshot document: %w", err)
		}
		var snap market.Snapshot
		if err := json.Unmarshal(doc.Payload, &snap); err != nil {
			return nil, fmt.Errorf("decode snapshot payload for %s: %w", doc.Symbol, err)
		}
		out[doc.Symbol] = snap
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Close disconnects from MongoDB.
func (m *Mongo) Close(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return m.client.Disconnect(opCtx)
}

var _ Store = (*Mongo)(nil)
