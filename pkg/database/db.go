// Package database wraps the MongoDB client with connection settings,
// named collection accessors and index bootstrap for the marketplace
// collections.
package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"service-marketplace/pkg/config"
	errs "service-marketplace/pkg/errors"
)

const (
	defaultReadTimeout  = 8 * time.Second
	defaultWriteTimeout = 6 * time.Second

	// Collection names.
	CollUsers    = "users"
	CollBookings = "bookings"
	CollPosts    = "blogposts"
	CollEvents   = "events"
)

type DB struct {
	client       *mongo.Client
	db           *mongo.Database
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func New(ctx context.Context, uri, dbName string) (*DB, error) {
	opts := options.Client().ApplyURI(uri).SetMaxPoolSize(100)
	return connect(ctx, opts, dbName, defaultReadTimeout, defaultWriteTimeout)
}

// NewWithConfig creates a client using pool and timeout settings from config.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*DB, error) {
	opts := options.Client().ApplyURI(cfg.MongoURI).SetMaxPoolSize(cfg.DBMaxPoolSize)

	rt := cfg.DBReadTimeout
	if rt == 0 {
		rt = defaultReadTimeout
	}
	wt := cfg.DBWriteTimeout
	if wt == 0 {
		wt = defaultWriteTimeout
	}

	return connect(ctx, opts, cfg.MongoDatabase, rt, wt)
}

func connect(ctx context.Context, opts *options.ClientOptions, dbName string, rt, wt time.Duration) (*DB, error) {
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errs.NewDB("database.connect", "failed to connect", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errs.NewDB("database.connect", "ping failed", err)
	}

	return &DB{
		client:       client,
		db:           client.Database(dbName),
		readTimeout:  rt,
		writeTimeout: wt,
	}, nil
}

// Client exposes the underlying client for session/transaction use.
func (d *DB) Client() *mongo.Client { return d.client }

func (d *DB) Users() *mongo.Collection    { return d.db.Collection(CollUsers) }
func (d *DB) Bookings() *mongo.Collection { return d.db.Collection(CollBookings) }
func (d *DB) Posts() *mongo.Collection    { return d.db.Collection(CollPosts) }
func (d *DB) Events() *mongo.Collection   { return d.db.Collection(CollEvents) }

// Collection returns a collection by name for callers outside the fixed set.
func (d *DB) Collection(name string) *mongo.Collection { return d.db.Collection(name) }

// WithReadTimeout creates a context with the standard read timeout.
func (d *DB) WithReadTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, d.readTimeout)
}

// WithWriteTimeout creates a context with the standard write timeout.
func (d *DB) WithWriteTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, d.writeTimeout)
}

// Ping verifies connectivity against the primary.
func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := d.WithReadTimeout(ctx)
	defer cancel()
	if err := d.client.Ping(ctx, readpref.Primary()); err != nil {
		return errs.NewDB("database.Ping", "ping failed", err)
	}
	return nil
}

// Close disconnects the client.
func (d *DB) Close(ctx context.Context) error {
	return d.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the query paths rely on. Safe to call
// repeatedly; identical definitions are no-ops server side.
// The Atlas vector index on users.embedding is managed out of band.
func (d *DB) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	userIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "serviceProvider.location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "role", Value: 1}, {Key: "verificationStatus", Value: 1}, {Key: "isActive", Value: 1}}},
	}
	if _, err := d.Users().Indexes().CreateMany(ctx, userIdx); err != nil {
		return errs.NewDB("database.EnsureIndexes", "users indexes", err)
	}

	bookingIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "provider", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "provider", Value: 1}, {Key: "scheduledDate", Value: 1}, {Key: "scheduledEnd", Value: 1}}},
		{Keys: bson.D{{Key: "customer", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
	if _, err := d.Bookings().Indexes().CreateMany(ctx, bookingIdx); err != nil {
		return errs.NewDB("database.EnsureIndexes", "bookings indexes", err)
	}

	postIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "author", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
	if _, err := d.Posts().Indexes().CreateMany(ctx, postIdx); err != nil {
		return errs.NewDB("database.EnsureIndexes", "blogposts indexes", err)
	}

	eventIdx := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "startDate", Value: 1}}},
		{Keys: bson.D{{Key: "organizer", Value: 1}, {Key: "createdAt", Value: -1}}},
	}
	if _, err := d.Events().Indexes().CreateMany(ctx, eventIdx); err != nil {
		return errs.NewDB("database.EnsureIndexes", "events indexes", err)
	}

	return nil
}
