package mongodb

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assettrack/internal/store"
	"github.com/wolfeidau/assettrack/internal/tenant"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

var _ store.Opener = (*Opener)(nil)

// Opener opens tenant databases on one MongoDB deployment. Every tenant
// shares the client and its connection pool.
type Opener struct {
	client *mongo.Client

	mu      sync.Mutex
	indexed map[string]bool
}

// NewOpener connects the client and verifies the primary is reachable.
func NewOpener(ctx context.Context, cfg Config) (*Opener, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mongodb config: %w", err)
	}

	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ServerSelectionTimeout)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w: %w", store.ErrUnavailable, err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w: %w", store.ErrUnavailable, err)
	}

	log.Info().Uint64("max_pool_size", cfg.MaxPoolSize).Msg("Connected to MongoDB")

	return &Opener{client: client, indexed: make(map[string]bool)}, nil
}

// Open implements store.Opener. Indexes are created the first time a tenant
// is opened.
func (o *Opener) Open(ctx context.Context, name string) (store.Handle, error) {
	if err := o.Migrate(ctx, name); err != nil {
		return nil, err
	}
	db := o.client.Database(tenant.DatabaseName(name))
	return NewStore(name, o.client, db), nil
}

// Migrate creates the indexes of one tenant database.
func (o *Opener) Migrate(ctx context.Context, name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.indexed[name] {
		return nil
	}

	database := tenant.DatabaseName(name)
	if err := ensureIndexes(ctx, o.client.Database(database)); err != nil {
		return fmt.Errorf("failed to create indexes of tenant %s: %w", name, mapMongoError(err))
	}
	o.indexed[name] = true

	log.Ctx(ctx).Info().Str("database", database).Msg("Ensured tenant indexes")
	return nil
}

// Close disconnects the shared client.
func (o *Opener) Close(ctx context.Context) error {
	return o.client.Disconnect(ctx)
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(productsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "serialNumber", Value: 1}},
			Options: options.Index().
				SetName("serial_number_live").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"serialNumber": bson.M{"$exists": true},
					"isDeleted":    false,
				}),
		},
		{Keys: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(membersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}},
			Options: options.Index().
				SetName("email_live").
				SetUnique(true).
				SetCollation(emailCollation).
				SetPartialFilterExpression(bson.M{"isDeleted": false}),
		},
		{Keys: bson.D{{Key: "products._id", Value: 1}}},
		{Keys: bson.D{{Key: "products.serialNumber", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}},
	})
	if err != nil {
		return err
	}

	_, err = db.Collection(auditCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}},
	})
	return err
}
