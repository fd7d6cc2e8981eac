// Package mongodb implements the tenant stores on MongoDB. Each tenant owns a
// database on a shared replica set; products assigned to a member are
// embedded in the member document.
package mongodb

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assettrack/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	productsCollection = "products"
	membersCollection  = "members"
	auditCollection    = "audit_records"
)

var _ store.Handle = (*Store)(nil)

// Store implements store.Handle for one tenant database.
type Store struct {
	tenant string
	client *mongo.Client
	db     *mongo.Database
}

// NewStore wraps the database of a tenant on a connected client.
func NewStore(tenant string, client *mongo.Client, db *mongo.Database) *Store {
	return &Store{tenant: tenant, client: client, db: db}
}

// Tenant implements store.Handle.
func (s *Store) Tenant() string { return s.tenant }

// Products implements store.Accessors.
func (s *Store) Products() store.ProductRepository {
	return &productRepo{client: s.client, coll: s.db.Collection(productsCollection)}
}

// Members implements store.Accessors.
func (s *Store) Members() store.MemberRepository {
	return &memberRepo{coll: s.db.Collection(membersCollection)}
}

// AuditRecords implements store.Accessors.
func (s *Store) AuditRecords() store.AuditRepository {
	return &auditRepo{coll: s.db.Collection(auditCollection)}
}

// WithTx runs fn in a multi-document transaction. The repositories handed to
// fn are the store's own; they join the transaction through the session
// carried by ctx.
func (s *Store) WithTx(ctx context.Context, fn store.TxFunc) error {
	return runTx(ctx, s.client, func(sc context.Context) error {
		return fn(sc, s)
	})
}

// Ping implements store.Handle.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("tenant %s: %w: %w", s.tenant, store.ErrUnavailable, err)
	}
	return nil
}

// Close implements store.Handle. The client is shared between tenants and is
// disconnected by the Opener.
func (s *Store) Close(ctx context.Context) error {
	log.Ctx(ctx).Debug().Str("tenant", s.tenant).Msg("Closing tenant store")
	return nil
}

// runTx commits fn in its own transaction. It does not use
// Session.WithTransaction, which retries internally, so a conflict reaches
// the caller once as store.ErrTransient.
func runTx(ctx context.Context, client *mongo.Client, fn func(ctx context.Context) error) error {
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", mapMongoError(err))
	}
	defer sess.EndSession(ctx)

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	return mongo.WithSession(ctx, sess, func(sc mongo.SessionContext) error {
		if err := sess.StartTransaction(txOpts); err != nil {
			return fmt.Errorf("failed to begin transaction: %w", mapMongoError(err))
		}

		if err := fn(sc); err != nil {
			_ = sess.AbortTransaction(context.WithoutCancel(sc))
			return err
		}

		if err := commit(sc, sess.CommitTransaction); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", mapMongoError(err))
		}
		return nil
	})
}

// maxCommitAttempts bounds the commit retries of a transaction whose outcome
// is unknown.
const maxCommitAttempts = 3

// commit runs commitFn again while the server reports an unknown commit
// result. A repeated commit of a transaction that already landed succeeds,
// so only the commit is retried and never the transaction body.
func commit(ctx context.Context, commitFn func(context.Context) error) error {
	var err error
	for range maxCommitAttempts {
		err = commitFn(ctx)
		if !unknownCommitResult(err) {
			return err
		}
		log.Ctx(ctx).Warn().Err(err).Msg("Transaction commit result unknown, retrying commit")
	}
	return err
}

// inTx reports whether ctx already carries a session.
func inTx(ctx context.Context) bool {
	return mongo.SessionFromContext(ctx) != nil
}

// findOptions applies sort and a positive limit.
func findOptions(limit int, sort bson.D) *options.FindOptions {
	opts := options.Find().SetSort(sort)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return opts
}
