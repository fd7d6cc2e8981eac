// Package postgres implements the tenant stores on PostgreSQL. Each tenant
// owns a database; products assigned to a member are embedded in the
// member's JSONB products array, unassigned ones live in the products table.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assettrack/internal/store"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so repositories run
// the same statements inside and outside a transaction.
type querier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

var (
	_ querier      = (*pgxpool.Pool)(nil)
	_ querier      = (pgx.Tx)(nil)
	_ store.Handle = (*Store)(nil)
)

// Store implements store.Handle for one tenant database.
type Store struct {
	tenant string
	pool   *pgxpool.Pool
}

// NewStore wraps an open pool of a migrated tenant database.
func NewStore(tenant string, pool *pgxpool.Pool) *Store {
	return &Store{tenant: tenant, pool: pool}
}

// Tenant implements store.Handle.
func (s *Store) Tenant() string { return s.tenant }

// Products implements store.Accessors.
func (s *Store) Products() store.ProductRepository { return &productRepo{q: s.pool} }

// Members implements store.Accessors.
func (s *Store) Members() store.MemberRepository { return &memberRepo{q: s.pool} }

// AuditRecords implements store.Accessors.
func (s *Store) AuditRecords() store.AuditRepository { return &auditRepo{q: s.pool} }

// WithTx runs fn in a serializable transaction. Serialization failures
// surface as store.ErrTransient so callers can retry the whole function.
func (s *Store) WithTx(ctx context.Context, fn store.TxFunc) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapPostgresError(err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	if err := fn(ctx, &txAccessors{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapPostgresError(err))
	}
	return nil
}

// Ping implements store.Handle.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("tenant %s: %w: %w", s.tenant, store.ErrUnavailable, err)
	}
	return nil
}

// Close implements store.Handle.
func (s *Store) Close(ctx context.Context) error {
	stats := s.pool.Stat()
	log.Debug().
		Str("tenant", s.tenant).
		Int32("total_conns", stats.TotalConns()).
		Int64("acquire_count", stats.AcquireCount()).
		Dur("acquire_duration", stats.AcquireDuration()).
		Msg("Closing tenant connection pool")

	s.pool.Close()
	return nil
}

type txAccessors struct {
	tx pgx.Tx
}

func (a *txAccessors) Products() store.ProductRepository { return &productRepo{q: a.tx} }
func (a *txAccessors) Members() store.MemberRepository   { return &memberRepo{q: a.tx} }
func (a *txAccessors) AuditRecords() store.AuditRepository {
	return &auditRepo{q: a.tx}
}

// nullIfEmpty converts empty strings to NULL for optional columns.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// limitArg turns a zero limit into NULL, which LIMIT treats as unbounded.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

func marshalDoc(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return data, nil
}

func utc(t time.Time) time.Time {
	return t.UTC()
}
