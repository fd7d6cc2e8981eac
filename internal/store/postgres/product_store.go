package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/wolfeidau/assettrack/internal/models"
	"github.com/wolfeidau/assettrack/internal/store"
)

type productRepo struct {
	q querier
}

const insertProductSQL = `
	INSERT INTO products (
		id, serial_number, is_deleted, created_at, updated_at, doc
	) VALUES (
		$1, $2, $3, $4, $5, $6
	)
`

func productArgs(p *models.Product) ([]any, error) {
	doc, err := marshalDoc(p)
	if err != nil {
		return nil, err
	}
	return []any{
		p.ID,
		nullIfEmpty(p.SerialNumber),
		p.IsDeleted,
		utc(p.CreatedAt),
		utc(p.UpdatedAt),
		doc,
	}, nil
}

// Get retrieves a standalone product by ID.
func (r *productRepo) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var doc []byte
	err := r.q.QueryRow(ctx, `SELECT doc FROM products WHERE id = $1`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", mapPostgresError(err))
	}
	return decodeProduct(doc)
}

// Insert stores a new standalone product.
func (r *productRepo) Insert(ctx context.Context, product *models.Product) error {
	args, err := productArgs(product)
	if err != nil {
		return err
	}
	if _, err := r.q.Exec(ctx, insertProductSQL, args...); err != nil {
		return fmt.Errorf("failed to insert product %s: %w", product.ID, mapPostgresError(err))
	}
	return nil
}

// InsertMany stores every product or none of them.
func (r *productRepo) InsertMany(ctx context.Context, products []*models.Product) error {
	if len(products) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range products {
		args, err := productArgs(p)
		if err != nil {
			return err
		}
		batch.Queue(insertProductSQL, args...)
	}

	// a savepoint inside an outer transaction, a transaction of its own otherwise
	return pgx.BeginFunc(ctx, r.q, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		defer results.Close()

		for i := range products {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("failed to insert product %d: %w", i, mapPostgresError(err))
			}
		}
		return results.Close()
	})
}

// Replace overwrites an existing standalone product.
func (r *productRepo) Replace(ctx context.Context, product *models.Product) error {
	doc, err := marshalDoc(product)
	if err != nil {
		return err
	}

	result, err := r.q.Exec(ctx, `
		UPDATE products SET
			serial_number = $2,
			is_deleted = $3,
			updated_at = $4,
			doc = $5
		WHERE id = $1
	`, product.ID, nullIfEmpty(product.SerialNumber), product.IsDeleted, utc(product.UpdatedAt), doc)
	if err != nil {
		return fmt.Errorf("failed to replace product %s: %w", product.ID, mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Delete physically removes a standalone product.
func (r *productRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.q.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product %s: %w", id, mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// FindBySerial returns live standalone products carrying serial.
func (r *productRepo) FindBySerial(ctx context.Context, serial string) ([]*models.Product, error) {
	rows, err := r.q.Query(ctx, `
		SELECT doc FROM products
		WHERE serial_number = $1 AND NOT is_deleted
	`, serial)
	if err != nil {
		return nil, fmt.Errorf("failed to query products by serial: %w", mapPostgresError(err))
	}
	return collectProducts(rows)
}

// List returns standalone products ordered by creation time.
func (r *productRepo) List(ctx context.Context, opts store.ListOptions) ([]*models.Product, error) {
	rows, err := r.q.Query(ctx, `
		SELECT doc FROM products
		WHERE $1 OR NOT is_deleted
		ORDER BY created_at, id
		LIMIT $2
	`, opts.IncludeDeleted, limitArg(opts.Limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", mapPostgresError(err))
	}
	return collectProducts(rows)
}

func collectProducts(rows pgx.Rows) ([]*models.Product, error) {
	docs, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("failed to read products: %w", mapPostgresError(err))
	}

	out := make([]*models.Product, 0, len(docs))
	for _, doc := range docs {
		p, err := decodeProduct(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func decodeProduct(doc []byte) (*models.Product, error) {
	var p models.Product
	if err := json.Unmarshal(doc, &p); err != nil {
		return nil, fmt.Errorf("failed to decode product: %w", err)
	}
	return &p, nil
}
