package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wolfeidau/assettrack/internal/models"
	"github.com/wolfeidau/assettrack/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type productRepo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// liveFilter excludes soft-deleted documents unless includeDeleted is set.
func liveFilter(includeDeleted bool) bson.M {
	if includeDeleted {
		return bson.M{}
	}
	return bson.M{"isDeleted": false}
}

// Get retrieves a standalone product by ID.
func (r *productRepo) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var doc productDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", mapMongoError(err))
	}
	return doc.toModel()
}

// Insert stores a new standalone product.
func (r *productRepo) Insert(ctx context.Context, product *models.Product) error {
	doc, err := toProductDoc(product)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert product %s: %w", product.ID, mapMongoError(err))
	}
	return nil
}

// InsertMany stores every product or none of them. Outside a transaction it
// opens one of its own.
func (r *productRepo) InsertMany(ctx context.Context, products []*models.Product) error {
	if len(products) == 0 {
		return nil
	}

	docs := make([]any, 0, len(products))
	for _, p := range products {
		doc, err := toProductDoc(p)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}

	insert := func(ctx context.Context) error {
		if _, err := r.coll.InsertMany(ctx, docs); err != nil {
			return fmt.Errorf("failed to insert %d products: %w", len(docs), mapMongoError(err))
		}
		return nil
	}

	if inTx(ctx) {
		return insert(ctx)
	}
	return runTx(ctx, r.client, insert)
}

// Replace overwrites an existing standalone product.
func (r *productRepo) Replace(ctx context.Context, product *models.Product) error {
	doc, err := toProductDoc(product)
	if err != nil {
		return err
	}

	result, err := r.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc)
	if err != nil {
		return fmt.Errorf("failed to replace product %s: %w", product.ID, mapMongoError(err))
	}
	if result.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Delete physically removes a standalone product.
func (r *productRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return fmt.Errorf("failed to delete product %s: %w", id, mapMongoError(err))
	}
	if result.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// FindBySerial returns live standalone products carrying serial.
func (r *productRepo) FindBySerial(ctx context.Context, serial string) ([]*models.Product, error) {
	cursor, err := r.coll.Find(ctx, bson.M{"serialNumber": serial, "isDeleted": false})
	if err != nil {
		return nil, fmt.Errorf("failed to query products by serial: %w", mapMongoError(err))
	}
	return decodeProducts(ctx, cursor)
}

// List returns standalone products ordered by creation time.
func (r *productRepo) List(ctx context.Context, opts store.ListOptions) ([]*models.Product, error) {
	cursor, err := r.coll.Find(ctx, liveFilter(opts.IncludeDeleted),
		findOptions(opts.Limit, bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", mapMongoError(err))
	}
	return decodeProducts(ctx, cursor)
}

func decodeProducts(ctx context.Context, cursor *mongo.Cursor) ([]*models.Product, error) {
	var docs []productDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to read products: %w", mapMongoError(err))
	}

	out := make([]*models.Product, 0, len(docs))
	for i := range docs {
		p, err := docs[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
