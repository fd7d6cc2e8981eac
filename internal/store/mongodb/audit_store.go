package mongodb

import (
	"context"
	"fmt"

	"github.com/wolfeidau/assettrack/internal/models"
	"github.com/wolfeidau/assettrack/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type auditRepo struct {
	coll *mongo.Collection
}

// Insert appends an audit record. The repository exposes no way to change
// or remove one.
func (r *auditRepo) Insert(ctx context.Context, record *models.AuditRecord) error {
	if _, err := r.coll.InsertOne(ctx, toAuditDoc(record)); err != nil {
		return fmt.Errorf("failed to insert audit record %s: %w", record.ID, mapMongoError(err))
	}
	return nil
}

// List returns matching audit records, newest first.
func (r *auditRepo) List(ctx context.Context, filter store.AuditFilter) ([]*models.AuditRecord, error) {
	query := bson.M{}
	if filter.ItemKind != "" {
		query["itemType"] = string(filter.ItemKind)
	}
	if filter.Action != "" {
		query["actionType"] = string(filter.Action)
	}

	cursor, err := r.coll.Find(ctx, query,
		findOptions(filter.Limit, bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list audit records: %w", mapMongoError(err))
	}

	var docs []storedAuditDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to read audit records: %w", mapMongoError(err))
	}

	out := make([]*models.AuditRecord, 0, len(docs))
	for i := range docs {
		rec, err := docs[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
