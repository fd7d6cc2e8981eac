package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/assettrack/internal/apperr"
	"github.com/wolfeidau/assettrack/internal/audit"
	"github.com/wolfeidau/assettrack/internal/models"
	"github.com/wolfeidau/assettrack/internal/store"
	"github.com/wolfeidau/assettrack/internal/telemetry"
)

// SoftDelete marks a product deprecated and deleted. A recoverable product
// still held by a member can't be deleted until it is unassigned. An
// embedded product leaves its member and stays behind as a deleted
// standalone record.
//
// The transaction is retried on transient conflicts up to the configured
// number of attempts; any other failure aborts at once.
func (e *Engine) SoftDelete(ctx context.Context, tenant string, id uuid.UUID, actor string) error {
	return e.op(ctx, "soft_delete", tenant, actor, func(ctx context.Context, h store.Handle) error {
		logger := log.Ctx(ctx)
		metrics := telemetry.GetMetrics()

		var deleted *mutation
		attempts := 0

		operation := func() (struct{}, error) {
			attempts++
			m, err := e.softDeleteTx(ctx, h, id)
			switch {
			case err == nil:
				deleted = m
				return struct{}{}, nil
			case store.IsTransient(err):
				return struct{}{}, err
			default:
				return struct{}{}, backoff.Permanent(err)
			}
		}

		notify := func(err error, wait time.Duration) {
			metrics.DeleteRetriesTotal.Add(ctx, 1)
			logger.Warn().Err(err).
				Int("attempt", attempts).
				Dur("wait", wait).
				Str("product_id", id.String()).
				Msg("Soft delete hit a transient conflict, retrying")
		}

		_, err := backoff.Retry(ctx, operation,
			backoff.WithBackOff(e.deleteBackOff()),
			backoff.WithMaxTries(e.retry.MaxAttempts),
			backoff.WithNotify(notify),
		)
		if err != nil {
			if store.IsTransient(err) {
				return apperr.ExhaustedRetries(err, attempts)
			}
			return err
		}

		oldData, err := audit.ProductSnapshot(deleted.before)
		if err != nil {
			return err
		}
		e.audit.Record(ctx, tenant, audit.Entry{
			Action:   models.AuditActionDelete,
			ItemKind: models.ItemKindAsset,
			ActorID:  actor,
			OldData:  oldData,
		})

		logger.Info().
			Str("product_id", id.String()).
			Str("from", deleted.from.String()).
			Int("attempts", attempts).
			Msg("Soft deleted product")
		return nil
	})
}

func (e *Engine) softDeleteTx(ctx context.Context, h store.Handle, id uuid.UUID) (*mutation, error) {
	var result *mutation

	err := h.WithTx(ctx, func(ctx context.Context, tx store.Accessors) error {
		assets := store.Assets(tx)

		loc, err := assets.Find(ctx, id)
		if err != nil {
			return assetNotFound(err, id)
		}

		before := loc.Product
		if loc.Placement.IsEmbedded() && before.Recoverable {
			return apperr.BusinessRule(apperr.CodeRecoverableAssigned,
				"asset %s is recoverable and still assigned to %s, unassign it first", id, before.AssignedEmail)
		}

		now := e.now().UTC()
		after := before.Clone()
		after.IsDeleted = true
		after.DeletedAt = &now
		after.Status = models.StatusDeprecated
		after.UpdatedAt = now
		if loc.Placement.IsEmbedded() {
			after.LastAssigned = breadcrumb(before)
		}

		if err := assets.Move(ctx, after, loc.Placement, store.Standalone()); err != nil {
			return fmt.Errorf("failed to store deleted product %s: %w", id, err)
		}

		result = &mutation{before: before, after: after, from: loc.Placement, to: store.Standalone()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *Engine) deleteBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.retry.InitialInterval
	b.MaxInterval = e.retry.MaxInterval
	return b
}
