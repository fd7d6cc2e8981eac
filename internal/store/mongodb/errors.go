package mongodb

import (
	"errors"
	"fmt"

	"github.com/wolfeidau/assettrack/internal/store"
	"go.mongodb.org/mongo-driver/mongo"
)

// writeConflict is the server code of a write that lost against a
// concurrent transaction.
const writeConflict = 112

// unknownCommitResult reports whether the server could not tell if a commit
// was applied.
func unknownCommitResult(err error) bool {
	var serverErr mongo.ServerError
	return errors.As(err, &serverErr) && serverErr.HasErrorLabel("UnknownTransactionCommitResult")
}

// mapMongoError maps driver errors to the store sentinel errors.
func mapMongoError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("duplicate key: %w: %w", store.ErrDuplicateKey, err)
	}

	// an unknown commit may have landed, rerunning the transaction is unsafe
	if unknownCommitResult(err) {
		return fmt.Errorf("transaction outcome unknown: %w: %w", store.ErrUnavailable, err)
	}

	var serverErr mongo.ServerError
	if errors.As(err, &serverErr) {
		if serverErr.HasErrorLabel("TransientTransactionError") || serverErr.HasErrorCode(writeConflict) {
			return fmt.Errorf("transaction conflict (retryable): %w: %w", store.ErrTransient, err)
		}
	}

	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("database connection error: %w: %w", store.ErrUnavailable, err)
	}

	return err
}
