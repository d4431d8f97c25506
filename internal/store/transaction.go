package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskboard-api/internal/platform/logger"
)

// TxFn is a function that executes within a database transaction.
// The transaction is committed if it returns nil and rolled back otherwise.
type TxFn func(ctx context.Context, tx *sql.Tx) error

// RunInTransaction executes fn within a transaction on db.
// A panic inside fn rolls the transaction back and is re-raised.
func RunInTransaction(ctx context.Context, db *sql.DB, fn TxFn) error {
	log := logger.FromContextOrDefault(ctx, slog.Default())

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", slog.String("error", err.Error()))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("failed to roll back transaction after panic",
					slog.String("error", rbErr.Error()),
					slog.Any("panic", p))
			}
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error("failed to roll back transaction",
				slog.String("rollback_error", rbErr.Error()),
				slog.String("original_error", err.Error()))
			return fmt.Errorf("error rolling back transaction: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit transaction", slog.String("error", err.Error()))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
