package database

import (
	"context"
	"database/sql"
	"fmt"

	"peer-review-service/internal/domain"
)

// Querier - общий знаменатель *sql.DB и *sql.Tx. Репозитории работают
// через него, чтобы один и тот же код исполнялся внутри и вне транзакции.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxRunner реализует domain.TxRunner поверх database/sql: открывает
// транзакцию, выполняет fn и гарантирует commit либо rollback на любом
// пути выхода, включая panic.
type TxRunner struct {
	db *sql.DB
}

func NewTxRunner(db *sql.DB) domain.TxRunner {
	return &TxRunner{db: db}
}

// WithinTx выполняет fn внутри одной транзакции. Ошибка fn приводит к
// rollback и возвращается без изменений, чтобы доменные ошибки доходили
// до вызывающего кода через errors.Is.
func (r *TxRunner) WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
