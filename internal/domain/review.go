package domain

import (
	"context"
	"database/sql"
	"time"
)

// Review - непрозрачный результат работы ревьювера. Движок не
// интерпретирует содержимое, только хранит его.
type Review struct {
	Key       string
	Contents  []byte
	UpdatedOn time.Time
}

// ReviewRepository определяет контракт для работы с хранилищем ревью.
type ReviewRepository interface {
	// WithTx возвращает репозиторий, привязанный к транзакции.
	WithTx(tx *sql.Tx) ReviewRepository

	// Upsert создает или перезаписывает содержимое ревью.
	Upsert(ctx context.Context, review *Review) error
	GetByKey(ctx context.Context, reviewKey string) (*Review, error)
	ListByKeys(ctx context.Context, reviewKeys []string) ([]*Review, error)
}
