package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"peer-review-service/internal/database"
	"peer-review-service/internal/domain"
)

// ReviewRepository реализует хранилище содержимого ревью в PostgreSQL.
type ReviewRepository struct {
	q database.Querier
}

// NewReviewRepository создает новый экземпляр ReviewRepository.
func NewReviewRepository(db *sql.DB) domain.ReviewRepository {
	return &ReviewRepository{q: db}
}

// WithTx возвращает копию репозитория, привязанную к транзакции.
func (r *ReviewRepository) WithTx(tx *sql.Tx) domain.ReviewRepository {
	if tx == nil {
		return r
	}
	return &ReviewRepository{q: tx}
}

// Upsert создает или перезаписывает содержимое ревью. Черновики
// сохраняются сюда же, поэтому операция идемпотентна.
func (r *ReviewRepository) Upsert(ctx context.Context, review *domain.Review) error {
	review.UpdatedOn = time.Now().UTC()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO reviews (review_key, contents, updated_on)
		VALUES ($1, $2, $3)
		ON CONFLICT (review_key)
		DO UPDATE SET contents = EXCLUDED.contents, updated_on = EXCLUDED.updated_on`,
		review.Key, review.Contents, review.UpdatedOn,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert review: %w", err)
	}

	return nil
}

// GetByKey возвращает ревью по ключу.
func (r *ReviewRepository) GetByKey(ctx context.Context, reviewKey string) (*domain.Review, error) {
	review := &domain.Review{}
	err := r.q.QueryRowContext(ctx, `
		SELECT review_key, contents, updated_on FROM reviews WHERE review_key = $1`,
		reviewKey,
	).Scan(&review.Key, &review.Contents, &review.UpdatedOn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrReviewNotFound
		}
		return nil, fmt.Errorf("failed to get review: %w", err)
	}

	return review, nil
}

// ListByKeys возвращает ревью по списку ключей одним запросом. Порядок
// результата не гарантируется; отсутствующие ключи молча пропускаются.
func (r *ReviewRepository) ListByKeys(ctx context.Context, reviewKeys []string) ([]*domain.Review, error) {
	if len(reviewKeys) == 0 {
		return []*domain.Review{}, nil
	}

	rows, err := r.q.QueryContext(ctx, `
		SELECT review_key, contents, updated_on FROM reviews
		WHERE review_key = ANY($1)`,
		reviewKeys,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]*domain.Review, 0, len(reviewKeys))
	for rows.Next() {
		review := &domain.Review{}
		if err := rows.Scan(&review.Key, &review.Contents, &review.UpdatedOn); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, review)
	}

	return reviews, rows.Err()
}
