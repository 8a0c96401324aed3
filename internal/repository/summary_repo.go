package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"peer-review-service/internal/database"
	"peer-review-service/internal/domain"

	"github.com/google/uuid"
)

// SummaryRepository реализует хранилище агрегатных счетчиков в PostgreSQL.
type SummaryRepository struct {
	q database.Querier
}

// NewSummaryRepository создает новый экземпляр SummaryRepository.
func NewSummaryRepository(db *sql.DB) domain.SummaryRepository {
	return &SummaryRepository{q: db}
}

// WithTx возвращает копию репозитория, привязанную к транзакции.
func (r *SummaryRepository) WithTx(tx *sql.Tx) domain.SummaryRepository {
	if tx == nil {
		return r
	}
	return &SummaryRepository{q: tx}
}

// Create создает summary с нулевыми счетчиками. Уникальный индекс по
// (unit_id, reviewee_key) закрывает гонку двух одновременных стартов.
func (r *SummaryRepository) Create(ctx context.Context, summary *domain.ReviewSummary) error {
	if summary.Key == "" {
		summary.Key = uuid.NewString()
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO review_summaries
			(summary_key, unit_id, submission_key, reviewee_key, assigned_count, completed_count, expired_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		summary.Key, summary.UnitID, summary.SubmissionKey, summary.RevieweeKey,
		summary.AssignedCount, summary.CompletedCount, summary.ExpiredCount,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrReviewAlreadyStarted
		}
		return fmt.Errorf("failed to create review summary: %w", err)
	}

	return nil
}

// GetByKey возвращает summary по ключу.
func (r *SummaryRepository) GetByKey(ctx context.Context, summaryKey string) (*domain.ReviewSummary, error) {
	summary := &domain.ReviewSummary{}
	err := r.q.QueryRowContext(ctx, `
		SELECT summary_key, unit_id, submission_key, reviewee_key,
		       assigned_count, completed_count, expired_count
		FROM review_summaries WHERE summary_key = $1`,
		summaryKey,
	).Scan(
		&summary.Key, &summary.UnitID, &summary.SubmissionKey, &summary.RevieweeKey,
		&summary.AssignedCount, &summary.CompletedCount, &summary.ExpiredCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSummaryNotFound
		}
		return nil, fmt.Errorf("failed to get review summary: %w", err)
	}

	return summary, nil
}

// GetByReviewee возвращает единственный summary пары (unit, reviewee).
// Второй найденный - сломанный инвариант, а не обычная ошибка: наружу
// уходит ErrSummaryConflict, операция прерывается.
func (r *SummaryRepository) GetByReviewee(ctx context.Context, unitID, revieweeKey string) (*domain.ReviewSummary, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT summary_key, unit_id, submission_key, reviewee_key,
		       assigned_count, completed_count, expired_count
		FROM review_summaries
		WHERE unit_id = $1 AND reviewee_key = $2
		LIMIT 2`,
		unitID, revieweeKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get review summary: %w", err)
	}
	defer rows.Close()

	var found []*domain.ReviewSummary
	for rows.Next() {
		summary := &domain.ReviewSummary{}
		if err := rows.Scan(
			&summary.Key, &summary.UnitID, &summary.SubmissionKey, &summary.RevieweeKey,
			&summary.AssignedCount, &summary.CompletedCount, &summary.ExpiredCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review summary: %w", err)
		}
		found = append(found, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read review summaries: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, domain.ErrSummaryNotFound
	case 1:
		return found[0], nil
	default:
		return nil, domain.ErrSummaryConflict
	}
}

// AdjustCounters атомарно сдвигает счетчики summary на указанные дельты.
func (r *SummaryRepository) AdjustCounters(ctx context.Context, summaryKey string, delta domain.CounterDelta) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE review_summaries
		SET assigned_count  = assigned_count + $2,
		    completed_count = completed_count + $3,
		    expired_count   = expired_count + $4
		WHERE summary_key = $1`,
		summaryKey, delta.Assigned, delta.Completed, delta.Expired,
	)
	if err != nil {
		return fmt.Errorf("failed to adjust summary counters: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check adjusted rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrSummaryNotFound
	}

	return nil
}

// ListByUnit возвращает все summary юнита.
func (r *SummaryRepository) ListByUnit(ctx context.Context, unitID string) ([]*domain.ReviewSummary, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT summary_key, unit_id, submission_key, reviewee_key,
		       assigned_count, completed_count, expired_count
		FROM review_summaries
		WHERE unit_id = $1
		ORDER BY reviewee_key`,
		unitID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list review summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*domain.ReviewSummary
	for rows.Next() {
		summary := &domain.ReviewSummary{}
		if err := rows.Scan(
			&summary.Key, &summary.UnitID, &summary.SubmissionKey, &summary.RevieweeKey,
			&summary.AssignedCount, &summary.CompletedCount, &summary.ExpiredCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review summary: %w", err)
		}
		summaries = append(summaries, summary)
	}

	return summaries, rows.Err()
}

// ListUnits возвращает список юнитов, в которых идет процесс ревью.
func (r *SummaryRepository) ListUnits(ctx context.Context) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT DISTINCT unit_id FROM review_summaries ORDER BY unit_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	defer rows.Close()

	var units []string
	for rows.Next() {
		var unit string
		if err := rows.Scan(&unit); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		units = append(units, unit)
	}

	return units, rows.Err()
}
