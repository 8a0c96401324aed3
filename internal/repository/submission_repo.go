package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"peer-review-service/internal/database"
	"peer-review-service/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation - код ошибки PostgreSQL для нарушения уникальности.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// SubmissionRepository реализует хранилище сданных работ в PostgreSQL.
type SubmissionRepository struct {
	q database.Querier
}

// NewSubmissionRepository создает новый экземпляр SubmissionRepository.
func NewSubmissionRepository(db *sql.DB) domain.SubmissionRepository {
	return &SubmissionRepository{q: db}
}

// Create сохраняет работу. Повторная сдача пары (unit, reviewee)
// отклоняется: работа пишется один раз и далее не мутируется.
func (r *SubmissionRepository) Create(ctx context.Context, sub *domain.Submission) error {
	if sub.Key == "" {
		sub.Key = uuid.NewString()
	}
	if sub.CreatedOn.IsZero() {
		sub.CreatedOn = time.Now().UTC()
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO submissions (submission_key, unit_id, reviewee_key, contents, created_on)
		VALUES ($1, $2, $3, $4, $5)`,
		sub.Key, sub.UnitID, sub.RevieweeKey, sub.Contents, sub.CreatedOn,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSubmissionAlreadyExist
		}
		return fmt.Errorf("failed to create submission: %w", err)
	}

	return nil
}

// KeyFor возвращает ключ работы пары (unit, reviewee).
func (r *SubmissionRepository) KeyFor(ctx context.Context, unitID, revieweeKey string) (string, error) {
	var key string
	err := r.q.QueryRowContext(ctx, `
		SELECT submission_key FROM submissions
		WHERE unit_id = $1 AND reviewee_key = $2`,
		unitID, revieweeKey,
	).Scan(&key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.ErrSubmissionNotFound
		}
		return "", fmt.Errorf("failed to get submission key: %w", err)
	}

	return key, nil
}

// ContentsOf возвращает непрозрачное содержимое работы.
func (r *SubmissionRepository) ContentsOf(ctx context.Context, submissionKey string) ([]byte, error) {
	var contents []byte
	err := r.q.QueryRowContext(ctx, `
		SELECT contents FROM submissions WHERE submission_key = $1`,
		submissionKey,
	).Scan(&contents)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission contents: %w", err)
	}

	return contents, nil
}

// GetByKey возвращает работу по ключу.
func (r *SubmissionRepository) GetByKey(ctx context.Context, submissionKey string) (*domain.Submission, error) {
	sub := &domain.Submission{}
	err := r.q.QueryRowContext(ctx, `
		SELECT submission_key, unit_id, reviewee_key, contents, created_on
		FROM submissions WHERE submission_key = $1`,
		submissionKey,
	).Scan(&sub.Key, &sub.UnitID, &sub.RevieweeKey, &sub.Contents, &sub.CreatedOn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	return sub, nil
}

// Exists проверяет существование работы пары (unit, reviewee).
func (r *SubmissionRepository) Exists(ctx context.Context, unitID, revieweeKey string) (bool, error) {
	var count int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM submissions
		WHERE unit_id = $1 AND reviewee_key = $2`,
		unitID, revieweeKey,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check submission exists: %w", err)
	}

	return count > 0, nil
}
