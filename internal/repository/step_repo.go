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
)

const stepColumns = `step_key, unit_id, submission_key, reviewee_key, reviewer_key,
	review_key, summary_key, assigner, status, created_on`

// StepRepository реализует хранилище шагов ревью в PostgreSQL.
type StepRepository struct {
	q database.Querier
}

// NewStepRepository создает новый экземпляр StepRepository.
func NewStepRepository(db *sql.DB) domain.StepRepository {
	return &StepRepository{q: db}
}

// WithTx возвращает копию репозитория, привязанную к транзакции.
func (r *StepRepository) WithTx(tx *sql.Tx) domain.StepRepository {
	if tx == nil {
		return r
	}
	return &StepRepository{q: tx}
}

// Create создает новый шаг ревью.
func (r *StepRepository) Create(ctx context.Context, step *domain.ReviewStep) error {
	if step.Key == "" {
		step.Key = uuid.NewString()
	}
	if step.CreatedOn.IsZero() {
		step.CreatedOn = time.Now().UTC()
	}

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO review_steps
			(step_key, unit_id, submission_key, reviewee_key, reviewer_key,
			 review_key, summary_key, assigner, status, created_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		step.Key, step.UnitID, step.SubmissionKey, step.RevieweeKey, step.ReviewerKey,
		nullable(step.ReviewKey), step.SummaryKey, string(step.Assigner), string(step.State), step.CreatedOn,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// Активный шаг пары уже есть: конкурентное назначение
			return domain.ErrInvalidTransition
		}
		return fmt.Errorf("failed to create review step: %w", err)
	}

	return nil
}

// GetByKey возвращает шаг по ключу.
func (r *StepRepository) GetByKey(ctx context.Context, stepKey string) (*domain.ReviewStep, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+stepColumns+` FROM review_steps WHERE step_key = $1`,
		stepKey,
	)

	step, err := scanStepRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrStepNotFound
		}
		return nil, fmt.Errorf("failed to get review step: %w", err)
	}

	return step, nil
}

// GetByPair возвращает шаг пары (reviewer, reviewee) в юните. Через
// реактивацию пара всегда переиспользует один и тот же шаг, поэтому на
// всякий случай берется самый свежий.
func (r *StepRepository) GetByPair(ctx context.Context, unitID, reviewerKey, revieweeKey string) (*domain.ReviewStep, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+stepColumns+` FROM review_steps
		 WHERE unit_id = $1 AND reviewer_key = $2 AND reviewee_key = $3
		 ORDER BY created_on DESC
		 LIMIT 1`,
		unitID, reviewerKey, revieweeKey,
	)

	step, err := scanStepRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrStepNotFound
		}
		return nil, fmt.Errorf("failed to get review step by pair: %w", err)
	}

	return step, nil
}

// UpdateState переводит шаг в новое состояние. Валидация перехода
// выполняется на уровне Consistency Manager'а, здесь только запись.
func (r *StepRepository) UpdateState(ctx context.Context, stepKey string, state domain.StepState) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE review_steps SET status = $2 WHERE step_key = $1`,
		stepKey, string(state),
	)
	if err != nil {
		return fmt.Errorf("failed to update step state: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check updated rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrStepNotFound
	}

	return nil
}

// SetReviewKey привязывает ключ ревью к шагу при первом сохранении.
func (r *StepRepository) SetReviewKey(ctx context.Context, stepKey, reviewKey string) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE review_steps SET review_key = $2 WHERE step_key = $1`,
		stepKey, reviewKey,
	)
	if err != nil {
		return fmt.Errorf("failed to set step review key: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check updated rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrStepNotFound
	}

	return nil
}

// ListByReviewer возвращает активные шаги ревьювера в юните.
func (r *StepRepository) ListByReviewer(ctx context.Context, unitID, reviewerKey string) ([]*domain.ReviewStep, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+stepColumns+` FROM review_steps
		 WHERE unit_id = $1 AND reviewer_key = $2 AND status <> $3
		 ORDER BY created_on`,
		unitID, reviewerKey, string(domain.StepRemoved),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps by reviewer: %w", err)
	}

	return scanStepRows(rows)
}

// ListByKeys возвращает шаги по списку ключей одним запросом.
func (r *StepRepository) ListByKeys(ctx context.Context, stepKeys []string) ([]*domain.ReviewStep, error) {
	if len(stepKeys) == 0 {
		return []*domain.ReviewStep{}, nil
	}

	rows, err := r.q.QueryContext(ctx,
		`SELECT `+stepColumns+` FROM review_steps WHERE step_key = ANY($1)`,
		stepKeys,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps by keys: %w", err)
	}

	return scanStepRows(rows)
}

// ListBySummary возвращает все шаги summary, включая удаленные.
func (r *StepRepository) ListBySummary(ctx context.Context, summaryKey string) ([]*domain.ReviewStep, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+stepColumns+` FROM review_steps
		 WHERE summary_key = $1
		 ORDER BY created_on`,
		summaryKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps by summary: %w", err)
	}

	return scanStepRows(rows)
}

// ListStale исполняет ExpiryQuery: кандидаты на протухание, старейшие
// первыми (FIFO-справедливость зачистки).
func (r *StepRepository) ListStale(ctx context.Context, q domain.ExpiryQuery) ([]*domain.ReviewStep, error) {
	order := "DESC"
	if q.OldestFirst {
		order = "ASC"
	}

	rows, err := r.q.QueryContext(ctx,
		`SELECT `+stepColumns+` FROM review_steps
		 WHERE unit_id = $1 AND status = $2 AND created_on < $3
		 ORDER BY created_on `+order,
		q.UnitID, string(q.State), q.CreatedBefore,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale steps: %w", err)
	}

	return scanStepRows(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStepRow(row rowScanner) (*domain.ReviewStep, error) {
	step := &domain.ReviewStep{}
	var reviewKey sql.NullString
	var assigner, status string

	err := row.Scan(
		&step.Key, &step.UnitID, &step.SubmissionKey, &step.RevieweeKey, &step.ReviewerKey,
		&reviewKey, &step.SummaryKey, &assigner, &status, &step.CreatedOn,
	)
	if err != nil {
		return nil, err
	}

	if reviewKey.Valid {
		step.ReviewKey = reviewKey.String
	}
	step.Assigner = domain.AssignerKind(assigner)
	step.State = domain.StepState(status)

	return step, nil
}

func scanStepRows(rows *sql.Rows) ([]*domain.ReviewStep, error) {
	defer rows.Close()

	var steps []*domain.ReviewStep
	for rows.Next() {
		step, err := scanStepRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review step: %w", err)
		}
		steps = append(steps, step)
	}

	return steps, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
