package usecase

import (
	"context"
	"errors"
	"time"

	"peer-review-service/internal/domain"

	"github.com/sirupsen/logrus"
)

// ExpirySweeper находит протухшие назначения и гасит их по одному.
// Каждый кандидат обрабатывается в собственной транзакции: сбой на
// одной записи логируется и не прерывает зачистку целиком.
type ExpirySweeper struct {
	manager domain.ReviewManager
	steps   domain.StepRepository
	logger  *logrus.Logger
}

// NewExpirySweeper создает новый экземпляр ExpirySweeper.
func NewExpirySweeper(manager domain.ReviewManager, steps domain.StepRepository, logger *logrus.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		manager: manager,
		steps:   steps,
		logger:  logger,
	}
}

// GetExpiryQuery - чистая половина конструирования запроса зачистки.
// Кандидаты: ASSIGNED шаги юнита старше reviewWindow, старейшие первыми.
// Удаленные и завершенные шаги под фильтр состояния не попадают.
func GetExpiryQuery(unitID string, reviewWindow time.Duration, now time.Time) domain.ExpiryQuery {
	return domain.ExpiryQuery{
		UnitID:        unitID,
		State:         domain.StepAssigned,
		CreatedBefore: now.Add(-reviewWindow),
		OldestFirst:   true,
	}
}

// ExpireStale гасит все протухшие назначения юнита. Возвращает итог
// прохода; ошибка наружу уходит только если не удалось получить самих
// кандидатов.
func (s *ExpirySweeper) ExpireStale(ctx context.Context, reviewWindow time.Duration, unitID string) (*domain.SweepResult, error) {
	candidates, err := s.steps.ListStale(ctx, GetExpiryQuery(unitID, reviewWindow, time.Now().UTC()))
	if err != nil {
		return nil, err
	}

	result := &domain.SweepResult{Candidates: len(candidates)}

	for _, step := range candidates {
		entry := s.logger.WithFields(logrus.Fields{
			"step_key":     step.Key,
			"unit_id":      unitID,
			"reviewer_key": step.ReviewerKey,
			"reviewee_key": step.RevieweeKey,
		})

		// Каждый Expire - отдельная транзакция
		_, err := s.manager.Expire(ctx, step.Key)
		switch {
		case err == nil:
			result.Expired++
			entry.Info("Expired stale review step")
		case errors.Is(err, domain.ErrInvalidTransition),
			errors.Is(err, domain.ErrStepAlreadyRemoved),
			errors.Is(err, domain.ErrStepNotFound):
			// Запись изменилась конкурентно между выборкой и Expire
			result.Skipped++
			entry.WithError(err).Warn("Skipping stale review step")
		default:
			result.Failed++
			entry.WithError(err).Error("Failed to expire stale review step")
		}
	}

	return result, nil
}

// ExpireStaleAll прогоняет зачистку по каждому юниту с активным
// процессом ревью.
func (s *ExpirySweeper) ExpireStaleAll(ctx context.Context, reviewWindow time.Duration, units []string) *domain.SweepResult {
	total := &domain.SweepResult{}
	for _, unitID := range units {
		result, err := s.ExpireStale(ctx, reviewWindow, unitID)
		if err != nil {
			s.logger.WithError(err).WithField("unit_id", unitID).Error("Sweep failed for unit")
			continue
		}
		total.Candidates += result.Candidates
		total.Expired += result.Expired
		total.Skipped += result.Skipped
		total.Failed += result.Failed
	}
	return total
}
