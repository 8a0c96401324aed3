package usecase

import (
	"context"
	"database/sql"
	"errors"

	"peer-review-service/internal/domain"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ReviewManager реализует транзакционные примитивы согласованного
// изменения шага ревью и его summary. Каждая операция исполняется в
// одной транзакции; при ошибке никаких частичных изменений не остается.
type ReviewManager struct {
	tx        domain.TxRunner
	steps     domain.StepRepository
	summaries domain.SummaryRepository
	reviews   domain.ReviewRepository
	logger    *logrus.Logger
}

// NewReviewManager создает новый экземпляр ReviewManager.
func NewReviewManager(
	tx domain.TxRunner,
	steps domain.StepRepository,
	summaries domain.SummaryRepository,
	reviews domain.ReviewRepository,
	logger *logrus.Logger,
) domain.ReviewManager {
	return &ReviewManager{
		tx:        tx,
		steps:     steps,
		summaries: summaries,
		reviews:   reviews,
		logger:    logger,
	}
}

// StartReviewProcess создает нулевой summary для работы. Второй старт
// той же пары (unit, reviewee) возвращает ErrReviewAlreadyStarted, не
// трогая существующий summary.
func (m *ReviewManager) StartReviewProcess(ctx context.Context, unitID, submissionKey, revieweeKey string) (string, error) {
	if unitID == "" {
		return "", domain.ErrInvalidUnitID
	}
	if revieweeKey == "" {
		return "", domain.ErrInvalidRevieweeKey
	}

	summary := &domain.ReviewSummary{
		Key:           uuid.NewString(),
		UnitID:        unitID,
		SubmissionKey: submissionKey,
		RevieweeKey:   revieweeKey,
	}

	err := m.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		summaries := m.summaries.WithTx(tx)

		// 1. Проверяем, что процесс еще не запущен
		_, err := summaries.GetByReviewee(ctx, unitID, revieweeKey)
		switch {
		case err == nil:
			return domain.ErrReviewAlreadyStarted
		case errors.Is(err, domain.ErrSummaryNotFound):
			// ожидаемый путь
		default:
			return err
		}

		// 2. Создаем summary с нулевыми счетчиками; гонку двух стартов
		// закрывает уникальный индекс
		return summaries.Create(ctx, summary)
	})
	if err != nil {
		return "", m.alarmOnConflict(err, unitID, revieweeKey)
	}

	return summary.Key, nil
}

// Assign назначает reviewer на работу reviewee. Отсутствие summary
// это ошибка последовательности вызовов на стороне вызывающего кода,
// а не пользовательская ситуация.
func (m *ReviewManager) Assign(ctx context.Context, unitID, submissionKey, revieweeKey, reviewerKey string, assigner domain.AssignerKind) (string, error) {
	if unitID == "" {
		return "", domain.ErrInvalidUnitID
	}
	if revieweeKey == "" {
		return "", domain.ErrInvalidRevieweeKey
	}
	if reviewerKey == "" {
		return "", domain.ErrInvalidReviewerKey
	}
	if reviewerKey == revieweeKey {
		return "", domain.ErrSelfReview
	}

	var stepKey string

	err := m.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		steps := m.steps.WithTx(tx)
		summaries := m.summaries.WithTx(tx)

		// 1. Summary обязан уже существовать
		summary, err := summaries.GetByReviewee(ctx, unitID, revieweeKey)
		if err != nil {
			if errors.Is(err, domain.ErrSummaryNotFound) {
				return domain.ErrReviewNotStarted
			}
			return err
		}

		// 2. Ищем существующий шаг пары
		step, err := steps.GetByPair(ctx, unitID, reviewerKey, revieweeKey)
		if err != nil && !errors.Is(err, domain.ErrStepNotFound) {
			return err
		}

		// 3. Шага нет - создаем новый
		if step == nil {
			step = &domain.ReviewStep{
				Key:           uuid.NewString(),
				UnitID:        unitID,
				SubmissionKey: submissionKey,
				RevieweeKey:   revieweeKey,
				ReviewerKey:   reviewerKey,
				SummaryKey:    summary.Key,
				Assigner:      assigner,
				State:         domain.StepAssigned,
			}
			if err := steps.Create(ctx, step); err != nil {
				return err
			}
			stepKey = step.Key
			return summaries.AdjustCounters(ctx, summary.Key, domain.CounterDelta{Assigned: 1})
		}

		// 4. Шаг есть - либо реактивация, либо отказ без побочных эффектов
		if !step.State.CanTransition(domain.StepAssigned) {
			return domain.ErrInvalidTransition
		}

		if err := steps.UpdateState(ctx, step.Key, domain.StepAssigned); err != nil {
			return err
		}
		stepKey = step.Key

		// Счетчик переносится из прежней корзины; удаленный шаг в
		// счетчиках не учитывался, поэтому только приход в assigned
		delta := domain.CounterDelta{Assigned: 1}
		if step.State == domain.StepExpired {
			delta.Expired = -1
		}
		return summaries.AdjustCounters(ctx, summary.Key, delta)
	})
	if err != nil {
		return "", m.alarmOnConflict(err, unitID, revieweeKey)
	}

	return stepKey, nil
}

// Cancel мягко удаляет шаг, уменьшая счетчик его текущего состояния.
// Удаленный шаг может быть позже реактивирован назначением.
func (m *ReviewManager) Cancel(ctx context.Context, stepKey string) (string, error) {
	if stepKey == "" {
		return "", domain.ErrInvalidStepKey
	}

	err := m.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		steps := m.steps.WithTx(tx)
		summaries := m.summaries.WithTx(tx)

		// 1. Шаг и summary обязаны существовать
		step, err := steps.GetByKey(ctx, stepKey)
		if err != nil {
			return err
		}
		summary, err := summaries.GetByKey(ctx, step.SummaryKey)
		if err != nil {
			return err
		}

		// 2. Повторное удаление - отдельная ошибка, чтобы вызывающий
		// код мог предложить восстановление
		if step.Removed() {
			return domain.ErrStepAlreadyRemoved
		}

		// 3. Удаляем и убираем шаг из корзины его текущего состояния
		if err := steps.UpdateState(ctx, step.Key, domain.StepRemoved); err != nil {
			return err
		}

		var delta domain.CounterDelta
		switch step.State {
		case domain.StepAssigned:
			delta.Assigned = -1
		case domain.StepCompleted:
			delta.Completed = -1
		case domain.StepExpired:
			delta.Expired = -1
		}
		return summaries.AdjustCounters(ctx, summary.Key, delta)
	})
	if err != nil {
		return "", err
	}

	return stepKey, nil
}

// Expire переводит ASSIGNED шаг в EXPIRED, перенося единицу счетчика из
// assigned в expired.
func (m *ReviewManager) Expire(ctx context.Context, stepKey string) (string, error) {
	if stepKey == "" {
		return "", domain.ErrInvalidStepKey
	}

	err := m.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		steps := m.steps.WithTx(tx)
		summaries := m.summaries.WithTx(tx)

		step, err := steps.GetByKey(ctx, stepKey)
		if err != nil {
			return err
		}
		summary, err := summaries.GetByKey(ctx, step.SummaryKey)
		if err != nil {
			return err
		}

		if err := m.checkAssigned(step); err != nil {
			return err
		}

		if err := steps.UpdateState(ctx, step.Key, domain.StepExpired); err != nil {
			return err
		}
		return summaries.AdjustCounters(ctx, summary.Key, domain.CounterDelta{Assigned: -1, Expired: 1})
	})
	if err != nil {
		return "", err
	}

	return stepKey, nil
}

// CompleteReview всегда записывает содержимое ревью. Черновик
// (markCompleted=false) безопасно перезаписывается повторными вызовами;
// markCompleted=true дополнительно переводит шаг в COMPLETED по тем же
// правилам, что и Expire.
func (m *ReviewManager) CompleteReview(ctx context.Context, stepKey string, contents []byte, markCompleted bool) error {
	if stepKey == "" {
		return domain.ErrInvalidStepKey
	}

	return m.tx.WithinTx(ctx, func(tx *sql.Tx) error {
		steps := m.steps.WithTx(tx)
		summaries := m.summaries.WithTx(tx)
		reviews := m.reviews.WithTx(tx)

		step, err := steps.GetByKey(ctx, stepKey)
		if err != nil {
			return err
		}

		// 1. Ключ ревью выдается при первом сохранении. Удаленный шаг
		// мутировать нельзя, в том числе привязкой ключа.
		reviewKey := step.ReviewKey
		if reviewKey == "" {
			if step.Removed() {
				return domain.ErrStepAlreadyRemoved
			}
			reviewKey = uuid.NewString()
			if err := steps.SetReviewKey(ctx, step.Key, reviewKey); err != nil {
				return err
			}
		}

		// 2. Содержимое пишется всегда, черновик это единственный эффект
		if err := reviews.Upsert(ctx, &domain.Review{Key: reviewKey, Contents: contents}); err != nil {
			return err
		}
		if !markCompleted {
			return nil
		}

		// 3. Завершение - переход состояния с переносом счетчика
		summary, err := summaries.GetByKey(ctx, step.SummaryKey)
		if err != nil {
			return err
		}

		if err := m.checkAssigned(step); err != nil {
			return err
		}

		if err := steps.UpdateState(ctx, step.Key, domain.StepCompleted); err != nil {
			return err
		}
		return summaries.AdjustCounters(ctx, summary.Key, domain.CounterDelta{Assigned: -1, Completed: 1})
	})
}

// SubmissionKeyFor возвращает ключ работы по summary пары (unit, reviewee).
func (m *ReviewManager) SubmissionKeyFor(ctx context.Context, unitID, revieweeKey string) (string, error) {
	summary, err := m.summaries.GetByReviewee(ctx, unitID, revieweeKey)
	if err != nil {
		return "", m.alarmOnConflict(err, unitID, revieweeKey)
	}

	return summary.SubmissionKey, nil
}

// checkAssigned проверяет, что шаг активен и находится в ASSIGNED.
func (m *ReviewManager) checkAssigned(step *domain.ReviewStep) error {
	if step.Removed() {
		return domain.ErrStepAlreadyRemoved
	}
	if step.State != domain.StepAssigned {
		return domain.ErrInvalidTransition
	}
	return nil
}

// alarmOnConflict логирует сломанный инвариант "один summary на
// (unit, reviewee)" с повышенной серьезностью и возвращает ошибку как есть.
func (m *ReviewManager) alarmOnConflict(err error, unitID, revieweeKey string) error {
	if errors.Is(err, domain.ErrSummaryConflict) {
		m.logger.WithFields(logrus.Fields{
			"unit_id":      unitID,
			"reviewee_key": revieweeKey,
		}).Error("Integrity violation: multiple review summaries for submission")
	}
	return err
}
