package usecase

import (
	"context"
	"errors"
	"fmt"

	"peer-review-service/internal/domain"
)

// ReviewFacade - тонкий диспетчер внешней поверхности движка: выбирает
// матчер юнита по сконфигурированному имени и пробрасывает вызовы в его
// глаголы. Привязки имен проверяются при сборке, не при вызове.
type ReviewFacade struct {
	registry       *MatcherRegistry
	defaultMatcher string
	unitMatchers   map[string]string
	steps          domain.StepRepository
	summaries      domain.SummaryRepository
	subs           domain.SubmissionRepository
}

// NewReviewFacade создает фасад и валидирует конфигурацию матчеров:
// имя по умолчанию и все поюнитные привязки обязаны быть
// зарегистрированы.
func NewReviewFacade(
	registry *MatcherRegistry,
	defaultMatcher string,
	unitMatchers map[string]string,
	steps domain.StepRepository,
	summaries domain.SummaryRepository,
	subs domain.SubmissionRepository,
) (domain.Facade, error) {
	if _, err := registry.Resolve(defaultMatcher); err != nil {
		return nil, fmt.Errorf("default matcher: %w", err)
	}
	for unitID, name := range unitMatchers {
		if _, err := registry.Resolve(name); err != nil {
			return nil, fmt.Errorf("unit %q matcher: %w", unitID, err)
		}
	}

	return &ReviewFacade{
		registry:       registry,
		defaultMatcher: defaultMatcher,
		unitMatchers:   unitMatchers,
		steps:          steps,
		summaries:      summaries,
		subs:           subs,
	}, nil
}

// matcherFor возвращает матчер юнита. Конфигурация провалидирована при
// сборке, поэтому ошибки здесь быть не может.
func (f *ReviewFacade) matcherFor(unitID string) domain.Matcher {
	name := f.defaultMatcher
	if override, exists := f.unitMatchers[unitID]; exists {
		name = override
	}
	matcher, _ := f.registry.Resolve(name)
	return matcher
}

func (f *ReviewFacade) Assign(ctx context.Context, unitID, revieweeKey, reviewerKey string) (string, error) {
	return f.matcherFor(unitID).Assign(ctx, unitID, revieweeKey, reviewerKey)
}

func (f *ReviewFacade) Cancel(ctx context.Context, unitID, stepKey string) (string, error) {
	return f.matcherFor(unitID).Cancel(ctx, stepKey)
}

func (f *ReviewFacade) NewReviewFor(ctx context.Context, unitID, reviewerKey string) (*domain.ReviewStep, error) {
	return f.matcherFor(unitID).NewReviewFor(ctx, unitID, reviewerKey)
}

func (f *ReviewFacade) StepsBy(ctx context.Context, unitID, reviewerKey string) ([]*domain.ReviewStep, error) {
	return f.matcherFor(unitID).StepsBy(ctx, unitID, reviewerKey)
}

func (f *ReviewFacade) ReviewsByKeys(ctx context.Context, unitID string, reviewKeys []string, tolerateHoles bool) ([]*domain.Review, error) {
	return f.matcherFor(unitID).ReviewsByKeys(ctx, reviewKeys, tolerateHoles)
}

func (f *ReviewFacade) StartReviewProcess(ctx context.Context, unitID, revieweeKey string) (string, error) {
	return f.matcherFor(unitID).StartReviewProcess(ctx, unitID, revieweeKey)
}

func (f *ReviewFacade) CompleteReview(ctx context.Context, unitID, stepKey string, contents []byte, markCompleted bool) error {
	return f.matcherFor(unitID).CompleteReview(ctx, stepKey, contents, markCompleted)
}

// StepsByKeys возвращает шаги по списку ключей.
func (f *ReviewFacade) StepsByKeys(ctx context.Context, stepKeys []string) ([]*domain.ReviewStep, error) {
	return f.steps.ListByKeys(ctx, stepKeys)
}

// SubmissionAndStepsFor возвращает работу reviewee вместе со всеми
// шагами ревью по ней.
func (f *ReviewFacade) SubmissionAndStepsFor(ctx context.Context, unitID, revieweeKey string) (*domain.Submission, []*domain.ReviewStep, error) {
	submissionKey, err := f.subs.KeyFor(ctx, unitID, revieweeKey)
	if err != nil {
		return nil, nil, err
	}

	submission, err := f.subs.GetByKey(ctx, submissionKey)
	if err != nil {
		return nil, nil, err
	}

	// Шаги работы - это шаги ее summary. Работа без запущенного
	// процесса ревью возвращается с пустым списком шагов.
	summary, err := f.summaries.GetByReviewee(ctx, unitID, revieweeKey)
	if err != nil {
		if errors.Is(err, domain.ErrSummaryNotFound) {
			return submission, []*domain.ReviewStep{}, nil
		}
		return nil, nil, err
	}

	steps, err := f.steps.ListBySummary(ctx, summary.Key)
	if err != nil {
		return nil, nil, err
	}

	return submission, steps, nil
}

// SubmissionExists проверяет, сдана ли работа пары (unit, reviewee).
func (f *ReviewFacade) SubmissionExists(ctx context.Context, unitID, revieweeKey string) (bool, error) {
	return f.subs.Exists(ctx, unitID, revieweeKey)
}
