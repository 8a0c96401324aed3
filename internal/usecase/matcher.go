package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"peer-review-service/internal/domain"
)

// MatcherRegistry - явный реестр матчеров, собираемый при старте и
// передаваемый в фасад. После сборки не мутируется; неизвестное имя
// обнаруживается при валидации конфигурации, а не при вызове.
type MatcherRegistry struct {
	matchers map[string]domain.Matcher
}

// NewMatcherRegistry создает реестр из явных регистраций.
func NewMatcherRegistry() *MatcherRegistry {
	return &MatcherRegistry{matchers: make(map[string]domain.Matcher)}
}

// Register добавляет матчер под именем. Повторная регистрация имени
// считается ошибкой сборки приложения.
func (r *MatcherRegistry) Register(name string, matcher domain.Matcher) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", domain.ErrUnknownMatcher)
	}
	if _, exists := r.matchers[name]; exists {
		return fmt.Errorf("matcher %q already registered", name)
	}
	r.matchers[name] = matcher
	return nil
}

// Resolve возвращает матчер по имени.
func (r *MatcherRegistry) Resolve(name string) (domain.Matcher, error) {
	matcher, exists := r.matchers[name]
	if !exists {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownMatcher, name)
	}
	return matcher, nil
}

// Names возвращает отсортированный список зарегистрированных имен.
func (r *MatcherRegistry) Names() []string {
	names := make([]string, 0, len(r.matchers))
	for name := range r.matchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PeerMatcher - матчер взаимного ревью студентов. Учет ведет строго
// через примитивы Consistency Manager'а; выбор работы делегирован
// подключаемой политике.
type PeerMatcher struct {
	manager domain.ReviewManager
	policy  domain.ReviewPolicy
	steps   domain.StepRepository
	reviews domain.ReviewRepository
	subs    domain.SubmissionStore
}

// NewPeerMatcher создает новый экземпляр PeerMatcher.
func NewPeerMatcher(
	manager domain.ReviewManager,
	policy domain.ReviewPolicy,
	steps domain.StepRepository,
	reviews domain.ReviewRepository,
	subs domain.SubmissionStore,
) domain.Matcher {
	return &PeerMatcher{
		manager: manager,
		policy:  policy,
		steps:   steps,
		reviews: reviews,
		subs:    subs,
	}
}

// Assign - административное назначение конкретной пары.
func (m *PeerMatcher) Assign(ctx context.Context, unitID, revieweeKey, reviewerKey string) (string, error) {
	submissionKey, err := m.manager.SubmissionKeyFor(ctx, unitID, revieweeKey)
	if err != nil {
		return "", err
	}

	return m.manager.Assign(ctx, unitID, submissionKey, revieweeKey, reviewerKey, domain.AssignerHuman)
}

// Cancel мягко удаляет шаг.
func (m *PeerMatcher) Cancel(ctx context.Context, stepKey string) (string, error) {
	return m.manager.Cancel(ctx, stepKey)
}

// NewReviewFor выбирает работу по политике и автоматически назначает на
// нее ревьювера.
func (m *PeerMatcher) NewReviewFor(ctx context.Context, unitID, reviewerKey string) (*domain.ReviewStep, error) {
	summary, err := m.policy.PickSubmission(ctx, unitID, reviewerKey)
	if err != nil {
		return nil, err
	}

	stepKey, err := m.manager.Assign(ctx, unitID, summary.SubmissionKey, summary.RevieweeKey, reviewerKey, domain.AssignerAuto)
	if err != nil {
		return nil, err
	}

	return m.steps.GetByKey(ctx, stepKey)
}

// StepsBy возвращает активные шаги ревьювера в юните.
func (m *PeerMatcher) StepsBy(ctx context.Context, unitID, reviewerKey string) ([]*domain.ReviewStep, error) {
	return m.steps.ListByReviewer(ctx, unitID, reviewerKey)
}

// ReviewsByKeys возвращает ревью по списку ключей. При tolerateHoles
// пустые ключи проходят насквозь позиционно как nil: непустые ключи
// уплотняются, читаются одним запросом и раскладываются обратно по
// исходным позициям.
func (m *PeerMatcher) ReviewsByKeys(ctx context.Context, reviewKeys []string, tolerateHoles bool) ([]*domain.Review, error) {
	if !tolerateHoles {
		return m.reviews.ListByKeys(ctx, reviewKeys)
	}

	compact := make([]string, 0, len(reviewKeys))
	for _, key := range reviewKeys {
		if key != "" {
			compact = append(compact, key)
		}
	}

	result := make([]*domain.Review, len(reviewKeys))
	if len(compact) == 0 {
		return result, nil
	}

	fetched, err := m.reviews.ListByKeys(ctx, compact)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*domain.Review, len(fetched))
	for _, review := range fetched {
		byKey[review.Key] = review
	}

	for i, key := range reviewKeys {
		if key == "" {
			continue
		}
		result[i] = byKey[key]
	}

	return result, nil
}

// StartReviewProcess открывает процесс ревью для работы пары.
func (m *PeerMatcher) StartReviewProcess(ctx context.Context, unitID, revieweeKey string) (string, error) {
	submissionKey, err := m.subs.KeyFor(ctx, unitID, revieweeKey)
	if err != nil {
		return "", err
	}

	return m.manager.StartReviewProcess(ctx, unitID, submissionKey, revieweeKey)
}

// CompleteReview сохраняет ревью и опционально завершает шаг.
func (m *PeerMatcher) CompleteReview(ctx context.Context, stepKey string, contents []byte, markCompleted bool) error {
	return m.manager.CompleteReview(ctx, stepKey, contents, markCompleted)
}

// LeastReviewedPolicy - поставляемая по умолчанию политика: из работ
// юнита выбирается та, у которой меньше всего назначенных и
// завершенных ревью. Собственная работа и работы, на которые ревьювер
// уже назначен, пропускаются.
type LeastReviewedPolicy struct {
	summaries domain.SummaryRepository
	steps     domain.StepRepository
}

// NewLeastReviewedPolicy создает новый экземпляр LeastReviewedPolicy.
func NewLeastReviewedPolicy(summaries domain.SummaryRepository, steps domain.StepRepository) domain.ReviewPolicy {
	return &LeastReviewedPolicy{summaries: summaries, steps: steps}
}

// PickSubmission возвращает summary наименее отревьюированной работы.
func (p *LeastReviewedPolicy) PickSubmission(ctx context.Context, unitID, reviewerKey string) (*domain.ReviewSummary, error) {
	summaries, err := p.summaries.ListByUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}

	var best *domain.ReviewSummary
	for _, summary := range summaries {
		if summary.RevieweeKey == reviewerKey {
			continue
		}

		step, err := p.steps.GetByPair(ctx, unitID, reviewerKey, summary.RevieweeKey)
		if err != nil && !errors.Is(err, domain.ErrStepNotFound) {
			return nil, err
		}
		// Пара с живым назначением или готовым ревью не предлагается
		if step != nil && (step.State == domain.StepAssigned || step.State == domain.StepCompleted) {
			continue
		}

		if best == nil || load(summary) < load(best) {
			best = summary
		}
	}

	if best == nil {
		return nil, domain.ErrNoSubmissionAvailable
	}
	return best, nil
}

func load(s *domain.ReviewSummary) int {
	return s.AssignedCount + s.CompletedCount
}
