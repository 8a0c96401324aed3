package usecase_test

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"peer-review-service/internal/domain"

	"github.com/google/uuid"
)

// Стейтфул in-memory реализация репозиториев для тестов: свойства
// счетчиков проверяются после каждого вызова менеджера, что с
// интеракционными моками выразить нельзя.
type memStore struct {
	steps     map[string]*domain.ReviewStep
	summaries map[string]*domain.ReviewSummary
	reviews   map[string]*domain.Review
	subs      map[string]*domain.Submission
	now       time.Time
}

func newMemStore() *memStore {
	return &memStore{
		steps:     make(map[string]*domain.ReviewStep),
		summaries: make(map[string]*domain.ReviewSummary),
		reviews:   make(map[string]*domain.Review),
		subs:      make(map[string]*domain.Submission),
		now:       time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
	}
}

// WithinTx реализует domain.TxRunner; менеджер валидирует до записи,
// поэтому откат фейку не нужен.
func (s *memStore) WithinTx(_ context.Context, fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

// activeStepsOf возвращает число активных шагов summary для проверки
// инварианта счетчиков.
func (s *memStore) activeStepsOf(summaryKey string) int {
	count := 0
	for _, step := range s.steps {
		if step.SummaryKey == summaryKey && step.Active() {
			count++
		}
	}
	return count
}

type memStepRepo struct{ s *memStore }

func (r *memStepRepo) WithTx(tx *sql.Tx) domain.StepRepository { return r }

func (r *memStepRepo) Create(_ context.Context, step *domain.ReviewStep) error {
	cp := *step
	if cp.Key == "" {
		cp.Key = uuid.NewString()
	}
	if cp.CreatedOn.IsZero() {
		cp.CreatedOn = r.s.now
	}
	r.s.steps[cp.Key] = &cp
	step.Key = cp.Key
	step.CreatedOn = cp.CreatedOn
	return nil
}

func (r *memStepRepo) GetByKey(_ context.Context, stepKey string) (*domain.ReviewStep, error) {
	step, ok := r.s.steps[stepKey]
	if !ok {
		return nil, domain.ErrStepNotFound
	}
	cp := *step
	return &cp, nil
}

func (r *memStepRepo) GetByPair(_ context.Context, unitID, reviewerKey, revieweeKey string) (*domain.ReviewStep, error) {
	var latest *domain.ReviewStep
	for _, step := range r.s.steps {
		if step.UnitID == unitID && step.ReviewerKey == reviewerKey && step.RevieweeKey == revieweeKey {
			if latest == nil || step.CreatedOn.After(latest.CreatedOn) {
				latest = step
			}
		}
	}
	if latest == nil {
		return nil, domain.ErrStepNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *memStepRepo) UpdateState(_ context.Context, stepKey string, state domain.StepState) error {
	step, ok := r.s.steps[stepKey]
	if !ok {
		return domain.ErrStepNotFound
	}
	step.State = state
	return nil
}

func (r *memStepRepo) SetReviewKey(_ context.Context, stepKey, reviewKey string) error {
	step, ok := r.s.steps[stepKey]
	if !ok {
		return domain.ErrStepNotFound
	}
	step.ReviewKey = reviewKey
	return nil
}

func (r *memStepRepo) ListByReviewer(_ context.Context, unitID, reviewerKey string) ([]*domain.ReviewStep, error) {
	var steps []*domain.ReviewStep
	for _, step := range r.s.steps {
		if step.UnitID == unitID && step.ReviewerKey == reviewerKey && step.Active() {
			cp := *step
			steps = append(steps, &cp)
		}
	}
	sortByCreatedOn(steps, true)
	return steps, nil
}

func (r *memStepRepo) ListByKeys(_ context.Context, stepKeys []string) ([]*domain.ReviewStep, error) {
	steps := make([]*domain.ReviewStep, 0, len(stepKeys))
	for _, key := range stepKeys {
		if step, ok := r.s.steps[key]; ok {
			cp := *step
			steps = append(steps, &cp)
		}
	}
	return steps, nil
}

func (r *memStepRepo) ListBySummary(_ context.Context, summaryKey string) ([]*domain.ReviewStep, error) {
	var steps []*domain.ReviewStep
	for _, step := range r.s.steps {
		if step.SummaryKey == summaryKey {
			cp := *step
			steps = append(steps, &cp)
		}
	}
	sortByCreatedOn(steps, true)
	return steps, nil
}

func (r *memStepRepo) ListStale(_ context.Context, q domain.ExpiryQuery) ([]*domain.ReviewStep, error) {
	var steps []*domain.ReviewStep
	for _, step := range r.s.steps {
		if step.UnitID == q.UnitID && step.State == q.State && step.CreatedOn.Before(q.CreatedBefore) {
			cp := *step
			steps = append(steps, &cp)
		}
	}
	sortByCreatedOn(steps, q.OldestFirst)
	return steps, nil
}

func sortByCreatedOn(steps []*domain.ReviewStep, asc bool) {
	sort.Slice(steps, func(i, j int) bool {
		if asc {
			return steps[i].CreatedOn.Before(steps[j].CreatedOn)
		}
		return steps[j].CreatedOn.Before(steps[i].CreatedOn)
	})
}

type memSummaryRepo struct{ s *memStore }

func (r *memSummaryRepo) WithTx(tx *sql.Tx) domain.SummaryRepository { return r }

func (r *memSummaryRepo) Create(_ context.Context, summary *domain.ReviewSummary) error {
	for _, existing := range r.s.summaries {
		if existing.UnitID == summary.UnitID && existing.RevieweeKey == summary.RevieweeKey {
			return domain.ErrReviewAlreadyStarted
		}
	}
	cp := *summary
	if cp.Key == "" {
		cp.Key = uuid.NewString()
	}
	r.s.summaries[cp.Key] = &cp
	summary.Key = cp.Key
	return nil
}

func (r *memSummaryRepo) GetByKey(_ context.Context, summaryKey string) (*domain.ReviewSummary, error) {
	summary, ok := r.s.summaries[summaryKey]
	if !ok {
		return nil, domain.ErrSummaryNotFound
	}
	cp := *summary
	return &cp, nil
}

func (r *memSummaryRepo) GetByReviewee(_ context.Context, unitID, revieweeKey string) (*domain.ReviewSummary, error) {
	var found []*domain.ReviewSummary
	for _, summary := range r.s.summaries {
		if summary.UnitID == unitID && summary.RevieweeKey == revieweeKey {
			found = append(found, summary)
		}
	}
	switch len(found) {
	case 0:
		return nil, domain.ErrSummaryNotFound
	case 1:
		cp := *found[0]
		return &cp, nil
	default:
		return nil, domain.ErrSummaryConflict
	}
}

func (r *memSummaryRepo) AdjustCounters(_ context.Context, summaryKey string, delta domain.CounterDelta) error {
	summary, ok := r.s.summaries[summaryKey]
	if !ok {
		return domain.ErrSummaryNotFound
	}
	summary.AssignedCount += delta.Assigned
	summary.CompletedCount += delta.Completed
	summary.ExpiredCount += delta.Expired
	return nil
}

func (r *memSummaryRepo) ListByUnit(_ context.Context, unitID string) ([]*domain.ReviewSummary, error) {
	var summaries []*domain.ReviewSummary
	for _, summary := range r.s.summaries {
		if summary.UnitID == unitID {
			cp := *summary
			summaries = append(summaries, &cp)
		}
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].RevieweeKey < summaries[j].RevieweeKey
	})
	return summaries, nil
}

func (r *memSummaryRepo) ListUnits(_ context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var units []string
	for _, summary := range r.s.summaries {
		if !seen[summary.UnitID] {
			seen[summary.UnitID] = true
			units = append(units, summary.UnitID)
		}
	}
	sort.Strings(units)
	return units, nil
}

type memReviewRepo struct{ s *memStore }

func (r *memReviewRepo) WithTx(tx *sql.Tx) domain.ReviewRepository { return r }

func (r *memReviewRepo) Upsert(_ context.Context, review *domain.Review) error {
	cp := *review
	cp.UpdatedOn = r.s.now
	r.s.reviews[cp.Key] = &cp
	return nil
}

func (r *memReviewRepo) GetByKey(_ context.Context, reviewKey string) (*domain.Review, error) {
	review, ok := r.s.reviews[reviewKey]
	if !ok {
		return nil, domain.ErrReviewNotFound
	}
	cp := *review
	return &cp, nil
}

func (r *memReviewRepo) ListByKeys(_ context.Context, reviewKeys []string) ([]*domain.Review, error) {
	reviews := make([]*domain.Review, 0, len(reviewKeys))
	for _, key := range reviewKeys {
		if review, ok := r.s.reviews[key]; ok {
			cp := *review
			reviews = append(reviews, &cp)
		}
	}
	return reviews, nil
}

type memSubmissionRepo struct{ s *memStore }

func (r *memSubmissionRepo) Create(_ context.Context, sub *domain.Submission) error {
	for _, existing := range r.s.subs {
		if existing.UnitID == sub.UnitID && existing.RevieweeKey == sub.RevieweeKey {
			return domain.ErrSubmissionAlreadyExist
		}
	}
	cp := *sub
	if cp.Key == "" {
		cp.Key = uuid.NewString()
	}
	if cp.CreatedOn.IsZero() {
		cp.CreatedOn = r.s.now
	}
	r.s.subs[cp.Key] = &cp
	sub.Key = cp.Key
	return nil
}

func (r *memSubmissionRepo) KeyFor(_ context.Context, unitID, revieweeKey string) (string, error) {
	for _, sub := range r.s.subs {
		if sub.UnitID == unitID && sub.RevieweeKey == revieweeKey {
			return sub.Key, nil
		}
	}
	return "", domain.ErrSubmissionNotFound
}

func (r *memSubmissionRepo) ContentsOf(_ context.Context, submissionKey string) ([]byte, error) {
	sub, ok := r.s.subs[submissionKey]
	if !ok {
		return nil, domain.ErrSubmissionNotFound
	}
	return sub.Contents, nil
}

func (r *memSubmissionRepo) GetByKey(_ context.Context, submissionKey string) (*domain.Submission, error) {
	sub, ok := r.s.subs[submissionKey]
	if !ok {
		return nil, domain.ErrSubmissionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (r *memSubmissionRepo) Exists(_ context.Context, unitID, revieweeKey string) (bool, error) {
	_, err := r.KeyFor(context.Background(), unitID, revieweeKey)
	if err != nil {
		return false, nil
	}
	return true, nil
}
