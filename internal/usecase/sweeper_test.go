package usecase_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"peer-review-service/internal/domain"
	"peer-review-service/internal/usecase"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetExpiryQuery(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	q := usecase.GetExpiryQuery("unit-7", 72*time.Hour, now)

	assert.Equal(t, "unit-7", q.UnitID)
	assert.Equal(t, domain.StepAssigned, q.State, "only assigned steps expire")
	assert.Equal(t, now.Add(-72*time.Hour), q.CreatedBefore)
	assert.True(t, q.OldestFirst, "oldest candidates go first")
}

func TestGetExpiryQuery_ZeroWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	q := usecase.GetExpiryQuery("unit-7", 0, now)
	assert.Equal(t, now, q.CreatedBefore)
}

func TestExpiryQuery_FilterAndOrder(t *testing.T) {
	ctx := context.Background()
	manager, store := newTestManager()
	steps := &memStepRepo{s: store}

	_, err := manager.StartReviewProcess(ctx, "unit-1", "sub-1", "alice")
	require.NoError(t, err)
	_, err = manager.StartReviewProcess(ctx, "unit-2", "sub-2", "dora")
	require.NoError(t, err)

	// Три кандидата в unit-1 с разным возрастом, вставленным вручную
	oldKey, err := manager.Assign(ctx, "unit-1", "sub-1", "alice", "bob", domain.AssignerAuto)
	require.NoError(t, err)
	store.steps[oldKey].CreatedOn = store.now.Add(-48 * time.Hour)

	midKey, err := manager.Assign(ctx, "unit-1", "sub-1", "alice", "carol", domain.AssignerAuto)
	require.NoError(t, err)
	store.steps[midKey].CreatedOn = store.now.Add(-24 * time.Hour)

	// Не кандидаты: чужой юнит, завершенный и удаленный шаги
	otherUnit, err := manager.Assign(ctx, "unit-2", "sub-2", "dora", "bob", domain.AssignerAuto)
	require.NoError(t, err)
	store.steps[otherUnit].CreatedOn = store.now.Add(-48 * time.Hour)

	doneKey, err := manager.Assign(ctx, "unit-1", "sub-1", "alice", "eve", domain.AssignerAuto)
	require.NoError(t, err)
	store.steps[doneKey].CreatedOn = store.now.Add(-48 * time.Hour)
	require.NoError(t, manager.CompleteReview(ctx, doneKey, []byte("done"), true))

	goneKey, err := manager.Assign(ctx, "unit-1", "sub-1", "alice", "frank", domain.AssignerAuto)
	require.NoError(t, err)
	store.steps[goneKey].CreatedOn = store.now.Add(-48 * time.Hour)
	_, err = manager.Cancel(ctx, goneKey)
	require.NoError(t, err)

	candidates, err := steps.ListStale(ctx, usecase.GetExpiryQuery("unit-1", 12*time.Hour, store.now))
	require.NoError(t, err)

	require.Len(t, candidates, 2)
	assert.Equal(t, oldKey, candidates[0].Key, "oldest first")
	assert.Equal(t, midKey, candidates[1].Key)
}

func newTestSweeper(manager domain.ReviewManager, store *memStore) *usecase.ExpirySweeper {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return usecase.NewExpirySweeper(manager, &memStepRepo{s: store}, logger)
}

func TestExpirySweeper_ZeroWindowExpiresUnit(t *testing.T) {
	ctx := context.Background()
	manager, store := newTestManager()
	sweeper := newTestSweeper(manager, store)

	summaryKey, err := manager.StartReviewProcess(ctx, "unit-1", "sub-1", "alice")
	require.NoError(t, err)
	otherSummary, err := manager.StartReviewProcess(ctx, "unit-2", "sub-2", "dora")
	require.NoError(t, err)

	_, err = manager.Assign(ctx, "unit-1", "sub-1", "alice", "bob", domain.AssignerAuto)
	require.NoError(t, err)
	_, err = manager.Assign(ctx, "unit-1", "sub-1", "alice", "carol", domain.AssignerAuto)
	require.NoError(t, err)
	foreignKey, err := manager.Assign(ctx, "unit-2", "sub-2", "dora", "bob", domain.AssignerAuto)
	require.NoError(t, err)

	result, err := sweeper.ExpireStale(ctx, 0, "unit-1")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Candidates)
	assert.Equal(t, 2, result.Expired)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, result.Failed)

	// Чужой юнит не затронут
	assert.Equal(t, domain.StepAssigned, store.steps[foreignKey].State)
	assertCounters(t, store, summaryKey, 0, 0, 2)
	assertCounters(t, store, otherSummary, 1, 0, 0)
}

func TestExpirySweeper_HugeWindowExpiresNothing(t *testing.T) {
	ctx := context.Background()
	manager, store := newTestManager()
	sweeper := newTestSweeper(manager, store)

	summaryKey, err := manager.StartReviewProcess(ctx, "unit-1", "sub-1", "alice")
	require.NoError(t, err)
	_, err = manager.Assign(ctx, "unit-1", "sub-1", "alice", "bob", domain.AssignerAuto)
	require.NoError(t, err)

	result, err := sweeper.ExpireStale(ctx, 100000*time.Hour, "unit-1")
	require.NoError(t, err)

	assert.Equal(t, 0, result.Candidates)
	assert.Equal(t, 0, result.Expired)
	assertCounters(t, store, summaryKey, 1, 0, 0)
}

// failingExpirer ломает Expire для одного ключа, остальное делегирует.
type failingExpirer struct {
	domain.ReviewManager
	failKey string
}

func (f *failingExpirer) Expire(ctx context.Context, stepKey string) (string, error) {
	if stepKey == f.failKey {
		return "", errors.New("storage unavailable")
	}
	return f.ReviewManager.Expire(ctx, stepKey)
}

func TestExpirySweeper_PartialFailureIsolation(t *testing.T) {
	ctx := context.Background()
	manager, store := newTestManager()

	summaryKey, err := manager.StartReviewProcess(ctx, "unit-1", "sub-1", "alice")
	require.NoError(t, err)

	badKey, err := manager.Assign(ctx, "unit-1", "sub-1", "alice", "bob", domain.AssignerAuto)
	require.NoError(t, err)
	store.steps[badKey].CreatedOn = store.now.Add(-3 * time.Hour)

	goodKey, err := manager.Assign(ctx, "unit-1", "sub-1", "alice", "carol", domain.AssignerAuto)
	require.NoError(t, err)
	store.steps[goodKey].CreatedOn = store.now.Add(-2 * time.Hour)

	sweeper := newTestSweeper(&failingExpirer{ReviewManager: manager, failKey: badKey}, store)

	// Сбой на первом кандидате не прерывает зачистку
	result, err := sweeper.ExpireStale(ctx, 0, "unit-1")
	require.NoError(t, err)

	assert.Equal(t, 2, result.Candidates)
	assert.Equal(t, 1, result.Expired)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, domain.StepAssigned, store.steps[badKey].State)
	assert.Equal(t, domain.StepExpired, store.steps[goodKey].State)
	assertCounters(t, store, summaryKey, 1, 0, 1)
}

// snapshotStepRepo отдает заранее зафиксированный список кандидатов,
// имитируя конкурентное изменение между выборкой и Expire.
type snapshotStepRepo struct {
	domain.StepRepository
	stale []*domain.ReviewStep
}

func (r *snapshotStepRepo) ListStale(_ context.Context, _ domain.ExpiryQuery) ([]*domain.ReviewStep, error) {
	return r.stale, nil
}

func TestExpirySweeper_SkipsConcurrentlyChangedSteps(t *testing.T) {
	ctx := context.Background()
	manager, store := newTestManager()

	summaryKey, err := manager.StartReviewProcess(ctx, "unit-1", "sub-1", "alice")
	require.NoError(t, err)
	stepKey, err := manager.Assign(ctx, "unit-1", "sub-1", "alice", "bob", domain.AssignerAuto)
	require.NoError(t, err)

	// Шаг завершился между выборкой кандидатов и Expire
	stale, err := (&memStepRepo{s: store}).ListStale(ctx, usecase.GetExpiryQuery("unit-1", 0, time.Now().UTC()))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.NoError(t, manager.CompleteReview(ctx, stepKey, []byte("done"), true))

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	sweeper := usecase.NewExpirySweeper(manager, &snapshotStepRepo{stale: stale}, logger)

	result, err := sweeper.ExpireStale(ctx, 0, "unit-1")
	require.NoError(t, err)

	assert.Equal(t, 1, result.Candidates)
	assert.Equal(t, 0, result.Expired)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Failed)
	assertCounters(t, store, summaryKey, 0, 1, 0)
}

func TestExpirySweeper_ExpireStaleAll(t *testing.T) {
	ctx := context.Background()
	manager, store := newTestManager()
	sweeper := newTestSweeper(manager, store)

	_, err := manager.StartReviewProcess(ctx, "unit-1", "sub-1", "alice")
	require.NoError(t, err)
	_, err = manager.StartReviewProcess(ctx, "unit-2", "sub-2", "dora")
	require.NoError(t, err)
	_, err = manager.Assign(ctx, "unit-1", "sub-1", "alice", "bob", domain.AssignerAuto)
	require.NoError(t, err)
	_, err = manager.Assign(ctx, "unit-2", "sub-2", "dora", "bob", domain.AssignerAuto)
	require.NoError(t, err)

	units, err := (&memSummaryRepo{s: store}).ListUnits(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"unit-1", "unit-2"}, units)

	result := sweeper.ExpireStaleAll(ctx, 0, units)
	assert.Equal(t, 2, result.Expired)
}
