package domain

import (
	"context"
	"database/sql"
)

// ReviewSummary - денормализованные агрегатные счетчики состояний шагов
// для одного submission. На пару (unit, reviewee) существует не более
// одного summary; второй найденный - нарушение целостности.
type ReviewSummary struct {
	Key            string
	UnitID         string
	SubmissionKey  string
	RevieweeKey    string
	AssignedCount  int
	CompletedCount int
	ExpiredCount   int
}

// Total возвращает сумму счетчиков; равна числу активных шагов summary.
func (s *ReviewSummary) Total() int {
	return s.AssignedCount + s.CompletedCount + s.ExpiredCount
}

// CounterDelta описывает атомарное изменение счетчиков summary.
type CounterDelta struct {
	Assigned  int
	Completed int
	Expired   int
}

// SummaryRepository определяет контракт для работы с хранилищем summary.
type SummaryRepository interface {
	// WithTx возвращает репозиторий, привязанный к транзакции.
	WithTx(tx *sql.Tx) SummaryRepository

	// Create создает summary; при нарушении уникальности
	// (unit, reviewee) возвращает ErrReviewAlreadyStarted.
	Create(ctx context.Context, summary *ReviewSummary) error
	GetByKey(ctx context.Context, summaryKey string) (*ReviewSummary, error)
	// GetByReviewee возвращает единственный summary пары или
	// ErrSummaryNotFound; при нескольких найденных - ErrSummaryConflict.
	GetByReviewee(ctx context.Context, unitID, revieweeKey string) (*ReviewSummary, error)
	AdjustCounters(ctx context.Context, summaryKey string, delta CounterDelta) error
	ListByUnit(ctx context.Context, unitID string) ([]*ReviewSummary, error)
	ListUnits(ctx context.Context) ([]string, error)
}
