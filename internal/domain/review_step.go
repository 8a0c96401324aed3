package domain

import (
	"context"
	"database/sql"
	"time"
)

// StepState описывает состояние шага ревью. REMOVED моделирует мягкое
// удаление как обычное состояние: удаленные шаги не попадают в счетчики
// summary и могут быть реактивированы повторным назначением.
type StepState string

const (
	StepAssigned  StepState = "ASSIGNED"
	StepCompleted StepState = "COMPLETED"
	StepExpired   StepState = "EXPIRED"
	StepRemoved   StepState = "REMOVED"
)

// stepTransitions - единая таблица допустимых переходов состояния шага.
var stepTransitions = map[StepState]map[StepState]bool{
	StepAssigned:  {StepCompleted: true, StepExpired: true, StepRemoved: true},
	StepCompleted: {StepRemoved: true},
	StepExpired:   {StepAssigned: true, StepRemoved: true},
	StepRemoved:   {StepAssigned: true},
}

// CanTransition проверяет допустимость перехода по таблице состояний.
func (s StepState) CanTransition(to StepState) bool {
	return stepTransitions[s][to]
}

// Valid проверяет, что состояние известно таблице переходов.
func (s StepState) Valid() bool {
	_, ok := stepTransitions[s]
	return ok
}

// AssignerKind описывает, кем был создан шаг ревью: автоматическим
// матчером или административным действием человека.
type AssignerKind string

const (
	AssignerAuto  AssignerKind = "AUTO"
	AssignerHuman AssignerKind = "HUMAN"
)

// ReviewStep представляет одно назначение reviewer → reviewee.
type ReviewStep struct {
	Key           string
	UnitID        string
	SubmissionKey string
	RevieweeKey   string
	ReviewerKey   string
	ReviewKey     string // пустой, пока ревью не начато
	SummaryKey    string
	Assigner      AssignerKind
	State         StepState
	CreatedOn     time.Time
}

// Removed сообщает, находится ли шаг в мягко удаленном состоянии.
func (s *ReviewStep) Removed() bool {
	return s.State == StepRemoved
}

// Active сообщает, учитывается ли шаг в счетчиках summary.
func (s *ReviewStep) Active() bool {
	return s.State != StepRemoved
}

// ExpiryQuery описывает фильтр выборки протухших шагов. Конструирование
// запроса отделено от его исполнения, чтобы контракт фильтра и порядка
// был тестируем без базы данных.
type ExpiryQuery struct {
	UnitID        string
	State         StepState
	CreatedBefore time.Time
	OldestFirst   bool
}

// StepRepository определяет контракт для работы с хранилищем шагов ревью.
type StepRepository interface {
	// WithTx возвращает репозиторий, привязанный к транзакции.
	WithTx(tx *sql.Tx) StepRepository

	Create(ctx context.Context, step *ReviewStep) error
	GetByKey(ctx context.Context, stepKey string) (*ReviewStep, error)
	// GetByPair возвращает шаг пары (reviewer, reviewee) в юните или
	// ErrStepNotFound. Активный шаг на пару не более одного (инвариант 4).
	GetByPair(ctx context.Context, unitID, reviewerKey, revieweeKey string) (*ReviewStep, error)
	UpdateState(ctx context.Context, stepKey string, state StepState) error
	SetReviewKey(ctx context.Context, stepKey, reviewKey string) error
	ListByReviewer(ctx context.Context, unitID, reviewerKey string) ([]*ReviewStep, error)
	ListByKeys(ctx context.Context, stepKeys []string) ([]*ReviewStep, error)
	ListBySummary(ctx context.Context, summaryKey string) ([]*ReviewStep, error)
	ListStale(ctx context.Context, q ExpiryQuery) ([]*ReviewStep, error)
}
