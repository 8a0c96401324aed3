package domain

import (
	"context"
	"database/sql"
)

// TxRunner выполняет функцию внутри одной транзакции хранилища с
// гарантированным commit либо rollback на любом пути выхода.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// ReviewManager определяет транзакционные примитивы согласованного
// изменения шага и его summary. Каждая операция атомарна; инварианты
// счетчиков выполняются после каждого вызова, а не "в конечном счете".
type ReviewManager interface {
	// StartReviewProcess создает нулевой summary для submission.
	// Возвращает ErrReviewAlreadyStarted, если summary уже существует.
	StartReviewProcess(ctx context.Context, unitID, submissionKey, revieweeKey string) (string, error)

	// Assign назначает reviewer на работу reviewee. Summary обязан уже
	// существовать (ErrReviewNotStarted - ошибка последовательности
	// вызовов). Шаг EXPIRED или REMOVED реактивируется вместо создания
	// дубликата.
	Assign(ctx context.Context, unitID, submissionKey, revieweeKey, reviewerKey string, assigner AssignerKind) (string, error)

	// Cancel мягко удаляет шаг, уменьшая счетчик его текущего состояния.
	Cancel(ctx context.Context, stepKey string) (string, error)

	// Expire переводит ASSIGNED шаг в EXPIRED с переносом счетчика.
	Expire(ctx context.Context, stepKey string) (string, error)

	// CompleteReview всегда записывает содержимое ревью; при
	// markCompleted дополнительно переводит шаг в COMPLETED.
	CompleteReview(ctx context.Context, stepKey string, contents []byte, markCompleted bool) error

	// SubmissionKeyFor возвращает ключ работы по summary пары.
	SubmissionKeyFor(ctx context.Context, unitID, revieweeKey string) (string, error)
}

// Matcher - подключаемая политика подбора работ для ревью. Сам алгоритм
// подбора вне этого сервиса не специфицирован; фиксирован только набор
// глаголов, через которые матчер обязан вести учет.
type Matcher interface {
	Assign(ctx context.Context, unitID, revieweeKey, reviewerKey string) (string, error)
	Cancel(ctx context.Context, stepKey string) (string, error)
	NewReviewFor(ctx context.Context, unitID, reviewerKey string) (*ReviewStep, error)
	StepsBy(ctx context.Context, unitID, reviewerKey string) ([]*ReviewStep, error)
	ReviewsByKeys(ctx context.Context, reviewKeys []string, tolerateHoles bool) ([]*Review, error)
	StartReviewProcess(ctx context.Context, unitID, revieweeKey string) (string, error)
	CompleteReview(ctx context.Context, stepKey string, contents []byte, markCompleted bool) error
}

// ReviewPolicy выбирает, чью работу reviewer будет ревьюить следующей.
type ReviewPolicy interface {
	PickSubmission(ctx context.Context, unitID, reviewerKey string) (*ReviewSummary, error)
}

// Facade определяет внешнюю поверхность операций движка, потребляемую
// presentation-слоем.
type Facade interface {
	Assign(ctx context.Context, unitID, revieweeKey, reviewerKey string) (string, error)
	Cancel(ctx context.Context, unitID, stepKey string) (string, error)
	NewReviewFor(ctx context.Context, unitID, reviewerKey string) (*ReviewStep, error)
	StepsBy(ctx context.Context, unitID, reviewerKey string) ([]*ReviewStep, error)
	ReviewsByKeys(ctx context.Context, unitID string, reviewKeys []string, tolerateHoles bool) ([]*Review, error)
	StepsByKeys(ctx context.Context, stepKeys []string) ([]*ReviewStep, error)
	SubmissionAndStepsFor(ctx context.Context, unitID, revieweeKey string) (*Submission, []*ReviewStep, error)
	SubmissionExists(ctx context.Context, unitID, revieweeKey string) (bool, error)
	StartReviewProcess(ctx context.Context, unitID, revieweeKey string) (string, error)
	CompleteReview(ctx context.Context, unitID, stepKey string, contents []byte, markCompleted bool) error
}

// SweepResult - итог одного прохода Expiry Sweeper'а.
type SweepResult struct {
	Candidates int
	Expired    int
	Skipped    int
	Failed     int
}
