package domain

import (
	"context"
	"time"
)

// Submission - сданная работа reviewee. Пишется один раз при сдаче и
// далее только читается движком ревью.
type Submission struct {
	Key         string
	UnitID      string
	RevieweeKey string
	Contents    []byte
	CreatedOn   time.Time
}

// SubmissionStore - потребляемый интерфейс внешнего хранилища работ.
type SubmissionStore interface {
	KeyFor(ctx context.Context, unitID, revieweeKey string) (string, error)
	ContentsOf(ctx context.Context, submissionKey string) ([]byte, error)
}

// SubmissionRepository определяет контракт хранилища работ, реализуемый
// этим сервисом. Включает SubmissionStore для внешних потребителей.
type SubmissionRepository interface {
	SubmissionStore

	// Create сохраняет работу; повторная сдача той же пары
	// (unit, reviewee) возвращает ErrSubmissionAlreadyExist.
	Create(ctx context.Context, submission *Submission) error
	GetByKey(ctx context.Context, submissionKey string) (*Submission, error)
	Exists(ctx context.Context, unitID, revieweeKey string) (bool, error)
}
