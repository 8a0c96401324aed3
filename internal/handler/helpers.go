package handler

import (
	"errors"
	"net/http"
	"time"

	"peer-review-service/internal/domain"
)

// Вспомогательные функции преобразования доменных моделей в API модели

type apiStep struct {
	StepKey       string    `json:"step_key"`
	UnitID        string    `json:"unit_id"`
	SubmissionKey string    `json:"submission_key"`
	RevieweeKey   string    `json:"reviewee_key"`
	ReviewerKey   string    `json:"reviewer_key"`
	ReviewKey     string    `json:"review_key,omitempty"`
	Assigner      string    `json:"assigner"`
	State         string    `json:"state"`
	CreatedOn     time.Time `json:"created_on"`
}

type apiReview struct {
	ReviewKey string    `json:"review_key"`
	Contents  []byte    `json:"contents"`
	UpdatedOn time.Time `json:"updated_on"`
}

type apiSubmission struct {
	SubmissionKey string    `json:"submission_key"`
	UnitID        string    `json:"unit_id"`
	RevieweeKey   string    `json:"reviewee_key"`
	Contents      []byte    `json:"contents"`
	CreatedOn     time.Time `json:"created_on"`
}

func toAPIStep(step *domain.ReviewStep) apiStep {
	return apiStep{
		StepKey:       step.Key,
		UnitID:        step.UnitID,
		SubmissionKey: step.SubmissionKey,
		RevieweeKey:   step.RevieweeKey,
		ReviewerKey:   step.ReviewerKey,
		ReviewKey:     step.ReviewKey,
		Assigner:      string(step.Assigner),
		State:         string(step.State),
		CreatedOn:     step.CreatedOn,
	}
}

func toAPISteps(steps []*domain.ReviewStep) []apiStep {
	result := make([]apiStep, len(steps))
	for i, step := range steps {
		result[i] = toAPIStep(step)
	}
	return result
}

// toAPIReviews сохраняет позиции: nil-дырки tolerate_holes остаются
// null в ответе.
func toAPIReviews(reviews []*domain.Review) []*apiReview {
	result := make([]*apiReview, len(reviews))
	for i, review := range reviews {
		if review == nil {
			continue
		}
		result[i] = &apiReview{
			ReviewKey: review.Key,
			Contents:  review.Contents,
			UpdatedOn: review.UpdatedOn,
		}
	}
	return result
}

func toAPISubmission(sub *domain.Submission) apiSubmission {
	return apiSubmission{
		SubmissionKey: sub.Key,
		UnitID:        sub.UnitID,
		RevieweeKey:   sub.RevieweeKey,
		Contents:      sub.Contents,
		CreatedOn:     sub.CreatedOn,
	}
}

func toErrorResponse(code, message string) domain.ErrorResponse {
	return domain.ErrorResponse{
		Error: domain.HTTPError{Code: code, Message: message},
	}
}

func getHTTPStatusCode(err error) int {
	switch {
	// Conflict errors (409)
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrStepAlreadyRemoved),
		errors.Is(err, domain.ErrReviewAlreadyStarted),
		errors.Is(err, domain.ErrSubmissionAlreadyExist),
		errors.Is(err, domain.ErrNoSubmissionAvailable):
		return http.StatusConflict

	// Not Found errors (404)
	case errors.Is(err, domain.ErrStepNotFound),
		errors.Is(err, domain.ErrSummaryNotFound),
		errors.Is(err, domain.ErrReviewNotFound),
		errors.Is(err, domain.ErrSubmissionNotFound):
		return http.StatusNotFound

	// Bad Request errors (400) - валидация
	case errors.Is(err, domain.ErrInvalidUnitID),
		errors.Is(err, domain.ErrInvalidRevieweeKey),
		errors.Is(err, domain.ErrInvalidReviewerKey),
		errors.Is(err, domain.ErrInvalidStepKey),
		errors.Is(err, domain.ErrSelfReview):
		return http.StatusBadRequest

	// Сломанный инвариант или ошибка последовательности вызовов (500)
	case errors.Is(err, domain.ErrSummaryConflict),
		errors.Is(err, domain.ErrReviewNotStarted):
		return http.StatusInternalServerError

	default:
		return http.StatusInternalServerError
	}
}
