package domain

import "errors"

// Domain errors (для бизнес-логики)
var (
	// Validation errors
	ErrInvalidUnitID      = errors.New("invalid unit id")
	ErrInvalidRevieweeKey = errors.New("invalid reviewee key")
	ErrInvalidReviewerKey = errors.New("invalid reviewer key")
	ErrInvalidStepKey     = errors.New("invalid step key")
	ErrSelfReview         = errors.New("reviewer cannot review own submission")

	// Sequencing errors (ошибка вызывающего кода, не пользователя)
	ErrReviewNotStarted = errors.New("review process not started for submission")

	// State machine errors
	ErrInvalidTransition  = errors.New("invalid review step transition")
	ErrStepAlreadyRemoved = errors.New("review step already removed")

	// Not found errors
	ErrStepNotFound       = errors.New("review step not found")
	ErrSummaryNotFound    = errors.New("review summary not found")
	ErrReviewNotFound     = errors.New("review not found")
	ErrSubmissionNotFound = errors.New("submission not found")

	// Lifecycle errors
	ErrReviewAlreadyStarted = errors.New("review process already started")

	// Integrity errors: нарушен инвариант "один summary на (unit, reviewee)"
	ErrSummaryConflict = errors.New("multiple review summaries for submission")

	// Matcher errors
	ErrUnknownMatcher         = errors.New("unknown matcher name")
	ErrNoSubmissionAvailable  = errors.New("no reviewable submission available")
	ErrSubmissionAlreadyExist = errors.New("submission already exists")
)

// HTTPError для соответствия внешнего API
type HTTPError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error HTTPError `json:"error"`
}

// Маппинг domain ошибок в HTTP ошибки
var ErrorMapping = map[error]HTTPError{
	ErrReviewNotStarted:       {Code: "NOT_STARTED", Message: "review process was not started for this submission"},
	ErrInvalidTransition:      {Code: "INVALID_TRANSITION", Message: "step is already assigned or reviewed"},
	ErrStepAlreadyRemoved:     {Code: "ALREADY_REMOVED", Message: "review step was removed and can only be reactivated"},
	ErrStepNotFound:           {Code: "NOT_FOUND", Message: "review step not found"},
	ErrSummaryNotFound:        {Code: "NOT_FOUND", Message: "review summary not found"},
	ErrReviewNotFound:         {Code: "NOT_FOUND", Message: "review not found"},
	ErrSubmissionNotFound:     {Code: "NOT_FOUND", Message: "submission not found"},
	ErrReviewAlreadyStarted:   {Code: "ALREADY_STARTED", Message: "review process already started for this submission"},
	ErrSummaryConflict:        {Code: "SUMMARY_CONFLICT", Message: "more than one review summary exists for this submission"},
	ErrNoSubmissionAvailable:  {Code: "NO_SUBMISSION", Message: "no reviewable submission available for this reviewer"},
	ErrSubmissionAlreadyExist: {Code: "SUBMISSION_EXISTS", Message: "submission already exists for this reviewee"},
	ErrSelfReview:             {Code: "SELF_REVIEW", Message: "reviewer cannot review own submission"},
	ErrInvalidUnitID:          {Code: "VALIDATION_ERROR", Message: "unit id must not be empty"},
	ErrInvalidRevieweeKey:     {Code: "VALIDATION_ERROR", Message: "reviewee key must not be empty"},
	ErrInvalidReviewerKey:     {Code: "VALIDATION_ERROR", Message: "reviewer key must not be empty"},
	ErrInvalidStepKey:         {Code: "VALIDATION_ERROR", Message: "step key must not be empty"},
}

// ToHTTPError преобразует domain ошибку в HTTP ошибку
func ToHTTPError(err error) (HTTPError, bool) {
	httpErr, exists := ErrorMapping[err]
	return httpErr, exists
}
