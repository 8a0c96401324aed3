package handler

import (
	"net/http"

	"peer-review-service/internal/domain"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// ReviewHandler обрабатывает HTTP-запросы движка взаимного ревью.
// Типизированные доменные ошибки переводятся в HTTP-коды только здесь.
type ReviewHandler struct {
	*BaseHandler
	facade domain.Facade
}

// NewReviewHandler создает новый экземпляр ReviewHandler.
func NewReviewHandler(facade domain.Facade, logger *logrus.Logger) *ReviewHandler {
	return &ReviewHandler{
		BaseHandler: NewBaseHandler(logger),
		facade:      facade,
	}
}

type startReviewRequest struct {
	UnitID      string `json:"unit_id"`
	RevieweeKey string `json:"reviewee_key"`
}

// PostReviewStart запускает процесс ревью для сданной работы.
func (h *ReviewHandler) PostReviewStart(c echo.Context) error {
	var req startReviewRequest
	if err := c.Bind(&req); err != nil {
		h.logger.WithError(err).Warn("Failed to bind start review request")
		return c.JSON(http.StatusBadRequest, toErrorResponse("INVALID_REQUEST", err.Error()))
	}

	logEntry := h.logRequest(c, "start_review").WithFields(logrus.Fields{
		"unit_id":      req.UnitID,
		"reviewee_key": req.RevieweeKey,
	})
	logEntry.Info("Starting review process")

	summaryKey, err := h.facade.StartReviewProcess(c.Request().Context(), req.UnitID, req.RevieweeKey)
	if err != nil {
		return h.mapError(c, logEntry, err, "Failed to start review process")
	}

	logEntry.WithField("summary_key", summaryKey).Info("Review process started")
	return c.JSON(http.StatusCreated, map[string]any{"summary_key": summaryKey})
}

type assignRequest struct {
	UnitID      string `json:"unit_id"`
	RevieweeKey string `json:"reviewee_key"`
	ReviewerKey string `json:"reviewer_key"`
}

// PostReviewAssign - административное назначение конкретной пары.
func (h *ReviewHandler) PostReviewAssign(c echo.Context) error {
	var req assignRequest
	if err := c.Bind(&req); err != nil {
		h.logger.WithError(err).Warn("Failed to bind assign request")
		return c.JSON(http.StatusBadRequest, toErrorResponse("INVALID_REQUEST", err.Error()))
	}

	logEntry := h.logRequest(c, "assign_reviewer").WithFields(logrus.Fields{
		"unit_id":      req.UnitID,
		"reviewee_key": req.RevieweeKey,
		"reviewer_key": req.ReviewerKey,
	})
	logEntry.Info("Assigning reviewer")

	stepKey, err := h.facade.Assign(c.Request().Context(), req.UnitID, req.RevieweeKey, req.ReviewerKey)
	if err != nil {
		return h.mapError(c, logEntry, err, "Failed to assign reviewer")
	}

	logEntry.WithField("step_key", stepKey).Info("Reviewer assigned")
	return c.JSON(http.StatusCreated, map[string]any{"step_key": stepKey})
}

type newReviewRequest struct {
	UnitID      string `json:"unit_id"`
	ReviewerKey string `json:"reviewer_key"`
}

// PostReviewNew подбирает ревьюверу следующую работу через матчер юнита.
func (h *ReviewHandler) PostReviewNew(c echo.Context) error {
	var req newReviewRequest
	if err := c.Bind(&req); err != nil {
		h.logger.WithError(err).Warn("Failed to bind new review request")
		return c.JSON(http.StatusBadRequest, toErrorResponse("INVALID_REQUEST", err.Error()))
	}

	logEntry := h.logRequest(c, "new_review").WithFields(logrus.Fields{
		"unit_id":      req.UnitID,
		"reviewer_key": req.ReviewerKey,
	})
	logEntry.Info("Matching reviewer to submission")

	step, err := h.facade.NewReviewFor(c.Request().Context(), req.UnitID, req.ReviewerKey)
	if err != nil {
		return h.mapError(c, logEntry, err, "Failed to match reviewer")
	}

	logEntry.WithField("step_key", step.Key).Info("Reviewer matched")
	return c.JSON(http.StatusCreated, map[string]any{"step": toAPIStep(step)})
}

type cancelRequest struct {
	UnitID  string `json:"unit_id"`
	StepKey string `json:"step_key"`
}

// PostReviewCancel мягко удаляет шаг ревью.
func (h *ReviewHandler) PostReviewCancel(c echo.Context) error {
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		h.logger.WithError(err).Warn("Failed to bind cancel request")
		return c.JSON(http.StatusBadRequest, toErrorResponse("INVALID_REQUEST", err.Error()))
	}

	logEntry := h.logRequest(c, "cancel_step").WithField("step_key", req.StepKey)
	logEntry.Info("Cancelling review step")

	stepKey, err := h.facade.Cancel(c.Request().Context(), req.UnitID, req.StepKey)
	if err != nil {
		return h.mapError(c, logEntry, err, "Failed to cancel review step")
	}

	logEntry.Info("Review step cancelled")
	return c.JSON(http.StatusOK, map[string]any{"step_key": stepKey})
}

type completeReviewRequest struct {
	UnitID        string `json:"unit_id"`
	StepKey       string `json:"step_key"`
	Contents      []byte `json:"contents"`
	MarkCompleted bool   `json:"mark_completed"`
}

// PostReviewComplete сохраняет содержимое ревью; при mark_completed
// дополнительно завершает шаг.
func (h *ReviewHandler) PostReviewComplete(c echo.Context) error {
	var req completeReviewRequest
	if err := c.Bind(&req); err != nil {
		h.logger.WithError(err).Warn("Failed to bind complete review request")
		return c.JSON(http.StatusBadRequest, toErrorResponse("INVALID_REQUEST", err.Error()))
	}

	logEntry := h.logRequest(c, "complete_review").WithFields(logrus.Fields{
		"step_key":       req.StepKey,
		"mark_completed": req.MarkCompleted,
	})
	logEntry.Info("Writing review")

	err := h.facade.CompleteReview(c.Request().Context(), req.UnitID, req.StepKey, req.Contents, req.MarkCompleted)
	if err != nil {
		return h.mapError(c, logEntry, err, "Failed to write review")
	}

	logEntry.Info("Review written")
	return c.JSON(http.StatusOK, map[string]any{"step_key": req.StepKey})
}

// GetReviewSteps возвращает активные шаги ревьювера в юните.
func (h *ReviewHandler) GetReviewSteps(c echo.Context) error {
	unitID := c.QueryParam("unit_id")
	reviewerKey := c.QueryParam("reviewer_key")

	logEntry := h.logRequest(c, "steps_by_reviewer").WithFields(logrus.Fields{
		"unit_id":      unitID,
		"reviewer_key": reviewerKey,
	})

	steps, err := h.facade.StepsBy(c.Request().Context(), unitID, reviewerKey)
	if err != nil {
		return h.mapError(c, logEntry, err, "Failed to list reviewer steps")
	}

	return c.JSON(http.StatusOK, map[string]any{"steps": toAPISteps(steps)})
}

type stepsByKeysRequest struct {
	StepKeys []string `json:"step_keys"`
}

// PostReviewStepsBatch возвращает шаги по списку ключей.
func (h *ReviewHandler) PostReviewStepsBatch(c echo.Context) error {
	var req stepsByKeysRequest
	if err := c.Bind(&req); err != nil {
		h.logger.WithError(err).Warn("Failed to bind steps batch request")
		return c.JSON(http.StatusBadRequest, toErrorResponse("INVALID_REQUEST", err.Error()))
	}

	logEntry := h.logRequest(c, "steps_by_keys").WithField("keys_count", len(req.StepKeys))

	steps, err := h.facade.StepsByKeys(c.Request().Context(), req.StepKeys)
	if err != nil {
		return h.mapError(c, logEntry, err, "Failed to list steps by keys")
	}

	return c.JSON(http.StatusOK, map[string]any{"steps": toAPISteps(steps)})
}

type reviewsByKeysRequest struct {
	UnitID        string   `json:"unit_id"`
	ReviewKeys    []string `json:"review_keys"`
	TolerateHoles bool     `json:"tolerate_holes"`
}

// PostReviewsBatch возвращает ревью по списку ключей; с tolerate_holes
// пустые ключи проходят позиционно как null.
func (h *ReviewHandler) PostReviewsBatch(c echo.Context) error {
	var req reviewsByKeysRequest
	if err := c.Bind(&req); err != nil {
		h.logger.WithError(err).Warn("Failed to bind reviews batch request")
		return c.JSON(http.StatusBadRequest, toErrorResponse("INVALID_REQUEST", err.Error()))
	}

	logEntry := h.logRequest(c, "reviews_by_keys").WithFields(logrus.Fields{
		"keys_count":     len(req.ReviewKeys),
		"tolerate_holes": req.TolerateHoles,
	})

	reviews, err := h.facade.ReviewsByKeys(c.Request().Context(), req.UnitID, req.ReviewKeys, req.TolerateHoles)
	if err != nil {
		return h.mapError(c, logEntry, err, "Failed to list reviews by keys")
	}

	return c.JSON(http.StatusOK, map[string]any{"reviews": toAPIReviews(reviews)})
}
