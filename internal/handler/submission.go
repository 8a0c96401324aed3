package handler

import (
	"net/http"

	"peer-review-service/internal/domain"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// SubmissionHandler обрабатывает HTTP-запросы сданных работ. Сдача
// работы - внешнее по отношению к движку событие; движок только читает
// работы по ключу.
type SubmissionHandler struct {
	*BaseHandler
	facade domain.Facade
	subs   domain.SubmissionRepository
}

// NewSubmissionHandler создает новый экземпляр SubmissionHandler.
func NewSubmissionHandler(facade domain.Facade, subs domain.SubmissionRepository, logger *logrus.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		BaseHandler: NewBaseHandler(logger),
		facade:      facade,
		subs:        subs,
	}
}

type createSubmissionRequest struct {
	UnitID      string `json:"unit_id"`
	RevieweeKey string `json:"reviewee_key"`
	Contents    []byte `json:"contents"`
}

// PostSubmission сохраняет сданную работу. Работа пишется один раз.
func (h *SubmissionHandler) PostSubmission(c echo.Context) error {
	var req createSubmissionRequest
	if err := c.Bind(&req); err != nil {
		h.logger.WithError(err).Warn("Failed to bind create submission request")
		return c.JSON(http.StatusBadRequest, toErrorResponse("INVALID_REQUEST", err.Error()))
	}

	logEntry := h.logRequest(c, "create_submission").WithFields(logrus.Fields{
		"unit_id":      req.UnitID,
		"reviewee_key": req.RevieweeKey,
	})
	logEntry.Info("Creating submission")

	sub := &domain.Submission{
		UnitID:      req.UnitID,
		RevieweeKey: req.RevieweeKey,
		Contents:    req.Contents,
	}
	if err := h.subs.Create(c.Request().Context(), sub); err != nil {
		return h.mapError(c, logEntry, err, "Failed to create submission")
	}

	logEntry.WithField("submission_key", sub.Key).Info("Submission created")
	return c.JSON(http.StatusCreated, map[string]any{"submission_key": sub.Key})
}

// GetSubmission возвращает работу reviewee вместе со всеми шагами ревью.
func (h *SubmissionHandler) GetSubmission(c echo.Context) error {
	unitID := c.QueryParam("unit_id")
	revieweeKey := c.QueryParam("reviewee_key")

	logEntry := h.logRequest(c, "submission_and_steps").WithFields(logrus.Fields{
		"unit_id":      unitID,
		"reviewee_key": revieweeKey,
	})

	sub, steps, err := h.facade.SubmissionAndStepsFor(c.Request().Context(), unitID, revieweeKey)
	if err != nil {
		return h.mapError(c, logEntry, err, "Failed to get submission")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"submission": toAPISubmission(sub),
		"steps":      toAPISteps(steps),
	})
}

// GetSubmissionExists проверяет, сдана ли работа пары (unit, reviewee).
func (h *SubmissionHandler) GetSubmissionExists(c echo.Context) error {
	unitID := c.QueryParam("unit_id")
	revieweeKey := c.QueryParam("reviewee_key")

	logEntry := h.logRequest(c, "submission_exists").WithFields(logrus.Fields{
		"unit_id":      unitID,
		"reviewee_key": revieweeKey,
	})

	exists, err := h.facade.SubmissionExists(c.Request().Context(), unitID, revieweeKey)
	if err != nil {
		return h.mapError(c, logEntry, err, "Failed to check submission")
	}

	return c.JSON(http.StatusOK, map[string]any{"exists": exists})
}
