package handler

import (
	"peer-review-service/internal/domain"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// APIHandler объединяет обработчики поверхности движка ревью.
type APIHandler struct {
	*ReviewHandler
	*SubmissionHandler
}

// NewAPIHandler создает новый экземпляр APIHandler.
func NewAPIHandler(facade domain.Facade, subs domain.SubmissionRepository, logger *logrus.Logger) *APIHandler {
	return &APIHandler{
		ReviewHandler:     NewReviewHandler(facade, logger),
		SubmissionHandler: NewSubmissionHandler(facade, subs, logger),
	}
}

// RegisterRoutes привязывает операции фасада к маршрутам.
func RegisterRoutes(e *echo.Echo, h *APIHandler) {
	e.POST("/submission", h.PostSubmission)
	e.GET("/submission", h.GetSubmission)
	e.GET("/submission/exists", h.GetSubmissionExists)

	e.POST("/review/start", h.PostReviewStart)
	e.POST("/review/assign", h.PostReviewAssign)
	e.POST("/review/new", h.PostReviewNew)
	e.POST("/review/cancel", h.PostReviewCancel)
	e.POST("/review/complete", h.PostReviewComplete)
	e.GET("/review/steps", h.GetReviewSteps)
	e.POST("/review/steps/batch", h.PostReviewStepsBatch)
	e.POST("/reviews/batch", h.PostReviewsBatch)
}
