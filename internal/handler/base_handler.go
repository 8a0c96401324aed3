package handler

import (
	"errors"
	"net/http"

	"peer-review-service/internal/domain"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

type BaseHandler struct {
	logger *logrus.Logger
}

func NewBaseHandler(logger *logrus.Logger) *BaseHandler {
	return &BaseHandler{
		logger: logger,
	}
}

func (h *BaseHandler) logRequest(c echo.Context, operation string) *logrus.Entry {
	return h.logger.WithFields(logrus.Fields{
		"operation":  operation,
		"method":     c.Request().Method,
		"path":       c.Request().URL.Path,
		"ip":         c.RealIP(),
	})
}

// mapError переводит типизированную доменную ошибку в HTTP-ответ.
// Сломанные инварианты и ошибки последовательности вызовов уходят как
// 500 и логируются с повышенной серьезностью.
func (h *BaseHandler) mapError(c echo.Context, logEntry *logrus.Entry, err error, msg string) error {
	switch {
	case errors.Is(err, domain.ErrSummaryConflict), errors.Is(err, domain.ErrReviewNotStarted):
		logEntry.WithError(err).Error(msg)
	default:
		logEntry.WithError(err).Warn(msg)
	}

	if httpErr, exists := domain.ToHTTPError(err); exists {
		return c.JSON(getHTTPStatusCode(err), domain.ErrorResponse{Error: httpErr})
	}
	return c.JSON(http.StatusInternalServerError, toErrorResponse("INTERNAL_ERROR", err.Error()))
}
