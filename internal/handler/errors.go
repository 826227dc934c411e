package handler

import (
	"errors"
	"net/http"

	"github.com/Ealanisln/alanis-backend/internal/apperror"
	"github.com/Ealanisln/alanis-backend/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// respondError writes a service error in the {"error": message} shape.
// Errors without a kind are logged and hidden behind a generic 500.
func respondError(c echo.Context, err error) error {
	log := logger.FromContext(c)

	if appErr, ok := apperror.As(err); ok {
		status := appErr.Status()
		if status >= http.StatusInternalServerError {
			log.Error("Request failed", zap.String("kind", appErr.Kind.String()), zap.Error(err))
		} else {
			log.Debug("Request rejected", zap.String("kind", appErr.Kind.String()), zap.String("reason", appErr.Message))
		}
		return c.JSON(status, echo.Map{"error": appErr.Message})
	}

	log.Error("Unhandled error", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
}

// invalidRequest answers a body that could not be decoded
func invalidRequest(c echo.Context, err error) error {
	logger.FromContext(c).Warn("Failed to parse request", zap.Error(err))
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
}

// HTTPErrorHandler keeps errors raised by echo itself (unknown routes, bad
// methods, panics) in the same response shape as handler errors.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		message := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			message = m
		}
		if he.Code >= http.StatusInternalServerError {
			logger.FromContext(c).Error("Request failed", zap.Error(err))
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(he.Code)
			return
		}
		_ = c.JSON(he.Code, echo.Map{"error": message})
		return
	}

	_ = respondError(c, err)
}
