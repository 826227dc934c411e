package handler

import (
	"net/http"
	"time"

	"github.com/Ealanisln/alanis-backend/pkg/database"
	"github.com/Ealanisln/alanis-backend/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const apiVersion = "1.0.0"

// HealthHandler serves the root and health endpoints
type HealthHandler struct {
	db      *gorm.DB
	started time.Time
}

// NewHealthHandler creates a HealthHandler
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db, started: time.Now()}
}

// Hello returns a simple welcome message
func (h *HealthHandler) Hello(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"message":   "Alanis Backend API is running!",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   apiVersion,
	})
}

// HealthCheck reports process uptime and database reachability
func (h *HealthHandler) HealthCheck(c echo.Context) error {
	response := echo.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.started).Seconds(),
	}

	if err := database.Ping(h.db); err != nil {
		logger.FromContext(c).Error("Database ping error", zap.Error(err))
		response["status"] = "error"
		response["db_status"] = "error"
		return c.JSON(http.StatusServiceUnavailable, response)
	}
	response["db_status"] = "ok"

	return c.JSON(http.StatusOK, response)
}
