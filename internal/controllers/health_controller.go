package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Pinger - любая зависимость, доступность которой видна в /health.
type Pinger func(ctx context.Context) error

type HealthController struct {
	checks map[string]Pinger
	logger *zap.Logger
}

func NewHealthController(checks map[string]Pinger, logger *zap.Logger) *HealthController {
	return &HealthController{checks: checks, logger: logger}
}

func (c *HealthController) Health(ctx echo.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(c.checks))
	for name, ping := range c.checks {
		if err := ping(reqCtx); err != nil {
			c.logger.Warn("Health: зависимость недоступна", zap.String("dependency", name), zap.Error(err))
			deps[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "up"
	}
	return ctx.JSON(status, map[string]interface{}{
		"status":  status == http.StatusOK,
		"message": http.StatusText(status),
		"body":    deps,
	})
}
