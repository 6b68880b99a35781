package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"maintenance-system/internal/services"
	"maintenance-system/pkg/utils"
)

type AssignmentController struct {
	assignmentService services.AssignmentServiceInterface
	logger            *zap.Logger
}

func NewAssignmentController(assignmentService services.AssignmentServiceInterface, logger *zap.Logger) *AssignmentController {
	return &AssignmentController{assignmentService: assignmentService, logger: logger}
}

// RunSweep - ручной запуск автоназначения. "Нет техников" - штатный ответ со status=false, не ошибка.
func (c *AssignmentController) RunSweep(ctx echo.Context) error {
	res, err := c.assignmentService.RunSweep(ctx.Request().Context())
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return ctx.JSON(http.StatusOK, &utils.HTTPResponse{Status: res.Success, Message: res.Message, Body: res})
}
