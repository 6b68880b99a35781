package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"maintenance-system/internal/dto"
	"maintenance-system/internal/services"
	apperrors "maintenance-system/pkg/errors"
	"maintenance-system/pkg/utils"
)

type TaskController struct {
	taskService services.TaskServiceInterface
	logger      *zap.Logger
}

func NewTaskController(taskService services.TaskServiceInterface, logger *zap.Logger) *TaskController {
	return &TaskController{taskService: taskService, logger: logger}
}

func (c *TaskController) ListTasks(ctx echo.Context) error {
	tasks, err := c.taskService.ListTasks(ctx.Request().Context())
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	if tasks == nil {
		tasks = make([]dto.RequestResponseDTO, 0)
	}
	return utils.SuccessResponse(ctx, tasks, "Задачи получены", http.StatusOK)
}

func (c *TaskController) Accept(ctx echo.Context) error {
	id, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	res, err := c.taskService.Accept(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Заявка принята в работу", http.StatusOK)
}

func (c *TaskController) Reject(ctx echo.Context) error {
	id, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	var payload dto.RejectTaskDTO
	// тело необязательно
	if ctx.Request().ContentLength > 0 {
		if err := ctx.Bind(&payload); err != nil {
			return utils.ErrorResponse(ctx, apperrors.NewHttpError(http.StatusBadRequest, "Неверный формат запроса", err, nil), c.logger)
		}
		if err := ctx.Validate(&payload); err != nil {
			return utils.ErrorResponse(ctx, err, c.logger)
		}
	}
	res, err := c.taskService.Reject(ctx.Request().Context(), id, payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Вы отказались от заявки", http.StatusOK)
}

func (c *TaskController) Complete(ctx echo.Context) error {
	id, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	var payload dto.TaskReportDTO
	if err := ctx.Bind(&payload); err != nil {
		return utils.ErrorResponse(ctx, apperrors.NewHttpError(http.StatusBadRequest, "Неверный формат запроса", err, nil), c.logger)
	}
	if err := ctx.Validate(&payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	res, err := c.taskService.Complete(ctx.Request().Context(), id, payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Отчёт сохранён, заявка завершена", http.StatusOK)
}
