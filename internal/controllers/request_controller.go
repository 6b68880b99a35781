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

type RequestController struct {
	requestService services.RequestServiceInterface
	taskService    services.TaskServiceInterface
	logger         *zap.Logger
}

func NewRequestController(
	requestService services.RequestServiceInterface,
	taskService services.TaskServiceInterface,
	logger *zap.Logger,
) *RequestController {
	return &RequestController{requestService: requestService, taskService: taskService, logger: logger}
}

// bindAndValidate - общий разбор тела запроса.
func bindAndValidate(ctx echo.Context, payload interface{}) error {
	if err := ctx.Bind(payload); err != nil {
		return apperrors.NewHttpError(http.StatusBadRequest, "Неверный формат запроса", err, nil)
	}
	return ctx.Validate(payload)
}

func (c *RequestController) Create(ctx echo.Context) error {
	var payload dto.CreateRequestDTO
	if err := bindAndValidate(ctx, &payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	res, err := c.requestService.Create(ctx.Request().Context(), payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Заявка создана", http.StatusCreated)
}

func (c *RequestController) GetAll(ctx echo.Context) error {
	filter := utils.ParseFilterFromQuery(ctx.Request().URL.Query())
	list, total, err := c.requestService.GetAll(ctx.Request().Context(), filter)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	if list == nil {
		list = make([]dto.RequestResponseDTO, 0)
	}
	return utils.SuccessResponse(ctx, list, "Заявки получены", http.StatusOK, total)
}

func (c *RequestController) FindByID(ctx echo.Context) error {
	id, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	res, err := c.requestService.FindByID(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Заявка получена", http.StatusOK)
}

func (c *RequestController) Cancel(ctx echo.Context) error {
	id, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	res, err := c.requestService.Cancel(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Заявка отменена", http.StatusOK)
}

func (c *RequestController) Feedback(ctx echo.Context) error {
	id, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	var payload dto.FeedbackDTO
	if err := bindAndValidate(ctx, &payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	res, err := c.taskService.Rate(ctx.Request().Context(), id, payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Спасибо за оценку", http.StatusOK)
}

func (c *RequestController) Assign(ctx echo.Context) error {
	id, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	var payload dto.AssignRequestDTO
	if err := bindAndValidate(ctx, &payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	res, err := c.taskService.AssignManually(ctx.Request().Context(), id, payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Техник назначен", http.StatusOK)
}

func (c *RequestController) Support(ctx echo.Context) error {
	var payload dto.SupportRequestDTO
	if err := bindAndValidate(ctx, &payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	if err := c.requestService.SupportRequest(ctx.Request().Context(), payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, nil, "Обращение отправлено администраторам", http.StatusOK)
}
