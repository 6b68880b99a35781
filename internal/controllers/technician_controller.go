package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"maintenance-system/internal/dto"
	"maintenance-system/internal/services"
	"maintenance-system/pkg/utils"
)

type TechnicianController struct {
	technicianService services.TechnicianServiceInterface
	logger            *zap.Logger
}

func NewTechnicianController(technicianService services.TechnicianServiceInterface, logger *zap.Logger) *TechnicianController {
	return &TechnicianController{technicianService: technicianService, logger: logger}
}

func (c *TechnicianController) GetAll(ctx echo.Context) error {
	filter := utils.ParseFilterFromQuery(ctx.Request().URL.Query())
	list, total, err := c.technicianService.GetAll(ctx.Request().Context(), filter)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	if list == nil {
		list = make([]dto.TechnicianResponseDTO, 0)
	}
	return utils.SuccessResponse(ctx, list, "Техники получены", http.StatusOK, total)
}

func (c *TechnicianController) Create(ctx echo.Context) error {
	var payload dto.CreateTechnicianDTO
	if err := bindAndValidate(ctx, &payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	res, err := c.technicianService.Create(ctx.Request().Context(), payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Техник добавлен", http.StatusCreated)
}

// FindByID принимает и числовой id, и публичный uuid техника.
func (c *TechnicianController) FindByID(ctx echo.Context) error {
	if publicID, err := uuid.Parse(ctx.Param("id")); err == nil {
		res, err := c.technicianService.FindByPublicID(ctx.Request().Context(), publicID)
		if err != nil {
			return utils.ErrorResponse(ctx, err, c.logger)
		}
		return utils.SuccessResponse(ctx, res, "Техник получен", http.StatusOK)
	}

	id, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	res, err := c.technicianService.FindByID(ctx.Request().Context(), id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Техник получен", http.StatusOK)
}

func (c *TechnicianController) Update(ctx echo.Context) error {
	id, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	var payload dto.UpdateTechnicianDTO
	if err := bindAndValidate(ctx, &payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	res, err := c.technicianService.Update(ctx.Request().Context(), id, payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Данные техника обновлены", http.StatusOK)
}

func (c *TechnicianController) SetAvailability(ctx echo.Context) error {
	id, err := utils.ParseIDParam(ctx, "id")
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	var payload dto.AvailabilityDTO
	if err := bindAndValidate(ctx, &payload); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	res, err := c.technicianService.SetAvailability(ctx.Request().Context(), id, payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Доступность обновлена", http.StatusOK)
}
