package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"maintenance-system/internal/controllers"
	"maintenance-system/internal/services"
	"maintenance-system/pkg/constants"
	"maintenance-system/pkg/middleware"
)

func runRequestRouter(
	secureGroup *echo.Group,
	requestService services.RequestServiceInterface,
	taskService services.TaskServiceInterface,
	logger *zap.Logger,
	authMW *middleware.AuthMiddleware,
) {
	requestController := controllers.NewRequestController(requestService, taskService, logger)

	clientOnly := authMW.RequireRoles(constants.RoleClient)

	secureGroup.POST("/requests", requestController.Create, clientOnly)
	secureGroup.GET("/requests", requestController.GetAll, authMW.RequireRoles(constants.RoleClient, constants.RoleAdmin))
	// видимость конкретной заявки проверяет сервис
	secureGroup.GET("/requests/:id", requestController.FindByID)
	secureGroup.POST("/requests/:id/cancel", requestController.Cancel, clientOnly)
	secureGroup.POST("/requests/:id/feedback", requestController.Feedback, clientOnly)
	secureGroup.POST("/requests/:id/assign", requestController.Assign, authMW.RequireRoles(constants.RoleAdmin))
	secureGroup.POST("/support", requestController.Support, clientOnly)
}
