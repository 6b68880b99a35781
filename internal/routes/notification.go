package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"maintenance-system/internal/controllers"
	"maintenance-system/internal/services"
)

func runNotificationRouter(
	secureGroup *echo.Group,
	notificationService services.NotificationServiceInterface,
	logger *zap.Logger,
) {
	notificationController := controllers.NewNotificationController(notificationService, logger)

	secureGroup.GET("/notifications", notificationController.GetMine)
	secureGroup.PUT("/notifications/:id/read", notificationController.MarkRead)
}
