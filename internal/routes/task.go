package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"maintenance-system/internal/controllers"
	"maintenance-system/internal/services"
	"maintenance-system/pkg/constants"
	"maintenance-system/pkg/middleware"
)

func runTaskRouter(
	secureGroup *echo.Group,
	taskService services.TaskServiceInterface,
	logger *zap.Logger,
	authMW *middleware.AuthMiddleware,
) {
	taskController := controllers.NewTaskController(taskService, logger)

	tasks := secureGroup.Group("/tasks", authMW.RequireRoles(constants.RoleTechnician))
	tasks.GET("", taskController.ListTasks)
	tasks.POST("/:id/accept", taskController.Accept)
	tasks.POST("/:id/reject", taskController.Reject)
	tasks.POST("/:id/report", taskController.Complete)
}
