package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"maintenance-system/internal/controllers"
	"maintenance-system/internal/services"
	"maintenance-system/pkg/constants"
	"maintenance-system/pkg/middleware"
)

func runAssignmentRouter(
	secureGroup *echo.Group,
	assignmentService services.AssignmentServiceInterface,
	logger *zap.Logger,
	authMW *middleware.AuthMiddleware,
) {
	assignmentController := controllers.NewAssignmentController(assignmentService, logger)

	secureGroup.POST("/auto-assign", assignmentController.RunSweep, authMW.RequireRoles(constants.RoleAdmin))
}
