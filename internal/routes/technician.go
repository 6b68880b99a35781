package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"maintenance-system/internal/controllers"
	"maintenance-system/internal/services"
	"maintenance-system/pkg/constants"
	"maintenance-system/pkg/middleware"
)

func runTechnicianRouter(
	secureGroup *echo.Group,
	technicianService services.TechnicianServiceInterface,
	logger *zap.Logger,
	authMW *middleware.AuthMiddleware,
) {
	technicianController := controllers.NewTechnicianController(technicianService, logger)

	adminOnly := authMW.RequireRoles(constants.RoleAdmin)

	secureGroup.GET("/technicians", technicianController.GetAll, adminOnly)
	secureGroup.POST("/technicians", technicianController.Create, adminOnly)
	secureGroup.GET("/technicians/:id", technicianController.FindByID, adminOnly)
	secureGroup.PUT("/technicians/:id", technicianController.Update, adminOnly)
	secureGroup.PUT("/technicians/:id/availability", technicianController.SetAvailability,
		authMW.RequireRoles(constants.RoleAdmin, constants.RoleTechnician))
}
