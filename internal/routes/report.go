package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"maintenance-system/internal/controllers"
	"maintenance-system/internal/services"
	"maintenance-system/pkg/constants"
	"maintenance-system/pkg/middleware"
)

func runReportRouter(
	secureGroup *echo.Group,
	reportService services.ReportServiceInterface,
	logger *zap.Logger,
	authMW *middleware.AuthMiddleware,
) {
	reportController := controllers.NewReportController(reportService, logger)

	secureGroup.GET("/reports/technicians", reportController.GetTechnicianWorkload, authMW.RequireRoles(constants.RoleAdmin))
}
