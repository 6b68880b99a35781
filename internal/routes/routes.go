package routes

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"maintenance-system/internal/controllers"
	"maintenance-system/internal/repositories"
	"maintenance-system/internal/services"
	"maintenance-system/pkg/config"
	"maintenance-system/pkg/eventbus"
	"maintenance-system/pkg/middleware"
	"maintenance-system/pkg/service"
)

type Loggers struct {
	Main       *zap.Logger
	Auth       *zap.Logger
	Assignment *zap.Logger
	Task       *zap.Logger
}

func InitRouter(
	e *echo.Echo,
	dbConn *pgxpool.Pool,
	redisClient *redis.Client,
	jwtSvc service.JWTService,
	bus *eventbus.Bus,
	loggers *Loggers,
	cfg *config.Config,
) {
	loggers.Main.Info("InitRouter: Начало создания маршрутов")

	// --- 0. ОБЩИЕ КОМПОНЕНТЫ ---
	api := e.Group("/api")
	authMW := middleware.NewAuthMiddleware(jwtSvc, loggers.Auth)
	txManager := repositories.NewTxManager(dbConn)

	// --- 1. РЕПОЗИТОРИИ ---
	requestRepo := repositories.NewRequestRepository(dbConn, loggers.Main)
	technicianRepo := repositories.NewTechnicianRepository(dbConn, loggers.Main)
	notificationRepo := repositories.NewNotificationRepository(dbConn, loggers.Main)
	taskReportRepo := repositories.NewTaskReportRepository(dbConn, loggers.Task)
	userRepo := repositories.NewUserRepository(dbConn, loggers.Main)
	reportRepo := repositories.NewReportRepository(dbConn)
	cacheRepo := repositories.NewRedisCacheRepository(redisClient)

	// --- 2. СЕРВИСЫ ---
	notificationService := services.NewNotificationService(notificationRepo, technicianRepo, loggers.Main)
	assignmentService := services.NewAssignmentService(
		txManager, requestRepo, technicianRepo, cacheRepo,
		notificationService, bus, cfg.Assignment, loggers.Assignment,
	)
	taskService := services.NewTaskService(
		txManager, requestRepo, technicianRepo, taskReportRepo,
		notificationService, assignmentService, bus, cfg.Assignment, loggers.Task,
	)
	requestService := services.NewRequestService(
		txManager, requestRepo, technicianRepo, userRepo, taskReportRepo,
		notificationService, bus, cfg.Assignment, loggers.Main,
	)
	technicianService := services.NewTechnicianService(technicianRepo, userRepo, loggers.Main)
	reportService := services.NewReportService(reportRepo, loggers.Main)

	// --- 3. РОУТЕРЫ ---
	healthController := controllers.NewHealthController(map[string]controllers.Pinger{
		"postgres": dbConn.Ping,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}, loggers.Main)
	api.GET("/health", healthController.Health)

	secureGroup := api.Group("", authMW.Auth)

	runAssignmentRouter(secureGroup, assignmentService, loggers.Assignment, authMW)
	runTaskRouter(secureGroup, taskService, loggers.Task, authMW)
	runRequestRouter(secureGroup, requestService, taskService, loggers.Main, authMW)
	runTechnicianRouter(secureGroup, technicianService, loggers.Main, authMW)
	runNotificationRouter(secureGroup, notificationService, loggers.Main)
	runReportRouter(secureGroup, reportService, loggers.Main, authMW)

	loggers.Main.Info("INIT_ROUTER: Создание маршрутов завершено")
}
