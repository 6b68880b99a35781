// Файл: main.go

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"maintenance-system/internal/listeners"
	"maintenance-system/internal/routes"
	"maintenance-system/internal/services"
	"maintenance-system/pkg/config"
	"maintenance-system/pkg/customvalidator"
	"maintenance-system/pkg/database/postgresql"
	apperrors "maintenance-system/pkg/errors"
	"maintenance-system/pkg/eventbus"
	applogger "maintenance-system/pkg/logger"
	"maintenance-system/pkg/middleware"
	"maintenance-system/pkg/service"
	"maintenance-system/pkg/utils"
)

func main() {
	// 1. Конфиг и логгер
	cfg := config.New()
	logger := applogger.NewLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Echo и middleware
	e := echo.New()
	e.HideBanner = true

	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		DisableStackAll: true,
		StackSize:       1 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("!!! ОБНАРУЖЕНА ПАНИКА (PANIC) !!!",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
				zap.String("stack", string(stack)),
			)
			if !c.Response().Committed {
				httpErr := apperrors.NewHttpError(http.StatusInternalServerError, "Внутренняя ошибка сервера", err, nil)
				_ = utils.ErrorResponse(c, httpErr, logger)
			}
			return err
		},
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		ExposeHeaders:    []string{echo.HeaderContentDisposition},
	}))
	e.Use(middleware.RequestLogger(logger))

	v := validator.New()
	if err := customvalidator.RegisterCustomValidations(v); err != nil {
		logger.Fatal("Ошибка регистрации кастомных правил валидации", zap.Error(err))
	}
	e.Validator = utils.NewValidator(v)

	// 3. PostgreSQL и миграции
	dbConn, err := postgresql.ConnectDB(ctx, cfg.Postgres.DSN, logger)
	if err != nil {
		logger.Fatal("не удалось подключиться к PostgreSQL", zap.Error(err))
	}
	defer dbConn.Close()

	if cfg.Postgres.AutoMigrate {
		if err := postgresql.RunMigrations(ctx, dbConn, logger); err != nil {
			logger.Fatal("ошибка применения миграций", zap.Error(err))
		}
	}

	// 4. Redis: общая блокировка прогона автоназначения
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		logger.Fatal("не удалось подключиться к Redis", zap.Error(err), zap.String("address", cfg.Redis.Address))
	}

	// 5. Шина событий и почтовые уведомления
	bus := eventbus.New(logger.Named("eventbus"))
	mailer := services.NewLogMailer(cfg.Mail.From, logger.Named("mailer"))
	listeners.NewNotificationListener(mailer, cfg.Mail, logger.Named("listener")).Register(bus)

	// 6. Роуты
	jwtSvc := service.NewJWTService(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL, cfg.JWT.RefreshTokenTTL, logger)
	routes.InitRouter(e, dbConn, redisClient, jwtSvc, bus, &routes.Loggers{
		Main:       logger,
		Auth:       logger.Named("auth"),
		Assignment: logger.Named("assignment"),
		Task:       logger.Named("task"),
	}, cfg)

	// 7. Запуск и плавная остановка
	go func() {
		logger.Info("🚀 Сервер запущен", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Ошибка запуска сервера", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Получен сигнал остановки, завершаем работу")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Ошибка остановки HTTP-сервера", zap.Error(err))
	}
	if err := bus.Wait(shutdownCtx); err != nil {
		logger.Warn("Не все обработчики событий успели завершиться", zap.Error(err))
	}
}
