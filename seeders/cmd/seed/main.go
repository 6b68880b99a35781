package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"

	"maintenance-system/pkg/config"
	"maintenance-system/pkg/database/postgresql"
	"maintenance-system/pkg/service"
	"maintenance-system/seeders"
)

func main() {
	log.Println("======================================================")
	log.Println("       🌱 СИСТЕМА СИДЕРОВ (Наполнение БД)           ")
	log.Println("======================================================")

	runUsers := flag.Bool("users", false, "Создать администратора, клиента и техников")
	runRequests := flag.Bool("requests", false, "Добавить заявки в пул ожидания")
	printTokens := flag.Bool("tokens", false, "Вывести access-токены всех пользователей")
	runAll := flag.Bool("all", false, "Запустить все сидеры (эквивалентно -users -requests -tokens)")

	flag.Parse()

	if !*runUsers && !*runRequests && !*printTokens && !*runAll {
		log.Println("❌ Не выбран ни один сидер для запуска.")
		log.Println("")
		log.Println("Доступные флаги:")
		flag.PrintDefaults()
		log.Println("")
		log.Println("Примеры использования:")
		log.Println("  go run ./seeders/cmd/seed -users")
		log.Println("  go run ./seeders/cmd/seed -all")
		log.Println("======================================================")
		return
	}

	ctx := context.Background()
	cfg := config.New()
	logger := zap.NewNop()

	dbPool, err := postgresql.ConnectDB(ctx, cfg.Postgres.DSN, logger)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer dbPool.Close()

	if err := postgresql.RunMigrations(ctx, dbPool, logger); err != nil {
		log.Fatalf("❌ Ошибка миграций: %v", err)
	}

	if *runAll || *runUsers {
		if err := seeders.SeedUsers(ctx, dbPool); err != nil {
			log.Fatalf("❌ Ошибка наполнения пользователей: %v", err)
		}
		log.Println("======================================================")
	}

	if *runAll || *runRequests {
		// заявкам нужен клиент
		if err := seeders.SeedRequests(ctx, dbPool); err != nil {
			log.Fatalf("❌ Ошибка наполнения заявок: %v", err)
		}
		log.Println("======================================================")
	}

	if *runAll || *printTokens {
		jwtSvc := service.NewJWTService(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL, cfg.JWT.RefreshTokenTTL, logger)
		if err := seeders.PrintTokens(ctx, dbPool, jwtSvc); err != nil {
			log.Fatalf("❌ Ошибка выдачи токенов: %v", err)
		}
	}

	log.Println("🎉 Готово")
}
