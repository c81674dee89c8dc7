// Точка входа Pro Forma Module — подсистема pro forma запросов LexoHub.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// создаёт клиент ядра LexoHub, сервисный слой и API handlers,
// запускает topologymetrics и HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/api/handlers"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/api/middleware"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/config"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/coreclient"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/database"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/repository"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/server"
	"github.com/immanueldhliso-sys/LexoHubImmanuel-sub002/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Pro Forma Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// Предупреждение о дефолтной группе topologymetrics
	if os.Getenv("PF_DEPHEALTH_GROUP") == "" {
		logger.Warn("PF_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	// Проверка здоровья PostgreSQL идёт через существующий пул соединений,
	// что позволяет обнаружить его исчерпание.
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Клиент ядра LexoHub (matters, invoices, справочник практиков)
	coreClient, err := coreclient.New(
		cfg.CoreURL,
		cfg.CoreCACertPath,
		coreclient.StaticTokenProvider(cfg.CoreAuthToken),
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания клиента ядра", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Клиент ядра LexoHub создан", slog.String("url", cfg.CoreURL))

	// 6. Repository
	requestRepo := repository.NewProFormaRequestRepository(pool)

	// 7. Services
	issuanceSvc := service.NewIssuanceService(requestRepo, cfg, logger)
	intakeSvc := service.NewIntakeService(requestRepo, coreClient, logger)
	worklistSvc := service.NewWorklistService(requestRepo, logger)
	dispatchSvc := service.NewDispatchService(requestRepo, coreClient, logger)

	// 8. Readiness checkers (PostgreSQL + Keycloak)
	pgChecker := database.NewReadinessChecker(pool)
	kcChecker, err := middleware.NewKeycloakReadinessChecker(cfg.JWTJWKSURL, cfg.CoreCACertPath)
	if err != nil {
		logger.Error("Ошибка создания Keycloak readiness checker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	healthHandler := handlers.NewHealthHandler(pgChecker, kcChecker)

	// 9. API handler
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		issuanceSvc,
		intakeSvc,
		worklistSvc,
		dispatchSvc,
		logger,
	)

	// 10. JWT middleware
	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWTJWKSURL,
		cfg.CoreCACertPath,
		cfg.JWTIssuer,
		cfg.PractitionerGroups,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer jwtAuth.Close()
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 11. topologymetrics — мониторинг зависимостей
	// (PostgreSQL + Keycloak + ядро LexoHub)
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthParams{
		ServiceID:       "proforma-module",
		Group:           cfg.DephealthGroup,
		DB:              pgDB,
		PGConnURL:       cfg.DatabaseURL(),
		KeycloakJWKSURL: cfg.JWTJWKSURL,
		CoreURL:         cfg.CoreURL,
		CheckInterval:   cfg.DephealthCheckInterval,
	}, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 12. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 13. Graceful shutdown фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Pro Forma Module остановлен")
}
