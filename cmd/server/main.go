package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/enrollhub/enrollment-service/internal/api/rest"
	"github.com/enrollhub/enrollment-service/internal/config"
	"github.com/enrollhub/enrollment-service/internal/counts"
	"github.com/enrollhub/enrollment-service/internal/kafka"
	"github.com/enrollhub/enrollment-service/internal/lock"
	"github.com/enrollhub/enrollment-service/internal/metrics"
	"github.com/enrollhub/enrollment-service/internal/repository"
	"github.com/enrollhub/enrollment-service/internal/repository/postgres"
	"github.com/enrollhub/enrollment-service/internal/service"
	"github.com/enrollhub/enrollment-service/pkg/logger"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("Failed to load configuration: %v", err)
	}

	log := logger.NewLogger(cfg.Log.Level)
	defer log.Sync()

	if cfg.Auth.JWTSecret == "" {
		log.Warnw("JWT secret is empty, issued tokens will not verify")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализация Prometheus
	promRegistry := prometheus.NewRegistry()
	enrollmentMetrics := metrics.NewEnrollmentMetrics(promRegistry, log)
	systemMetrics := metrics.NewSystemMetrics(promRegistry, log)

	// Запускаем сбор системных метрик
	systemMetrics.StartRecording(cfg.Worker.SystemMetricsInterval)
	defer systemMetrics.Stop()

	// Подключение к базе данных
	pool, err := postgres.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatalw("Failed to connect to database", "error", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool, log); err != nil {
		log.Fatalw("Failed to run migrations", "error", err)
	}

	// Подключение к Redis
	redisClient, err := repository.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		log.Fatalw("Failed to connect to Redis", "error", err)
	}
	defer redisClient.Close()

	cache := repository.NewRedisCache(redisClient, cfg.Redis.CacheTTL, log)

	// Репозитории
	offeringRepo := repository.NewCachedOfferingRepository(
		postgres.NewPostgresOfferingRepository(pool, log), cache, log)
	registrationRepo := postgres.NewPostgresRegistrationRepository(pool, log)
	paymentRepo := postgres.NewPostgresPaymentRepository(pool, log)
	txManager := postgres.NewTxManager(pool, log)

	lockManager := lock.NewManager(redisClient, cfg.Lock.RetryInterval, log)
	tracker := counts.NewTracker(redisClient, log)

	// Kafka продюсер. Без брокеров сервис работает, события пропускаются.
	var eventProducer kafka.Producer
	if producer, err := kafka.NewProducer(cfg.Kafka.Brokers, log); err != nil {
		log.Warnw("Kafka producer disabled", "error", err)
	} else {
		if err := kafka.EnsureTopics(cfg.Kafka.Brokers, log); err != nil {
			log.Warnw("Failed to ensure Kafka topics", "error", err)
		}
		eventProducer = producer
		defer producer.Close()
	}

	// Сервисы
	enrollmentService := service.NewEnrollmentService(service.EnrollmentDeps{
		Offerings:     offeringRepo,
		Registrations: registrationRepo,
		Payments:      paymentRepo,
		Tx:            txManager,
		Locks:         lockManager,
		Tracker:       tracker,
		Producer:      eventProducer,
		Metrics:       enrollmentMetrics,
		Log:           log,
		LockTTL:       cfg.Lock.TTL,
		LockMaxWait:   cfg.Lock.MaxWait,
	})
	paymentQueryService := service.NewPaymentQueryService(paymentRepo, log)
	catalogService := service.NewCatalogService(offeringRepo, registrationRepo, log)

	// Фоновый пересчет счетчиков регистраций
	syncer := counts.NewSyncer(redisClient, registrationRepo, offeringRepo, log)
	syncer.Start(cfg.Worker.CountSyncInterval)
	defer syncer.Stop()

	// Установка режима Gin
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Настройка маршрутизатора
	router := rest.SetupRouter(rest.RouterDeps{
		Enrollment: enrollmentService,
		Payments:   paymentQueryService,
		Catalog:    catalogService,
		Pool:       pool,
		Redis:      redisClient,
		Registry:   promRegistry,
		JWTSecret:  cfg.Auth.JWTSecret,
		Log:        log,
	})

	// Создание и запуск HTTP сервера
	server := rest.NewServer(router, cfg, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalw("Server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Server forced to shutdown", "error", err)
	}

	log.Infow("Server stopped gracefully")
}
