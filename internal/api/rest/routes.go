package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/enrollhub/enrollment-service/internal/api/rest/handlers"
	"github.com/enrollhub/enrollment-service/internal/api/rest/middleware"
	"github.com/enrollhub/enrollment-service/internal/service"
	"github.com/enrollhub/enrollment-service/pkg/logger"
)

// RouterDeps зависимости HTTP маршрутизатора
type RouterDeps struct {
	Enrollment *service.EnrollmentService
	Payments   *service.PaymentQueryService
	Catalog    *service.CatalogService
	Pool       *pgxpool.Pool
	Redis      *redis.Client
	Registry   *prometheus.Registry
	JWTSecret  string
	Log        *logger.Logger
}

// SetupRouter настраивает маршрутизатор Gin с маршрутами и middleware
func SetupRouter(deps RouterDeps) *gin.Engine {
	handlers.RegisterBindingValidations()

	r := gin.New()

	// Подключение middleware
	r.Use(middleware.LoggerMiddleware(deps.Log))
	r.Use(gin.Recovery())

	// Endpoint для проверки работоспособности сервиса
	healthHandler := handlers.NewHealthHandler(deps.Pool, deps.Redis, deps.Log)
	r.GET("/health", healthHandler.Check)

	// Prometheus метрики
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))

	// Инициализация обработчиков
	enrollmentHandler := handlers.NewEnrollmentHandler(deps.Enrollment, deps.Log)
	paymentHandler := handlers.NewPaymentHandler(deps.Enrollment, deps.Payments, deps.Log)
	catalogHandler := handlers.NewCatalogHandler(deps.Catalog, deps.Log)

	auth := middleware.NewAuthMiddleware(middleware.NewJWTValidator(deps.JWTSecret), deps.Log)

	v1 := r.Group("/api/v1")
	v1.Use(auth.RequireAuth())
	{
		// Каталог и регистрации
		offerings := v1.Group("/offerings")
		{
			offerings.GET("/:kind", catalogHandler.List)
			offerings.GET("/:kind/:id", catalogHandler.Get)
			offerings.POST("/:kind/:id/apply", enrollmentHandler.Apply)
			offerings.POST("/:kind/:id/complete", enrollmentHandler.Complete)
		}

		// Платежи
		payments := v1.Group("/payments")
		{
			payments.GET("", paymentHandler.List)
			payments.GET("/:id", paymentHandler.Get)
			payments.POST("/:id/cancel", paymentHandler.Cancel)
		}
	}

	return r
}
