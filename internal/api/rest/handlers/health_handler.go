package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/enrollhub/enrollment-service/pkg/logger"
)

// HealthHandler обработчик для проверки работоспособности сервиса
type HealthHandler struct {
	pool  *pgxpool.Pool
	redis *redis.Client
	log   *logger.Logger
}

// NewHealthHandler создает новый обработчик проверки работоспособности
func NewHealthHandler(pool *pgxpool.Pool, redisClient *redis.Client, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		pool:  pool,
		redis: redisClient,
		log:   log,
	}
}

// Check опрашивает зависимости и возвращает статус сервиса
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{"postgres": "ok", "redis": "ok"}

	if err := h.pool.Ping(ctx); err != nil {
		h.log.Warnw("Postgres health check failed", "error", err)
		checks["postgres"] = "unreachable"
		status = http.StatusServiceUnavailable
	}
	if err := h.redis.Ping(ctx).Err(); err != nil {
		h.log.Warnw("Redis health check failed", "error", err)
		checks["redis"] = "unreachable"
		status = http.StatusServiceUnavailable
	}

	body := gin.H{
		"status": "OK",
		"time":   time.Now().Format(time.RFC3339),
		"checks": checks,
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}

	c.JSON(status, body)
}
