package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/enrollhub/enrollment-service/pkg/logger"
)

// LoggerMiddleware создает middleware для логирования запросов
func LoggerMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		// Обработка запроса
		c.Next()

		latency := time.Since(startTime)
		statusCode := c.Writer.Status()

		fields := []any{
			"method", c.Request.Method,
			"path", c.Request.RequestURI,
			"status", statusCode,
			"latency", latency.String(),
			"ip", c.ClientIP(),
		}

		switch {
		case statusCode >= 500:
			log.Errorw("Request failed", fields...)
		case statusCode >= 400:
			log.Warnw("Request rejected", fields...)
		default:
			log.Infow("Request handled", fields...)
		}
	}
}
