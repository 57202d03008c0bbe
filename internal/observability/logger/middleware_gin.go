package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GinMiddleware logs each request with route, status, latency and actor.
func GinMiddleware(log *zap.Logger) gin.HandlerFunc {
	access := log.Named("http.access")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("actor", c.GetHeader("X-Actor")),
		}
		if lastErr := c.Errors.Last(); lastErr != nil {
			fields = append(fields, zap.Error(lastErr.Err))
		}

		if c.Writer.Status() >= 500 {
			access.Error("request", fields...)
			return
		}
		access.Info("request", fields...)
	}
}
