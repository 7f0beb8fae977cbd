package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/nvr-ai/go-detect/api"
	"github.com/nvr-ai/go-detect/logger"
	"go.uber.org/zap"
)

const requestIDKey = "requestID"

// requestID reuses the caller's X-Request-ID or assigns a new UUID, and echoes it back.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(api.HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(api.HeaderRequestID, id)
		c.Next()
	}
}

// accessLog writes one entry per request.
func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("requestID", c.GetString(requestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.String()))
			logger.Log().Warn("request failed", fields...)
			return
		}
		logger.Log().Info("request", fields...)
	}
}
