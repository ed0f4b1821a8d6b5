package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/pkg/logger"
)

// Audit actions recorded for timetable endpoints.
const (
	AuditActionGenerateCore = "TIMETABLE_GENERATE"
	AuditActionGenerateLabs = "LAB_TIMETABLE_GENERATE"
)

// Audit records a structured audit entry after each successful request.
func Audit(l *zap.Logger, action string) gin.HandlerFunc {
	if l == nil {
		l = zap.NewNop()
	}
	l = l.Named("audit")
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		fields := []zap.Field{
			zap.String("action", action),
			zap.String("path", c.FullPath()),
			zap.String("method", c.Request.Method),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("latency_ms", time.Since(start).Milliseconds()),
			zap.String("ip_address", c.ClientIP()),
			zap.String("user_agent", c.GetHeader("User-Agent")),
		}
		if claims, ok := ClaimsFromContext(c); ok {
			fields = append(fields, zap.String("user_id", claims.UserID), zap.String("role", string(claims.Role)))
		}
		if hit, ok := ensureMeta(c)[cacheHitKey].(bool); ok {
			fields = append(fields, zap.Bool("cache_hit", hit))
		}
		logger.FromContext(c, l).Info("audit", fields...)
	}
}
