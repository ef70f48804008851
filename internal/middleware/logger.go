package middleware

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/osvaldoandrade/budgetauth/internal/requestid"
)

const loggerKey = "logger"

func LoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		l := logger
		if id := requestid.From(c.Request.Context()); id != "" {
			l = logger.With("request_id", id)
		}
		c.Set(loggerKey, l)
		c.Next()
	}
}

// GetLogger returns the request-scoped logger, falling back to slog.Default.
func GetLogger(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*slog.Logger); ok {
			return l
		}
	}
	return slog.Default()
}
