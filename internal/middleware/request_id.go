package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/osvaldoandrade/budgetauth/internal/requestid"
)

const requestIDKey = "request_id"

func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := requestid.Sanitize(c.GetHeader(requestid.Header))
		if reqID == "" {
			reqID = requestid.New()
		}
		c.Writer.Header().Set(requestid.Header, reqID)
		c.Request = c.Request.WithContext(requestid.With(c.Request.Context(), reqID))
		c.Set(requestIDKey, reqID)
		c.Next()
	}
}
