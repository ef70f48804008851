package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/osvaldoandrade/budgetauth/internal/services"
	"github.com/osvaldoandrade/budgetauth/pkg/auth"
)

const authContextKey = "authContext"

// AuthContextMiddleware builds the authorization context for every request and
// never rejects. Rejection is the guards' job.
func AuthContextMiddleware(builder services.AuthContextService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ac := builder.Build(c.Request.Context(), c.Request.Header)
		c.Set(authContextKey, ac)
		c.Request = c.Request.WithContext(auth.WithContext(c.Request.Context(), ac))
		c.Next()
	}
}

// GetAuthContext returns the context stored by AuthContextMiddleware, or an
// anonymous one when the middleware did not run.
func GetAuthContext(c *gin.Context) auth.Context {
	if v, ok := c.Get(authContextKey); ok {
		if ac, ok := v.(auth.Context); ok {
			return ac
		}
	}
	return auth.FromContext(c.Request.Context())
}
