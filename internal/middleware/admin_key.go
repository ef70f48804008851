package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const AdminKeyHeader = "X-Admin-Key"

// RequireAdminKey gates operator endpoints. An empty configured key disables them.
func RequireAdminKey(key string) gin.HandlerFunc {
	want := []byte(strings.TrimSpace(key))
	return func(c *gin.Context) {
		got := []byte(strings.TrimSpace(c.GetHeader(AdminKeyHeader)))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized. Admin only"})
			return
		}
		c.Next()
	}
}
