package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/osvaldoandrade/budgetauth/internal/metrics"
	"github.com/osvaldoandrade/budgetauth/pkg/auth"
	"github.com/osvaldoandrade/budgetauth/pkg/domain"
)

const (
	verifiedKey  = "authVerified"
	guardCodeKey = "guardCode"
)

type check func(c *gin.Context, ac auth.Context) (auth.Verified, error)

func guard(fn check) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := fn(c, GetAuthContext(c))
		if err != nil {
			AbortWithGuardError(c, err)
			return
		}
		c.Set(verifiedKey, v)
		c.Next()
	}
}

func RequireAuth() gin.HandlerFunc {
	return guard(func(_ *gin.Context, ac auth.Context) (auth.Verified, error) {
		return auth.RequireAuth(ac)
	})
}

func RequireFamily() gin.HandlerFunc {
	return guard(func(_ *gin.Context, ac auth.Context) (auth.Verified, error) {
		return auth.RequireFamily(ac)
	})
}

func RequirePermission(perm domain.Permission) gin.HandlerFunc {
	return guard(func(_ *gin.Context, ac auth.Context) (auth.Verified, error) {
		return auth.RequirePermission(ac, perm)
	})
}

// RequireFamilyAccess checks the family named by the route parameter.
func RequireFamilyAccess(param string) gin.HandlerFunc {
	return guard(func(c *gin.Context, ac auth.Context) (auth.Verified, error) {
		return auth.RequireFamilyAccess(ac, c.Param(param))
	})
}

// RequireSelfOrAdmin checks the user named by the route parameter.
func RequireSelfOrAdmin(param string) gin.HandlerFunc {
	return guard(func(c *gin.Context, ac auth.Context) (auth.Verified, error) {
		return auth.RequireSelfOrAdmin(ac, c.Param(param))
	})
}

func RequireEmailVerified() gin.HandlerFunc {
	return guard(func(_ *gin.Context, ac auth.Context) (auth.Verified, error) {
		return auth.RequireEmailVerified(ac)
	})
}

// GetVerified returns what the last guard in the chain verified.
func GetVerified(c *gin.Context) (auth.Verified, bool) {
	v, ok := c.Get(verifiedKey)
	if !ok {
		return auth.Verified{}, false
	}
	verified, ok := v.(auth.Verified)
	return verified, ok
}

// AbortWithGuardError renders a guard rejection. The builder's failure message
// is exposed for 401s only; it never names internal causes.
func AbortWithGuardError(c *gin.Context, err error) {
	var ge *auth.GuardError
	if !errors.As(err, &ge) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}
	metrics.GuardDenialsTotal.WithLabelValues(string(ge.Code)).Inc()
	c.Set(guardCodeKey, string(ge.Code))
	body := gin.H{"error": ge.Error(), "code": ge.Code}
	if ge.Code == auth.CodeUnauthenticated {
		if reason := GetAuthContext(c).Error(); reason != "" {
			body["reason"] = reason
		}
	}
	c.AbortWithStatusJSON(ge.HTTPStatus(), body)
}
