package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/osvaldoandrade/budgetauth/internal/middleware"
	"github.com/osvaldoandrade/budgetauth/internal/services"
	"github.com/osvaldoandrade/budgetauth/pkg/auth"
	"github.com/osvaldoandrade/budgetauth/pkg/persistence"
)

// bindJSON decodes the body into req and runs its ozzo rules. It writes the
// 400 itself and reports false on failure.
func bindJSON(c *gin.Context, req validation.Validatable) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return false
	}
	if err := req.Validate(); err != nil {
		var fields validation.Errors
		if errors.As(err, &fields) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body", "fields": fields})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidRefreshToken):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrAccountDisabled):
		return http.StatusForbidden
	case errors.Is(err, services.ErrInvalidInvitation),
		errors.Is(err, services.ErrInvalidVerificationToken),
		errors.Is(err, services.ErrRoleNotInvitable):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrEmailAlreadyVerified):
		return http.StatusConflict
	case errors.Is(err, persistence.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrRevocationStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps service errors to their HTTP form. Internal causes are
// logged and never rendered.
func writeError(c *gin.Context, err error) {
	var ge *auth.GuardError
	if errors.As(err, &ge) {
		middleware.AbortWithGuardError(c, err)
		return
	}
	status := statusFor(err)
	switch status {
	case http.StatusInternalServerError:
		middleware.GetLogger(c).Error("request failed", "path", c.FullPath(), "err", err)
		c.JSON(status, gin.H{"error": "internal error"})
	case http.StatusServiceUnavailable:
		middleware.GetLogger(c).Error("revocation store unavailable", "path", c.FullPath(), "err", err)
		c.JSON(status, gin.H{"error": "service temporarily unavailable"})
	case http.StatusNotFound:
		c.JSON(status, gin.H{"error": "not found"})
	default:
		c.JSON(status, gin.H{"error": err.Error()})
	}
}

// verifiedOrAbort returns the guard result stored on the request. Routes that
// reach a controller without a guard are a wiring bug and get a 401.
func verifiedOrAbort(c *gin.Context) (auth.Verified, bool) {
	v, ok := middleware.GetVerified(c)
	if !ok {
		middleware.AbortWithGuardError(c, auth.ErrUnauthenticated)
	}
	return v, ok
}
