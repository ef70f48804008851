package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/osvaldoandrade/budgetauth/internal/middleware"
)

// ReadinessCheck is one dependency probed by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type healthController struct {
	checks  []ReadinessCheck
	timeout time.Duration
}

func NewHealthController(timeout time.Duration, checks ...ReadinessCheck) *healthController {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &healthController{checks: checks, timeout: timeout}
}

func (h *healthController) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *healthController) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	out := make(gin.H, len(h.checks))
	for _, chk := range h.checks {
		if err := chk.Check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			out[chk.Name] = "down"
			middleware.GetLogger(c).Warn("readiness check failed", "check", chk.Name, "err", err)
			continue
		}
		out[chk.Name] = "up"
	}
	c.JSON(status, gin.H{"ready": status == http.StatusOK, "checks": out})
}
