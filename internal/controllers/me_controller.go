package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/osvaldoandrade/budgetauth/internal/middleware"
)

type meController struct{}

func NewMeController() *meController { return &meController{} }

// Handle renders the caller's context. Anonymous callers get a 200 too.
func (h *meController) Handle(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.GetAuthContext(c))
}
