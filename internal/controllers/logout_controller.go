package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/osvaldoandrade/budgetauth/internal/middleware"
	"github.com/osvaldoandrade/budgetauth/internal/services"
)

type logoutController struct{ svc services.SessionService }

func NewLogoutController(svc services.SessionService) *logoutController {
	return &logoutController{svc}
}

type logoutReq struct {
	RefreshToken string `json:"refreshToken,omitempty"`
}

func (h *logoutController) Handle(c *gin.Context) {
	if _, ok := verifiedOrAbort(c); !ok {
		return
	}
	var req logoutReq
	_ = c.ShouldBindJSON(&req) // body is optional

	if err := h.svc.Logout(c.Request.Context(), middleware.GetAuthContext(c).Token(), req.RefreshToken); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"loggedOut": true})
}
