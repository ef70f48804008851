package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/osvaldoandrade/budgetauth/internal/services"
)

type refreshController struct{ svc services.SessionService }

func NewRefreshController(svc services.SessionService) *refreshController {
	return &refreshController{svc}
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

func (r refreshReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

func (h *refreshController) Handle(c *gin.Context) {
	var req refreshReq
	if !bindJSON(c, &req) {
		return
	}
	pair, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}
