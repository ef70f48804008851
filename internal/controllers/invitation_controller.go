package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/osvaldoandrade/budgetauth/internal/services"
	"github.com/osvaldoandrade/budgetauth/pkg/domain"
)

type createInvitationController struct{ svc services.InvitationService }

func NewCreateInvitationController(svc services.InvitationService) *createInvitationController {
	return &createInvitationController{svc}
}

type createInvitationReq struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (r createInvitationReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Role, validation.Required, validation.In("ADMIN", "MEMBER", "admin", "member")),
	)
}

func (h *createInvitationController) Handle(c *gin.Context) {
	v, ok := verifiedOrAbort(c)
	if !ok {
		return
	}
	var req createInvitationReq
	if !bindJSON(c, &req) {
		return
	}
	inv, err := h.svc.Create(c.Request.Context(), v, req.Email, domain.ParseRole(req.Role))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inv)
}

type previewInvitationController struct{ svc services.InvitationService }

func NewPreviewInvitationController(svc services.InvitationService) *previewInvitationController {
	return &previewInvitationController{svc}
}

func (h *previewInvitationController) Handle(c *gin.Context) {
	var req tokenReq
	if !bindJSON(c, &req) {
		return
	}
	inv, err := h.svc.Preview(c.Request.Context(), req.Token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}
