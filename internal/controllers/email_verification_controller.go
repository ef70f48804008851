package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/osvaldoandrade/budgetauth/internal/services"
)

type issueEmailVerificationController struct{ svc services.VerificationService }

func NewIssueEmailVerificationController(svc services.VerificationService) *issueEmailVerificationController {
	return &issueEmailVerificationController{svc}
}

func (h *issueEmailVerificationController) Handle(c *gin.Context) {
	v, ok := verifiedOrAbort(c)
	if !ok {
		return
	}
	raw, exp, err := h.svc.IssueEmailVerification(c.Request.Context(), v.User)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": raw, "expiresAt": exp})
}

type tokenReq struct {
	Token string `json:"token"`
}

func (r tokenReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
	)
}

type confirmEmailVerificationController struct{ svc services.VerificationService }

func NewConfirmEmailVerificationController(svc services.VerificationService) *confirmEmailVerificationController {
	return &confirmEmailVerificationController{svc}
}

func (h *confirmEmailVerificationController) Handle(c *gin.Context) {
	var req tokenReq
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.svc.ConfirmEmailVerification(c.Request.Context(), req.Token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
