package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/osvaldoandrade/budgetauth/internal/services"
)

type verifyPasswordResetController struct{ svc services.VerificationService }

func NewVerifyPasswordResetController(svc services.VerificationService) *verifyPasswordResetController {
	return &verifyPasswordResetController{svc}
}

func (h *verifyPasswordResetController) Handle(c *gin.Context) {
	var req tokenReq
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.svc.VerifyPasswordReset(c.Request.Context(), req.Token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type emailReq struct {
	Email string `json:"email"`
}

func (r emailReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// issuePasswordResetController is operator-only; the token is handed to
// support staff for out-of-band delivery.
type issuePasswordResetController struct{ svc services.VerificationService }

func NewIssuePasswordResetController(svc services.VerificationService) *issuePasswordResetController {
	return &issuePasswordResetController{svc}
}

func (h *issuePasswordResetController) Handle(c *gin.Context) {
	var req emailReq
	if !bindJSON(c, &req) {
		return
	}
	raw, exp, err := h.svc.IssuePasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": raw, "expiresAt": exp})
}
