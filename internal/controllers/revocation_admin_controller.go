package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/osvaldoandrade/budgetauth/internal/services"
)

type revocationStatsController struct{ svc services.RevocationService }

func NewRevocationStatsController(svc services.RevocationService) *revocationStatsController {
	return &revocationStatsController{svc}
}

func (h *revocationStatsController) Handle(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Stats(c.Request.Context()))
}

type revocationInfoController struct{ svc services.RevocationService }

func NewRevocationInfoController(svc services.RevocationService) *revocationInfoController {
	return &revocationInfoController{svc}
}

func (h *revocationInfoController) Handle(c *gin.Context) {
	var req tokenReq
	if !bindJSON(c, &req) {
		return
	}
	entry, err := h.svc.Info(c.Request.Context(), req.Token)
	if err != nil {
		writeError(c, err)
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "token is not revoked"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reason":        entry.Reason,
		"blacklistedAt": entry.BlacklistedAt,
		"ttlSeconds":    int64(entry.TTL.Seconds()),
	})
}

type revocationCleanupController struct{ svc services.RevocationService }

func NewRevocationCleanupController(svc services.RevocationService) *revocationCleanupController {
	return &revocationCleanupController{svc}
}

func (h *revocationCleanupController) Handle(c *gin.Context) {
	deleted, err := h.svc.CleanupExpired(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

type revokeTokenController struct{ svc services.RevocationService }

func NewRevokeTokenController(svc services.RevocationService) *revokeTokenController {
	return &revokeTokenController{svc}
}

type revokeReq struct {
	Token  string `json:"token"`
	Reason string `json:"reason,omitempty"`
}

func (r revokeReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required),
		validation.Field(&r.Reason, validation.Length(0, 64)),
	)
}

func (h *revokeTokenController) Handle(c *gin.Context) {
	var req revokeReq
	if !bindJSON(c, &req) {
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = services.ReasonAdmin
	}
	ok, err := h.svc.Revoke(c.Request.Context(), req.Token, reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": ok, "reason": reason})
}
