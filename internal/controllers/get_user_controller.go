package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/osvaldoandrade/budgetauth/pkg/auth"
	"github.com/osvaldoandrade/budgetauth/pkg/persistence"
)

type getUserController struct{ directory persistence.Directory }

func NewGetUserController(directory persistence.Directory) *getUserController {
	return &getUserController{directory}
}

// Handle runs behind RequireSelfOrAdmin. Managers only see members of their
// own family.
func (h *getUserController) Handle(c *gin.Context) {
	v, ok := verifiedOrAbort(c)
	if !ok {
		return
	}
	userID := c.Param("userId")
	u, err := h.directory.FindUserByID(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !auth.SameID(v.User.ID, u.ID) {
		if v.Family == nil || !auth.SameID(v.Family.ID, u.FamilyID) {
			writeError(c, auth.ErrCrossTenantAccess)
			return
		}
	}
	c.JSON(http.StatusOK, u)
}
