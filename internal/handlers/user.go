package handlers

import (
	"localeloop/internal/middleware"
	"localeloop/internal/services"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	users *services.UserService
	loops *services.LoopService
}

func NewUserHandler(users *services.UserService, loops *services.LoopService) *UserHandler {
	return &UserHandler{users: users, loops: loops}
}

// Dashboard 当前用户的全部 Loop（含草稿）和汇总
func (h *UserHandler) Dashboard(c *gin.Context) {
	d, err := h.loops.Dashboard(c.Request.Context(), middleware.CurrentIdentity(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"loops": d.Loops, "totals": d.Totals})
}

// Profile 用户公开主页 GET /api/users/:name
func (h *UserHandler) Profile(c *gin.Context) {
	p, err := h.users.Profile(c.Request.Context(), c.Param("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"user": p.User, "loops": p.Loops, "totals": p.Totals})
}
