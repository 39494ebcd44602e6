package handlers

import (
	"localeloop/internal/middleware"
	"localeloop/internal/services"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	loops *services.LoopService
}

func NewAdminHandler(loops *services.LoopService) *AdminHandler {
	return &AdminHandler{loops: loops}
}

type featuredRequest struct {
	Featured bool `json:"featured"`
}

// SetFeatured 精选/取消精选 POST /api/admin/loops/:id/featured
func (h *AdminHandler) SetFeatured(c *gin.Context) {
	var req featuredRequest
	if !bindJSON(c, &req) {
		return
	}
	err := h.loops.SetFeatured(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id"), req.Featured)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"featured": req.Featured})
}
