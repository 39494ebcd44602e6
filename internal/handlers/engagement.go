package handlers

import (
	"localeloop/internal/apperr"
	"localeloop/internal/middleware"
	"localeloop/internal/services"
	"localeloop/internal/validation"

	"github.com/gin-gonic/gin"
)

// EngagementHandler 点赞与评论
type EngagementHandler struct {
	engagement *services.EngagementService
}

func NewEngagementHandler(engagement *services.EngagementService) *EngagementHandler {
	return &EngagementHandler{engagement: engagement}
}

// ToggleLike POST /api/likes/:loopId
func (h *EngagementHandler) ToggleLike(c *gin.Context) {
	res, err := h.engagement.ToggleLike(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("loopId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"liked": res.Liked, "count": res.Count, "message": res.Message})
}

// CreateComment POST /api/comments，userId 省略时取当前用户
func (h *EngagementHandler) CreateComment(c *gin.Context) {
	var in validation.CommentInput
	if !bindJSON(c, &in) {
		return
	}
	caller := middleware.CurrentIdentity(c)
	if in.UserID == "" {
		in.UserID = caller.UserID
	}

	comment, err := h.engagement.CreateComment(c.Request.Context(), caller, in)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, gin.H{"comment": comment})
}

func (h *EngagementHandler) DeleteComment(c *gin.Context) {
	if err := h.engagement.DeleteComment(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

// ToggleCommentLike POST /api/comments/:id/like
func (h *EngagementHandler) ToggleCommentLike(c *gin.Context) {
	res, err := h.engagement.ToggleCommentLike(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"liked": res.Liked, "count": res.Count, "message": res.Message})
}

// ListComments GET /api/comments?loop_id=
func (h *EngagementHandler) ListComments(c *gin.Context) {
	loopID := c.Query("loop_id")
	if loopID == "" {
		respondError(c, apperr.Validation("Loop ID is required"))
		return
	}
	page, limit := pageParams(c)
	res, err := h.engagement.ListComments(c.Request.Context(), middleware.CurrentIdentity(c), loopID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"comments": res.Comments, "pagination": res.Pagination})
}
