package handlers

import (
	"strings"

	"localeloop/internal/apperr"
	"localeloop/internal/middleware"
	"localeloop/internal/services"
	"localeloop/internal/utils"
	"localeloop/internal/validation"

	"github.com/gin-gonic/gin"
)

type LoopHandler struct {
	loops  *services.LoopService
	search *services.SearchService
}

func NewLoopHandler(loops *services.LoopService, search *services.SearchService) *LoopHandler {
	return &LoopHandler{loops: loops, search: search}
}

const maxFormMemory = 1 << 20

type reorderRequest struct {
	PlaceIDs []string `json:"placeIds"`
}

// readLoopInput 支持 JSON 和表单两种提交方式
func readLoopInput(c *gin.Context) (validation.LoopInput, bool) {
	var in validation.LoopInput
	ct := c.ContentType()
	if ct != "application/x-www-form-urlencoded" && ct != "multipart/form-data" {
		return in, bindJSON(c, &in)
	}

	var err error
	if ct == "multipart/form-data" {
		err = c.Request.ParseMultipartForm(maxFormMemory)
	} else {
		err = c.Request.ParseForm()
	}
	if err != nil {
		respondError(c, apperr.Wrap(apperr.ValidationFailed, "Invalid form submission", err))
		return in, false
	}

	in, err = validation.LoopFromForm(c.Request.PostForm)
	if err != nil {
		respondError(c, err)
		return in, false
	}
	return in, true
}

// Search GET /api/loops
func (h *LoopHandler) Search(c *gin.Context) {
	page, limit := pageParams(c)
	result, err := h.search.Search(c.Request.Context(), services.SearchParams{
		Query: strings.TrimSpace(c.Query("q")),
		City:  strings.TrimSpace(c.Query("city")),
		Tags:  utils.SplitList(c.QueryArray("tags")...),
		Sort:  c.Query("sort"),
		Page:  page,
		Limit: limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"loops": result.Loops, "pagination": result.Pagination})
}

func (h *LoopHandler) Filters(c *gin.Context) {
	opts, err := h.search.FilterOptions(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"cities": opts.Cities, "tags": opts.Tags})
}

func (h *LoopHandler) Stats(c *gin.Context) {
	stats, err := h.search.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"stats": stats})
}

func (h *LoopHandler) Featured(c *gin.Context) {
	loops, err := h.search.Featured(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"loops": loops})
}

func (h *LoopHandler) Popular(c *gin.Context) {
	loops, err := h.search.Popular(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"loops": loops})
}

// Detail GET /api/loops/:slug，草稿只有作者能看到
func (h *LoopHandler) Detail(c *gin.Context) {
	detail, err := h.loops.Get(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"loop": detail})
}

func (h *LoopHandler) Create(c *gin.Context) {
	in, ok := readLoopInput(c)
	if !ok {
		return
	}
	ref, err := h.loops.Create(c.Request.Context(), middleware.CurrentIdentity(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	respondCreated(c, gin.H{"loopId": ref.ID, "slug": ref.Slug})
}

// Edit GET /api/dashboard/loops/:id
func (h *LoopHandler) Edit(c *gin.Context) {
	loop, err := h.loops.GetForEdit(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"loop": loop})
}

func (h *LoopHandler) Update(c *gin.Context) {
	in, ok := readLoopInput(c)
	if !ok {
		return
	}
	ref, err := h.loops.Update(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id"), in)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"slug": ref.Slug})
}

func (h *LoopHandler) Delete(c *gin.Context) {
	if err := h.loops.Delete(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

// Reorder PUT /api/dashboard/loops/:id/order
func (h *LoopHandler) Reorder(c *gin.Context) {
	var req reorderRequest
	if !bindJSON(c, &req) {
		return
	}
	err := h.loops.ReorderPlaces(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id"), req.PlaceIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}
