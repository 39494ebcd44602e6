package handlers

import (
	"errors"
	"net/http"

	"localeloop/internal/apperr"
	"localeloop/internal/services"

	"github.com/gin-gonic/gin"
)

const maxUploadBody = services.MaxImageSize + 1<<20

// ImageHandler 图片处理 Handler
type ImageHandler struct {
	uploader services.Uploader
}

// NewImageHandler uploader 为 nil 时上传接口返回 503
func NewImageHandler(uploader services.Uploader) *ImageHandler {
	return &ImageHandler{uploader: uploader}
}

// Upload 处理图片上传请求 (POST /api/uploads)
// 需要用户已登录
func (h *ImageHandler) Upload(c *gin.Context) {
	if h.uploader == nil {
		respondError(c, apperr.New(apperr.StoreUnavailable, "Image uploads are not configured"))
		return
	}

	// 解析表单前限制请求体大小，留出 multipart 头部的余量
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBody)
	file, header, err := c.Request.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, apperr.Wrap(apperr.ValidationFailed, "File must be smaller than 10MB", err))
			return
		}
		respondError(c, apperr.Wrap(apperr.ValidationFailed, "Please choose an image to upload", err))
		return
	}
	defer file.Close()

	if err := services.CheckImage(header.Header.Get("Content-Type"), header.Size); err != nil {
		respondError(c, err)
		return
	}

	result, err := h.uploader.Upload(c.Request.Context(), file, header.Filename)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"url": result.URL, "publicId": result.PublicID})
}
