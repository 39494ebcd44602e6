package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"localeloop/internal/apperr"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
)

const (
	// MaxImageSize 上传图片大小上限
	MaxImageSize = 10 << 20

	coverFolder         = "locale-loop/covers"
	coverTransformation = "c_fill,w_1200,h_800,q_auto"
)

// ImageUploadResult 上传结果，URL 原样存入 Loop/Place 的图片字段
type ImageUploadResult struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

// Uploader 图片托管服务
type Uploader interface {
	Upload(ctx context.Context, file io.Reader, filename string) (*ImageUploadResult, error)
}

// CheckImage 校验上传文件的类型和大小
func CheckImage(contentType string, size int64) error {
	if !strings.HasPrefix(contentType, "image/") {
		return apperr.Validation("File must be an image")
	}
	if size > MaxImageSize {
		return apperr.Validation("File must be smaller than 10MB")
	}
	return nil
}

type CloudinaryUploader struct {
	cld *cloudinary.Cloudinary
}

// NewCloudinaryUploader 使用 CLOUDINARY_URL 初始化
func NewCloudinaryUploader(cloudinaryURL string) (*CloudinaryUploader, error) {
	if cloudinaryURL == "" {
		return nil, errors.New("CLOUDINARY_URL 未配置")
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("cloudinary init: %w", err)
	}
	return &CloudinaryUploader{cld: cld}, nil
}

func (u *CloudinaryUploader) Upload(ctx context.Context, file io.Reader, filename string) (*ImageUploadResult, error) {
	resp, err := u.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:         coverFolder,
		PublicID:       uuid.NewString(),
		Overwrite:      api.Bool(false),
		Transformation: coverTransformation,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreUnavailable, "Failed to upload image", fmt.Errorf("cloudinary upload %s: %w", filename, err))
	}
	if resp.Error.Message != "" {
		return nil, apperr.Wrap(apperr.StoreUnavailable, "Failed to upload image", fmt.Errorf("cloudinary upload %s: %s", filename, resp.Error.Message))
	}
	return &ImageUploadResult{URL: resp.SecureURL, PublicID: resp.PublicID}, nil
}
