package handlers

import (
	"net/http"

	"localeloop/internal/apperr"
	"localeloop/internal/utils"

	"github.com/gin-gonic/gin"
)

// respondError 把错误转成统一的 {success:false, message} 响应
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(apperr.HTTPStatus(apperr.KindOf(err)), gin.H{
		"success": false,
		"message": apperr.Message(err),
	})
}

// respondOK 在 obj 上补上 success:true
func respondOK(c *gin.Context, obj gin.H) {
	if obj == nil {
		obj = gin.H{}
	}
	obj["success"] = true
	c.JSON(http.StatusOK, obj)
}

func respondCreated(c *gin.Context, obj gin.H) {
	obj["success"] = true
	c.JSON(http.StatusCreated, obj)
}

// bindJSON 解码请求体，失败时按校验错误返回
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, apperr.Wrap(apperr.ValidationFailed, "Invalid request body", err))
		return false
	}
	return true
}

// pageParams 读取 page / limit 查询参数，非法值交给 service 处理
func pageParams(c *gin.Context) (int, int) {
	return utils.StringToInt(c.Query("page"), 1), utils.StringToInt(c.Query("limit"), 0)
}
