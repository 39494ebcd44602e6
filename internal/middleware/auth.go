package middleware

import (
	"context"
	"net/http"

	"localeloop/internal/apperr"
	"localeloop/internal/auth"
	"localeloop/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	CheckUserKey   = "user"
	IdentityKey    = "identity"
	SessionUserKey = "user_id"
)

// UserLoader 根据 session 中的 user_id 加载用户
type UserLoader interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

// AuthRequired ensures a user is logged in
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentIdentity(c).Authenticated() {
			err := apperr.AuthRequired()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": err.Message,
			})
			return
		}
		c.Next()
	}
}

// LoadUser retrieves user from session and sets it plus the caller
// identity on the context. A session pointing at a deleted user is cleared.
func LoadUser(users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, _ := session.Get(SessionUserKey).(string)

		identity := auth.Anonymous()
		if userID != "" {
			user, err := users.Get(c.Request.Context(), userID)
			switch {
			case err == nil:
				c.Set(CheckUserKey, user)
				identity = auth.FromUser(user)
			case apperr.KindOf(err) == apperr.NotFound:
				session.Delete(SessionUserKey)
				_ = session.Save()
			default:
				// 数据库暂时不可用时按匿名处理，写操作会被 AuthRequired 拦下
				_ = c.Error(err)
			}
		}
		c.Set(IdentityKey, identity)
		c.Next()
	}
}

// CurrentIdentity returns the caller identity, anonymous when LoadUser did
// not run or found nobody.
func CurrentIdentity(c *gin.Context) auth.Identity {
	if v, ok := c.Get(IdentityKey); ok {
		if id, ok := v.(auth.Identity); ok {
			return id
		}
	}
	return auth.Anonymous()
}

func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(CheckUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}
