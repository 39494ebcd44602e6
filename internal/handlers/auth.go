package handlers

import (
	"localeloop/internal/apperr"
	"localeloop/internal/config"
	"localeloop/internal/middleware"
	"localeloop/internal/models"
	"localeloop/internal/services"
	"localeloop/internal/validation"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
)

type AuthHandler struct {
	users       *services.UserService
	oauthConfig *oauth2.Config
}

func NewAuthHandler(users *services.UserService, google config.GoogleConfig, siteURL string) *AuthHandler {
	return &AuthHandler{
		users:       users,
		oauthConfig: newGoogleOAuthConfig(google, siteURL),
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// login 写入 session
func login(c *gin.Context, user *models.User) error {
	session := sessions.Default(c)
	session.Set(middleware.SessionUserKey, user.ID)
	return session.Save()
}

func (h *AuthHandler) Register(c *gin.Context) {
	var in validation.RegisterInput
	if !bindJSON(c, &in) {
		return
	}

	user, err := h.users.Register(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := login(c, user); err != nil {
		respondError(c, apperr.Wrap(apperr.Internal, "Failed to start session", err))
		return
	}
	respondCreated(c, gin.H{"user": user})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := login(c, user); err != nil {
		respondError(c, apperr.Wrap(apperr.Internal, "Failed to start session", err))
		return
	}
	respondOK(c, gin.H{"user": user})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	_ = session.Save()
	respondOK(c, nil)
}

// Me 当前登录用户，未登录时 user 为 null
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		respondOK(c, gin.H{"user": nil})
		return
	}
	respondOK(c, gin.H{"user": user})
}
