package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"

	"localeloop/internal/apperr"
	"localeloop/internal/config"
	"localeloop/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	oauthStateKey   = "oauth_state"
	googleUserInfo  = "https://www.googleapis.com/oauth2/v2/userinfo"
	afterLoginPath  = "/dashboard"
	loginFailedPath = "/login?error="
)

// newGoogleOAuthConfig 未配置 client id 时返回 nil
func newGoogleOAuthConfig(cfg config.GoogleConfig, siteURL string) *oauth2.Config {
	if cfg.ClientID == "" {
		return nil
	}
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  siteURL + "/auth/google/callback",
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// generateStateToken 生成随机 state token
func generateStateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// GoogleLogin 发起 Google OAuth 登录
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	if h.oauthConfig == nil {
		respondError(c, apperr.New(apperr.StoreUnavailable, "Google login is not configured"))
		return
	}
	state, err := generateStateToken()
	if err != nil {
		respondError(c, apperr.Wrap(apperr.Internal, "Failed to start Google login", err))
		return
	}

	// state 存到 session，回调时校验
	session := sessions.Default(c)
	session.Set(oauthStateKey, state)
	_ = session.Save()

	c.Redirect(http.StatusTemporaryRedirect, h.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline))
}

// GoogleCallback 处理 Google OAuth 回调，成功后跳转到 dashboard
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if h.oauthConfig == nil {
		respondError(c, apperr.New(apperr.StoreUnavailable, "Google login is not configured"))
		return
	}

	session := sessions.Default(c)
	savedState, _ := session.Get(oauthStateKey).(string)
	session.Delete(oauthStateKey)
	_ = session.Save()

	if savedState == "" || c.Query("state") != savedState {
		c.Redirect(http.StatusFound, loginFailedPath+"invalid_state")
		return
	}
	code := c.Query("code")
	if code == "" {
		c.Redirect(http.StatusFound, loginFailedPath+"no_code")
		return
	}

	ctx := c.Request.Context()
	token, err := h.oauthConfig.Exchange(ctx, code)
	if err != nil {
		_ = c.Error(err)
		c.Redirect(http.StatusFound, loginFailedPath+"token_exchange_failed")
		return
	}

	profile, err := h.fetchGoogleProfile(ctx, token)
	if err != nil {
		_ = c.Error(err)
		c.Redirect(http.StatusFound, loginFailedPath+"userinfo_failed")
		return
	}

	user, err := h.users.UpsertOAuthUser(ctx, *profile)
	if err != nil {
		_ = c.Error(err)
		c.Redirect(http.StatusFound, loginFailedPath+"account_failed")
		return
	}
	if err := login(c, user); err != nil {
		_ = c.Error(err)
		c.Redirect(http.StatusFound, loginFailedPath+"session_failed")
		return
	}
	c.Redirect(http.StatusFound, afterLoginPath)
}

// fetchGoogleProfile 获取 Google 用户信息
func (h *AuthHandler) fetchGoogleProfile(ctx context.Context, token *oauth2.Token) (*services.GoogleProfile, error) {
	resp, err := h.oauthConfig.Client(ctx, token).Get(googleUserInfo)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google userinfo: status %d", resp.StatusCode)
	}

	var profile services.GoogleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("google userinfo: %w", err)
	}
	return &profile, nil
}
