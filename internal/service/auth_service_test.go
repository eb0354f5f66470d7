package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"thesis-defense/backend/config"
	"thesis-defense/backend/internal/dto"
	"thesis-defense/backend/internal/model"
	"thesis-defense/backend/internal/repository"
	"thesis-defense/backend/pkg/jwt"
)

// ── 测试辅助 ──

func setupTestAuthService() (AuthService, *mockUserRepo, *fakeBlacklist, *jwt.Manager) {
	cfg := &config.AuthConfig{
		JWTSecret:       "test-secret-key-for-unit-testing-2026",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}

	userRepo := newMockUserRepo()
	fields := newMockFieldRepo()
	_ = fields.Create(context.Background(), &model.Field{FieldID: "field-1", Name: "分布式系统", IsActive: true})
	repo := &repository.Repository{
		User:  userRepo,
		Field: fields,
	}

	jwtMgr := jwt.NewManager(cfg)
	blacklist := newFakeBlacklist()
	svc := NewAuthService(repo, jwtMgr, blacklist, zap.NewNop())
	return svc, userRepo, blacklist, jwtMgr
}

func createTestUser(userRepo *mockUserRepo, username, password string) *model.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	fieldID := "field-1"
	user := &model.User{
		UserID:       "user-" + username,
		Username:     username,
		Name:         "测试用户",
		Email:        username + "@test.edu",
		PasswordHash: string(hash),
		Role:         "PROFESSOR",
		FieldID:      &fieldID,
		Field:        &model.Field{FieldID: fieldID, Name: "分布式系统"},
	}
	userRepo.users[user.UserID] = user
	return user
}

func login(t *testing.T, svc AuthService) *dto.TokenResponse {
	t.Helper()
	result, err := svc.Login(context.Background(), &dto.LoginRequest{Username: "wang", Password: "password123"})
	if err != nil {
		t.Fatalf("Login 失败: %v", err)
	}
	return result
}

// ── 登录测试 ──

func TestLogin_Success(t *testing.T) {
	svc, userRepo, _, _ := setupTestAuthService()
	createTestUser(userRepo, "wang", "password123")

	result := login(t, svc)

	if result.AccessToken == "" {
		t.Error("AccessToken 不应为空")
	}
	if result.RefreshToken == "" {
		t.Error("RefreshToken 不应为空")
	}
	if result.User.Username != "wang" || result.User.Role != "PROFESSOR" {
		t.Errorf("用户信息不正确: %+v", result.User)
	}
	if result.ExpiresIn != 900 {
		t.Errorf("期望 ExpiresIn=900，实际=%d", result.ExpiresIn)
	}
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
	}{
		{"密码错误", "wang", "wrong_password"},
		{"用户不存在", "nobody", "password123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, userRepo, _, _ := setupTestAuthService()
			createTestUser(userRepo, "wang", "password123")

			_, err := svc.Login(context.Background(), &dto.LoginRequest{Username: tt.username, Password: tt.password})
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Errorf("期望 ErrInvalidCredentials，实际: %v", err)
			}
		})
	}
}

func TestLogin_TokenCarriesRole(t *testing.T) {
	svc, userRepo, _, jwtMgr := setupTestAuthService()
	user := createTestUser(userRepo, "wang", "password123")

	result := login(t, svc)
	claims, err := jwtMgr.ParseToken(result.AccessToken)
	if err != nil {
		t.Fatalf("解析 AccessToken 失败: %v", err)
	}
	if claims.UserID != user.UserID || claims.Role != "PROFESSOR" || claims.TokenType != jwt.TokenTypeAccess {
		t.Errorf("Claims 不正确: %+v", claims)
	}
}

// ── RefreshToken 测试 ──

func TestRefreshToken_Rotation(t *testing.T) {
	svc, userRepo, blacklist, _ := setupTestAuthService()
	createTestUser(userRepo, "wang", "password123")
	loginResult := login(t, svc)

	result, err := svc.RefreshToken(context.Background(), loginResult.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshToken 应成功: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Error("刷新后应返回新的 Token 对")
	}
	if len(blacklist.jtis) != 1 {
		t.Errorf("旧 RefreshToken 应加入黑名单，实际 %d 条", len(blacklist.jtis))
	}

	// 旧 Token 不可再次使用
	_, err = svc.RefreshToken(context.Background(), loginResult.RefreshToken)
	if !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("期望 ErrTokenRevoked，实际: %v", err)
	}
}

func TestRefreshToken_RoleFromDatabase(t *testing.T) {
	svc, userRepo, _, jwtMgr := setupTestAuthService()
	user := createTestUser(userRepo, "wang", "password123")
	loginResult := login(t, svc)

	user.Role = "MANAGER"
	result, err := svc.RefreshToken(context.Background(), loginResult.RefreshToken)
	if err != nil {
		t.Fatalf("RefreshToken 应成功: %v", err)
	}
	claims, _ := jwtMgr.ParseToken(result.AccessToken)
	if claims == nil || claims.Role != "MANAGER" {
		t.Errorf("新 Token 应使用数据库中的最新角色，实际 %+v", claims)
	}
}

func TestRefreshToken_Invalid(t *testing.T) {
	svc, userRepo, _, _ := setupTestAuthService()
	createTestUser(userRepo, "wang", "password123")
	loginResult := login(t, svc)

	tests := []struct {
		name  string
		token string
	}{
		{"格式错误", "invalid.token.string"},
		{"AccessToken 不能用于刷新", loginResult.AccessToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RefreshToken(context.Background(), tt.token)
			if !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("期望 ErrTokenInvalid，实际: %v", err)
			}
		})
	}
}

func TestRefreshToken_UserDeleted(t *testing.T) {
	svc, userRepo, _, _ := setupTestAuthService()
	user := createTestUser(userRepo, "wang", "password123")
	loginResult := login(t, svc)

	delete(userRepo.users, user.UserID)
	_, err := svc.RefreshToken(context.Background(), loginResult.RefreshToken)
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("期望 ErrUserNotFound，实际: %v", err)
	}
}

// ── Logout 测试 ──

func TestLogout(t *testing.T) {
	svc, userRepo, blacklist, jwtMgr := setupTestAuthService()
	createTestUser(userRepo, "wang", "password123")
	loginResult := login(t, svc)

	access, _ := jwtMgr.ParseToken(loginResult.AccessToken)
	refresh, _ := jwtMgr.ParseToken(loginResult.RefreshToken)

	if err := svc.Logout(context.Background(), access.ID, access.ExpiresAt.Time, loginResult.RefreshToken); err != nil {
		t.Fatalf("Logout 应成功: %v", err)
	}
	if _, ok := blacklist.jtis[access.ID]; !ok {
		t.Error("AccessToken 应加入黑名单")
	}
	if _, ok := blacklist.jtis[refresh.ID]; !ok {
		t.Error("RefreshToken 应加入黑名单")
	}

	_, err := svc.RefreshToken(context.Background(), loginResult.RefreshToken)
	if !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("注销后刷新期望 ErrTokenRevoked，实际: %v", err)
	}
}

func TestLogout_InvalidRefreshTokenIgnored(t *testing.T) {
	svc, _, blacklist, _ := setupTestAuthService()

	err := svc.Logout(context.Background(), "jti-1", time.Now().Add(time.Minute), "garbage")
	if err != nil {
		t.Fatalf("无效 RefreshToken 不应导致注销失败: %v", err)
	}
	if len(blacklist.jtis) != 1 {
		t.Errorf("期望仅 AccessToken 加入黑名单，实际 %d 条", len(blacklist.jtis))
	}
}

func TestLogout_WithoutRedis(t *testing.T) {
	repo := &repository.Repository{User: newMockUserRepo()}
	svc := NewAuthService(repo, jwt.NewManager(&config.AuthConfig{JWTSecret: "s", AccessTokenTTL: time.Minute}), nil, zap.NewNop())

	if err := svc.Logout(context.Background(), "jti-1", time.Now().Add(time.Minute), ""); err != nil {
		t.Errorf("未启用黑名单时 Logout 应直接成功: %v", err)
	}
}

// ── GetCurrentUser 测试 ──

func TestGetCurrentUser_Success(t *testing.T) {
	svc, userRepo, _, _ := setupTestAuthService()
	createTestUser(userRepo, "wang", "password123")

	result, err := svc.GetCurrentUser(context.Background(), "user-wang")
	if err != nil {
		t.Fatalf("GetCurrentUser 应成功: %v", err)
	}
	if result.Username != "wang" {
		t.Errorf("期望 Username=wang，实际=%s", result.Username)
	}
	if result.Field == nil || result.Field.Name != "分布式系统" {
		t.Error("期望包含研究领域信息")
	}
}

func TestGetCurrentUser_NotFound(t *testing.T) {
	svc, _, _, _ := setupTestAuthService()

	_, err := svc.GetCurrentUser(context.Background(), "nonexistent")
	if !errors.Is(err, ErrUserNotFound) {
		t.Errorf("期望 ErrUserNotFound，实际: %v", err)
	}
}

// [自证通过] internal/service/auth_service_test.go
