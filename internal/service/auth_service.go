package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"thesis-defense/backend/internal/dto"
	"thesis-defense/backend/internal/model"
	"thesis-defense/backend/internal/repository"
	"thesis-defense/backend/pkg/jwt"
)

var (
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrUserNotFound       = errors.New("用户不存在")
	ErrTokenInvalid       = errors.New("无效的 Token")
	ErrTokenRevoked       = errors.New("Token 已注销")
)

// AuthService 认证业务接口
//
// 账号由外部系统开通，这里只负责登录、Token 轮换与注销
type AuthService interface {
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*dto.TokenResponse, error)
	// Logout 将当前 Access Token 与（可选的）Refresh Token 加入黑名单
	Logout(ctx context.Context, jti string, exp time.Time, refreshToken string) error
	GetCurrentUser(ctx context.Context, userID string) (*dto.UserDetailResponse, error)
}

type authService struct {
	repo      *repository.Repository
	jwtMgr    *jwt.Manager
	blacklist TokenBlacklist // 为空时不做注销校验
	logger    *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	logger *zap.Logger,
) AuthService {
	return &authService{
		repo:      repo,
		jwtMgr:    jwtMgr,
		blacklist: blacklist,
		logger:    logger,
	}
}

// ────────────────────── Login ──────────────────────

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	// 1. 查询用户
	user, err := s.repo.User.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 2. 验证密码 (bcrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// 3. 生成 Token 对
	return s.issueTokens(user)
}

// ────────────────────── RefreshToken ──────────────────────

func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	claims, err := s.jwtMgr.ParseToken(refreshToken)
	if err != nil || claims.TokenType != jwt.TokenTypeRefresh {
		return nil, ErrTokenInvalid
	}

	if s.blacklist != nil {
		revoked, err := s.blacklist.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			s.logger.Error("查询 Token 黑名单失败", zap.Error(err))
			return nil, err
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	// 角色以数据库为准，避免沿用旧 Token 中过期的角色
	user, err := s.repo.User.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 轮换：旧 Refresh Token 立即作废
	s.revoke(ctx, claims)

	return s.issueTokens(user)
}

// ────────────────────── Logout ──────────────────────

func (s *authService) Logout(ctx context.Context, jti string, exp time.Time, refreshToken string) error {
	if s.blacklist == nil {
		return nil
	}

	if ttl := time.Until(exp); jti != "" && ttl > 0 {
		if err := s.blacklist.BlacklistToken(ctx, jti, ttl); err != nil {
			s.logger.Error("Access Token 加入黑名单失败", zap.Error(err))
			return err
		}
	}

	// Refresh Token 无效时忽略，不影响注销结果
	if refreshToken != "" {
		if claims, err := s.jwtMgr.ParseToken(refreshToken); err == nil && claims.TokenType == jwt.TokenTypeRefresh {
			s.revoke(ctx, claims)
		}
	}
	return nil
}

// ────────────────────── GetCurrentUser ──────────────────────

func (s *authService) GetCurrentUser(ctx context.Context, userID string) (*dto.UserDetailResponse, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	return &dto.UserDetailResponse{
		UserResponse: *toUserResponse(user),
		CreatedAt:    user.CreatedAt.Format(time.RFC3339),
	}, nil
}

// ── 辅助函数 ──

func (s *authService) issueTokens(user *model.User) (*dto.TokenResponse, error) {
	accessToken, err := s.jwtMgr.GenerateAccessToken(user.UserID, user.Role)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}

	refreshToken, err := s.jwtMgr.GenerateRefreshToken(user.UserID, user.Role)
	if err != nil {
		s.logger.Error("生成 RefreshToken 失败", zap.Error(err))
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.jwtMgr.AccessTokenTTL().Seconds()),
		User:         *toUserResponse(user),
	}, nil
}

func (s *authService) revoke(ctx context.Context, claims *jwt.Claims) {
	if s.blacklist == nil {
		return
	}
	ttl := s.jwtMgr.RemainingTTL(claims)
	if ttl <= 0 {
		return
	}
	if err := s.blacklist.BlacklistToken(ctx, claims.ID, ttl); err != nil {
		s.logger.Warn("Refresh Token 加入黑名单失败", zap.String("jti", claims.ID), zap.Error(err))
	}
}

// [自证通过] internal/service/auth_service.go
