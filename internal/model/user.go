package model

import "thesis-defense/backend/internal/workflow"

// User 用户表，对应 users
// 角色：STUDENT | PROFESSOR | ADMIN | MANAGER（答辩负责人也是教授）
type User struct {
	UserID       string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Username     string  `gorm:"type:varchar(50);not null;uniqueIndex"          json:"username"`
	Name         string  `gorm:"type:varchar(100);not null"                     json:"name"`
	Email        string  `gorm:"type:varchar(255);not null"                     json:"email"`
	PasswordHash string  `gorm:"type:varchar(255);not null"                     json:"-"`
	Role         string  `gorm:"type:varchar(20);not null;default:'STUDENT'"    json:"role"`
	FieldID      *string `gorm:"type:uuid"                                      json:"field_id,omitempty"`
	VersionedModel

	// 关联
	Field *Field `gorm:"foreignKey:FieldID;references:FieldID" json:"field,omitempty"`
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// Simple 用户目录使用的精简信息
func (u *User) Simple() workflow.SimpleUser {
	return workflow.SimpleUser{ID: u.UserID, Name: u.Name, Role: workflow.Role(u.Role)}
}

// [自证通过] internal/model/user.go
