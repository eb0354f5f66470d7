package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"thesis-defense/backend/internal/dto"
	"thesis-defense/backend/internal/service"
	"thesis-defense/backend/internal/workflow"
	"thesis-defense/backend/pkg/response"
)

const calendarContentType = "text/calendar; charset=utf-8"

// MeetingHandler 答辩会议 HTTP 处理器
type MeetingHandler struct {
	meetingSvc service.MeetingService
}

// NewMeetingHandler 创建 MeetingHandler
func NewMeetingHandler(meetingSvc service.MeetingService) *MeetingHandler {
	return &MeetingHandler{meetingSvc: meetingSvc}
}

// ── 查询 ──

// List 会议列表（学生看本人，教授看担任评委的会议）
// GET /api/v1/meetings
func (h *MeetingHandler) List(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	var req dto.MeetingListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, 15001, err)
		return
	}

	meetings, total, err := h.meetingSvc.List(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleMeetingError(c, err)
		return
	}

	response.OKPage(c, meetings, total, req.GetPage(), req.GetPageSize())
}

// Get 会议详情
// GET /api/v1/meetings/:id
func (h *MeetingHandler) Get(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	meeting, err := h.meetingSvc.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleMeetingError(c, err)
		return
	}

	response.OK(c, meeting)
}

// Availability 评委时间段交集与提交进度
// GET /api/v1/meetings/:id/availability
func (h *MeetingHandler) Availability(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	report, err := h.meetingSvc.Availability(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleMeetingError(c, err)
		return
	}

	response.OK(c, report)
}

// Calendar 下载答辩日历邀请
// GET /api/v1/meetings/:id/calendar.ics
func (h *MeetingHandler) Calendar(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	content, filename, err := h.meetingSvc.Calendar(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		h.handleMeetingError(c, err)
		return
	}

	response.Attachment(c, filename, calendarContentType, content)
}

// ── 状态迁移 ──

// SubmitAvailability 评委提交可用时间段（整体覆盖）
// PUT /api/v1/meetings/:id/time-slots
func (h *MeetingHandler) SubmitAvailability(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	var req dto.SubmitAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, 15001, err)
		return
	}

	report, err := h.meetingSvc.SubmitAvailability(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		h.handleMeetingError(c, err)
		return
	}

	response.OK(c, report)
}

// ImportAvailability 以请求体中的 iCalendar 忙碌日程生成可用时间段
// PUT /api/v1/meetings/:id/time-slots/ics?from=2026-06-01&to=2026-06-14
func (h *MeetingHandler) ImportAvailability(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	var req dto.ImportAvailabilityRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, 15001, err)
		return
	}
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		response.BadRequest(c, 15001, "请求体应为 iCalendar 内容")
		return
	}

	report, err := h.meetingSvc.ImportAvailability(c.Request.Context(), actor, c.Param("id"), &req, c.Request.Body)
	if err != nil {
		h.handleMeetingError(c, err)
		return
	}

	response.OK(c, report)
}

// SelectTimeSlot 学生从交集中选定时间段
// POST /api/v1/meetings/:id/select-time-slot
func (h *MeetingHandler) SelectTimeSlot(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	var req dto.SelectTimeSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, 15001, err)
		return
	}

	meeting, err := h.meetingSvc.SelectTimeSlot(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		h.handleMeetingError(c, err)
		return
	}

	response.OK(c, meeting)
}

// Schedule 答辩负责人确定地点并定档
// POST /api/v1/meetings/:id/schedule
func (h *MeetingHandler) Schedule(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	var req dto.ScheduleMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, 15001, err)
		return
	}

	meeting, err := h.meetingSvc.Schedule(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		h.handleMeetingError(c, err)
		return
	}

	response.OK(c, meeting)
}

// SubmitScore 评委打分
// POST /api/v1/meetings/:id/scores
func (h *MeetingHandler) SubmitScore(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	var req dto.SubmitScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, 15001, err)
		return
	}

	meeting, err := h.meetingSvc.SubmitScore(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		h.handleMeetingError(c, err)
		return
	}

	response.OK(c, meeting)
}

// Cancel 取消会议
// POST /api/v1/meetings/:id/cancel
func (h *MeetingHandler) Cancel(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	var req dto.CancelMeetingRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, 15001, err)
			return
		}
	}

	meeting, err := h.meetingSvc.Cancel(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		h.handleMeetingError(c, err)
		return
	}

	response.OK(c, meeting)
}

// UpdateJury 调整评委名单
// PUT /api/v1/meetings/:id/juries
func (h *MeetingHandler) UpdateJury(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}
	var req dto.UpdateJuryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, 15001, err)
		return
	}

	meeting, err := h.meetingSvc.UpdateJury(c.Request.Context(), actor, c.Param("id"), &req)
	if err != nil {
		h.handleMeetingError(c, err)
		return
	}

	response.OK(c, meeting)
}

// handleMeetingError 统一处理会议模块业务错误
func (h *MeetingHandler) handleMeetingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMeetingNotFound):
		response.NotFound(c, 15101, "答辩会议不存在")
	case errors.Is(err, service.ErrNoPermission):
		response.Forbidden(c, 15102, "无权查看该会议")
	case errors.Is(err, workflow.ErrNotAuthorized):
		response.Forbidden(c, 15103, "无权执行该操作")
	case errors.Is(err, workflow.ErrValidation):
		response.ValidationFailed(c, 15104, validationDetails(err))
	case errors.Is(err, workflow.ErrInvalidTimeSlot):
		response.BadRequest(c, 15105, "所选时间段不在评委可用交集中")
	case errors.Is(err, workflow.ErrAlreadyScored):
		response.Conflict(c, 15106, "您已提交评分")
	case errors.Is(err, workflow.ErrAlreadyTerminal):
		response.Conflict(c, 15107, "会议已结束或已取消")
	case errors.Is(err, workflow.ErrInvalidTransition):
		response.Conflict(c, 15108, "当前状态不允许该操作")
	case errors.Is(err, workflow.ErrConcurrentModification):
		response.Conflict(c, 15109, "会议已被其他操作修改，请刷新后重试")
	case errors.Is(err, service.ErrCalendarUnavailable):
		response.Conflict(c, 15110, "会议尚未定档，无法生成日历")
	case errors.Is(err, service.ErrJuryNotProfessor):
		response.BadRequest(c, 15111, "评委必须是教授")
	case errors.Is(err, service.ErrCalendarParse):
		response.BadRequest(c, 15112, "日历内容无法解析")
	case errors.Is(err, service.ErrImportRangeInvalid):
		response.BadRequest(c, 15113, "导入日期范围无效（最长 62 天）")
	case errors.Is(err, service.ErrImportNoFreeSlots):
		response.BadRequest(c, 15114, "所选日期范围内没有空闲时段")
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/meeting_handler.go
