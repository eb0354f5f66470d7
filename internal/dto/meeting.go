package dto

import (
	"time"

	"thesis-defense/backend/internal/workflow"
)

// ── 答辩会议 DTO ──

// TimeSlotRequest 单个时间段（日期 + 固定时段）
type TimeSlotRequest struct {
	Date       string `json:"date"        binding:"required,iso_date"`
	TimePeriod string `json:"time_period" binding:"required,time_period"`
}

// ToTimeSlot 转换为流程核心的时间段
func (r TimeSlotRequest) ToTimeSlot() workflow.TimeSlot {
	return workflow.TimeSlot{Date: r.Date, TimePeriod: workflow.TimePeriod(r.TimePeriod)}
}

// SubmitAvailabilityRequest 评委提交可用时间段（整体覆盖）
type SubmitAvailabilityRequest struct {
	Slots []TimeSlotRequest `json:"slots" binding:"required,min=1,max=200,dive"`
}

// TimeSlots 转换为流程核心的时间段列表
func (r *SubmitAvailabilityRequest) TimeSlots() []workflow.TimeSlot {
	slots := make([]workflow.TimeSlot, 0, len(r.Slots))
	for _, s := range r.Slots {
		slots = append(slots, s.ToTimeSlot())
	}
	return slots
}

// ImportAvailabilityRequest 以请求体中的忙碌日历 (text/calendar) 生成可用时间段的日期范围
type ImportAvailabilityRequest struct {
	From            string `form:"from"             binding:"required,iso_date"`
	To              string `form:"to"               binding:"required,iso_date"`
	IncludeWeekends bool   `form:"include_weekends"`
}

// SelectTimeSlotRequest 学生从交集中选定时间段
type SelectTimeSlotRequest struct {
	TimeSlotRequest
}

// ScheduleMeetingRequest 确定答辩地点
type ScheduleMeetingRequest struct {
	Location string `json:"location" binding:"required,max=200"`
}

// SubmitScoreRequest 评委打分（0 分合法，故使用指针区分缺省）
type SubmitScoreRequest struct {
	Score *float64 `json:"score" binding:"required,score_step"`
}

// CancelMeetingRequest 取消会议
type CancelMeetingRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=500"`
}

// UpdateJuryRequest 调整评委名单
type UpdateJuryRequest struct {
	JuryIDs []string `json:"jury_ids" binding:"required,min=1,unique,dive,uuid"`
}

// MeetingListRequest 会议列表查询参数
type MeetingListRequest struct {
	PaginationRequest
	State string `form:"state" binding:"omitempty,meeting_state"`
}

// JuryMemberResponse 评委及其进度
type JuryMemberResponse struct {
	workflow.SimpleUser
	IsInstructor          bool     `json:"is_instructor"`
	AvailabilitySubmitted bool     `json:"availability_submitted"`
	Scored                bool     `json:"scored"`
	Score                 *float64 `json:"score,omitempty"` // 仅管理员、答辩负责人与本人可见
}

// MeetingResponse 会议详情
type MeetingResponse struct {
	ID               string                `json:"id"`
	FormID           string                `json:"form_id"`
	Title            string                `json:"title"`
	State            workflow.MeetingState `json:"state"`
	Student          *workflow.SimpleUser  `json:"student,omitempty"`
	Juries           []JuryMemberResponse  `json:"juries"`
	Location         string                `json:"location,omitempty"`
	SelectedTimeSlot *workflow.TimeSlot    `json:"selected_time_slot,omitempty"`
	Score            *float64              `json:"score,omitempty"`
	CancelReason     string                `json:"cancel_reason,omitempty"`
	AllowedActions   []workflow.ActionKind `json:"allowed_actions"`
	CreatedAt        time.Time             `json:"created_at"`
	ScheduledAt      *time.Time            `json:"scheduled_at,omitempty"`
	CompletedAt      *time.Time            `json:"completed_at,omitempty"`
	CanceledAt       *time.Time            `json:"canceled_at,omitempty"`
	UpdatedAt        time.Time             `json:"updated_at"`
	Version          int                   `json:"version"`
}

// AvailabilityResponse 评委可用时间段汇总
type AvailabilityResponse struct {
	MeetingID string                `json:"meeting_id"`
	State     workflow.MeetingState `json:"state"`
	workflow.AvailabilityReport
}

// ExportMeetingsRequest 导出查询参数
type ExportMeetingsRequest struct {
	State string `form:"state" binding:"omitempty,meeting_state"`
}
