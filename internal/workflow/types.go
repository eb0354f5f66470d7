// Package workflow 论文答辩流程核心：表单审批状态机、答辩会议状态机、
// 评委时间段求交与评分汇总。
//
// 本包只包含纯决策逻辑，不做 I/O、不打日志；持久化、用户目录与时钟
// 通过 ports.go 中的接口由调用方注入。
package workflow

import "time"

// Role 用户角色（持久化字符串即为契约，不可更改拼写）
type Role string

const (
	RoleStudent   Role = "STUDENT"
	RoleProfessor Role = "PROFESSOR"
	RoleAdmin     Role = "ADMIN"
	RoleManager   Role = "MANAGER"
)

// Valid 是否为已知角色
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleProfessor, RoleAdmin, RoleManager:
		return true
	}
	return false
}

// IsProfessor 教授或具有管理权限的教授
func (r Role) IsProfessor() bool {
	return r == RoleProfessor || r == RoleManager
}

// ActionKind 动作类型
type ActionKind string

const (
	ActionApprove            ActionKind = "APPROVE"
	ActionReject             ActionKind = "REJECT"
	ActionRequestRevision    ActionKind = "REQUEST_REVISION"
	ActionSubmitRevision     ActionKind = "SUBMIT_REVISION"
	ActionEditContent        ActionKind = "EDIT_CONTENT"
	ActionSubmitAvailability ActionKind = "SUBMIT_AVAILABILITY"
	ActionSelectTimeSlot     ActionKind = "SELECT_TIME_SLOT"
	ActionSchedule           ActionKind = "SCHEDULE"
	ActionSubmitScore        ActionKind = "SUBMIT_SCORE"
	ActionCancel             ActionKind = "CANCEL"
	ActionUpdateJury         ActionKind = "UPDATE_JURY"
)

// Actor 动作发起人（显式传入，不读取任何全局会话状态）
type Actor struct {
	ID   string
	Role Role
}

// SimpleUser 用户目录返回的精简用户信息
type SimpleUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Policy 可配置的业务约束
type Policy struct {
	MinJuryCount    int
	MaxJuryCount    int // 0 表示不限
	ScoreMin        float64
	ScoreMax        float64
	ScoreStep       float64 // 0 表示不限制粒度
	MinReasonLength int
}

// DefaultPolicy 默认约束：评委至少 3 人，分数 [0,20] 步长 0.25
func DefaultPolicy() Policy {
	return Policy{
		MinJuryCount:    3,
		ScoreMin:        0,
		ScoreMax:        20,
		ScoreStep:       0.25,
		MinReasonLength: 10,
	}
}

// ── 副作用 ──

// Effect 迁移产生的副作用命令，由调用方负责执行
type Effect interface {
	effect()
}

// PersistForm 保存表单（携带期望版本，供乐观锁校验）
type PersistForm struct {
	FormID          string
	ExpectedVersion int
}

// PersistMeeting 保存会议
type PersistMeeting struct {
	MeetingID       string
	ExpectedVersion int
}

// CreateMeeting 表单终审通过后创建答辩会议（与表单保存同一事务）
type CreateMeeting struct {
	Meeting Meeting
}

// Notify 通知事件，投递由外部完成
type Notify struct {
	Event      string
	EntityID   string
	Recipients []string
}

func (PersistForm) effect()    {}
func (PersistMeeting) effect() {}
func (CreateMeeting) effect()  {}
func (Notify) effect()         {}

// ── 通知事件名 ──

const (
	EventFormSubmitted         = "form.submitted"
	EventFormApproved          = "form.approved"
	EventFormRejected          = "form.rejected"
	EventFormRevisionRequested = "form.revision_requested"
	EventFormRevised           = "form.revised"
	EventMeetingCreated        = "meeting.created"
	EventMeetingJuryUpdated    = "meeting.jury_updated"
	EventAvailabilitySubmitted = "meeting.availability_submitted"
	EventTimeSlotSelected      = "meeting.time_slot_selected"
	EventMeetingScheduled      = "meeting.scheduled"
	EventMeetingCompleted      = "meeting.completed"
	EventMeetingCanceled       = "meeting.canceled"
	EventAvailabilityReminder  = "availability.reminder"
)

func stamp(t time.Time) *time.Time {
	return &t
}
