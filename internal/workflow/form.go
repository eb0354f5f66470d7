package workflow

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// FormState 论文表单状态（字符串拼写为持久化契约）
type FormState string

const (
	FormSubmitted                             FormState = "SUBMITTED"
	FormInstructorApproved                    FormState = "INSTRUCTOR_APPROVED"
	FormInstructorRejected                    FormState = "INSTRUCTOR_REJECTED"
	FormInstructorRevisionRequested           FormState = "INSTRUCTOR_REVISION_REQUESTED"
	FormAdminApproved                         FormState = "ADMIN_APPROVED"
	FormAdminRejected                         FormState = "ADMIN_REJECTED"
	FormAdminRevisionRequestedForStudent      FormState = "ADMIN_REVISION_REQUESTED_FOR_STUDENT"
	FormAdminRevisionRequestedForInstructor   FormState = "ADMIN_REVISION_REQUESTED_FOR_INSTRUCTOR"
	FormManagerApproved                       FormState = "MANAGER_APPROVED"
	FormManagerRejected                       FormState = "MANAGER_REJECTED"
	FormManagerRevisionRequestedForStudent    FormState = "MANAGER_REVISION_REQUESTED_FOR_STUDENT"
	FormManagerRevisionRequestedForInstructor FormState = "MANAGER_REVISION_REQUESTED_FOR_INSTRUCTOR"
	FormManagerRevisionRequestedForAdmin      FormState = "MANAGER_REVISION_REQUESTED_FOR_ADMIN"
)

// FormStates 全部表单状态
func FormStates() []FormState {
	return []FormState{
		FormSubmitted,
		FormInstructorApproved, FormInstructorRejected, FormInstructorRevisionRequested,
		FormAdminApproved, FormAdminRejected,
		FormAdminRevisionRequestedForStudent, FormAdminRevisionRequestedForInstructor,
		FormManagerApproved, FormManagerRejected,
		FormManagerRevisionRequestedForStudent, FormManagerRevisionRequestedForInstructor,
		FormManagerRevisionRequestedForAdmin,
	}
}

// Valid 是否为已知状态
func (s FormState) Valid() bool {
	for _, v := range FormStates() {
		if v == s {
			return true
		}
	}
	return false
}

// Rejected 是否为驳回终态
func (s FormState) Rejected() bool {
	return s == FormInstructorRejected || s == FormAdminRejected || s == FormManagerRejected
}

// Terminal 驳回或终审通过后不再接受任何迁移
func (s FormState) Terminal() bool {
	return s.Rejected() || s == FormManagerApproved
}

// RevisionRequested 是否处于待修改状态
func (s FormState) RevisionRequested() bool {
	return strings.Contains(string(s), "_REVISION_REQUESTED")
}

// RevisionTarget 修改请求的对象
type RevisionTarget string

const (
	TargetStudent    RevisionTarget = "STUDENT"
	TargetInstructor RevisionTarget = "INSTRUCTOR"
	TargetAdmin      RevisionTarget = "ADMIN"
)

// 表单内容约束
const (
	TitleMinLength    = 10
	TitleMaxLength    = 200
	AbstractMinLength = 50
	AbstractMaxLength = 2000
)

// ThesisForm 论文表单
type ThesisForm struct {
	ID                   string
	Title                string
	AbstractText         string
	StudentID            string
	InstructorID         string
	FieldID              string
	State                FormState
	RejectionReason      string
	RevisionMessage      string
	RevisionRequestedAt  *time.Time
	CreatedAt            time.Time
	SubmittedAt          *time.Time
	InstructorReviewedAt *time.Time
	AdminReviewedAt      *time.Time
	ManagerReviewedAt    *time.Time
	UpdatedAt            time.Time
	Version              int
}

// FormDraft 学生新建表单时提交的内容
type FormDraft struct {
	Title        string
	AbstractText string
	InstructorID string
	FieldID      string
}

// ── 表单动作（按动作类型区分载荷） ──

// FormAction 表单动作
type FormAction interface {
	Kind() ActionKind
}

// ApproveForm 审批通过；终审（管理者）时必须携带评委名单
type ApproveForm struct {
	JuryIDs []string
}

// RejectForm 驳回，需给出理由
type RejectForm struct {
	Reason string
}

// RequestFormRevision 要求修改，需指定对象与说明
type RequestFormRevision struct {
	Target  RevisionTarget
	Message string
}

// SubmitFormRevision 修改完成后重新提交
type SubmitFormRevision struct{}

// EditFormContent 修改表单内容（不改变状态），nil 字段表示不修改
type EditFormContent struct {
	Title        *string
	AbstractText *string
	InstructorID *string
	FieldID      *string
}

func (ApproveForm) Kind() ActionKind         { return ActionApprove }
func (RejectForm) Kind() ActionKind          { return ActionReject }
func (RequestFormRevision) Kind() ActionKind { return ActionRequestRevision }
func (SubmitFormRevision) Kind() ActionKind  { return ActionSubmitRevision }
func (EditFormContent) Kind() ActionKind     { return ActionEditContent }

// ── 迁移表 ──

type party string

const (
	partyStudent    party = "student"
	partyInstructor party = "instructor"
	partyAdmin      party = "admin"
	partyManager    party = "manager"
	partyJury       party = "jury"
	partyCanceler   party = "canceler"
)

type formRule struct {
	party   party
	to      FormState                    // 为空表示保持当前状态
	targets map[RevisionTarget]FormState // 仅 REQUEST_REVISION 使用
}

var formRules = map[FormState]map[ActionKind]formRule{
	FormSubmitted: {
		ActionApprove: {party: partyInstructor, to: FormInstructorApproved},
		ActionReject:  {party: partyInstructor, to: FormInstructorRejected},
		ActionRequestRevision: {party: partyInstructor, targets: map[RevisionTarget]FormState{
			TargetStudent: FormInstructorRevisionRequested,
		}},
		ActionEditContent: {party: partyStudent},
	},
	FormInstructorRevisionRequested: {
		ActionReject: {party: partyInstructor, to: FormInstructorRejected},
		ActionRequestRevision: {party: partyInstructor, targets: map[RevisionTarget]FormState{
			TargetStudent: FormInstructorRevisionRequested,
		}},
		ActionSubmitRevision: {party: partyStudent, to: FormSubmitted},
		ActionEditContent:    {party: partyStudent},
	},
	FormInstructorApproved: {
		ActionApprove: {party: partyAdmin, to: FormAdminApproved},
		ActionReject:  {party: partyAdmin, to: FormAdminRejected},
		ActionRequestRevision: {party: partyAdmin, targets: map[RevisionTarget]FormState{
			TargetStudent:    FormAdminRevisionRequestedForStudent,
			TargetInstructor: FormAdminRevisionRequestedForInstructor,
		}},
	},
	FormAdminRevisionRequestedForInstructor: {
		ActionSubmitRevision: {party: partyInstructor, to: FormInstructorApproved},
	},
	FormAdminRevisionRequestedForStudent: {
		ActionSubmitRevision: {party: partyStudent, to: FormInstructorApproved},
		ActionEditContent:    {party: partyStudent},
	},
	FormAdminApproved: {
		ActionApprove: {party: partyManager, to: FormManagerApproved},
		ActionReject:  {party: partyManager, to: FormManagerRejected},
		ActionRequestRevision: {party: partyManager, targets: map[RevisionTarget]FormState{
			TargetStudent:    FormManagerRevisionRequestedForStudent,
			TargetInstructor: FormManagerRevisionRequestedForInstructor,
			TargetAdmin:      FormManagerRevisionRequestedForAdmin,
		}},
	},
	FormManagerRevisionRequestedForAdmin: {
		ActionSubmitRevision: {party: partyAdmin, to: FormAdminApproved},
	},
	FormManagerRevisionRequestedForInstructor: {
		ActionSubmitRevision: {party: partyInstructor, to: FormInstructorApproved},
	},
	FormManagerRevisionRequestedForStudent: {
		ActionSubmitRevision: {party: partyStudent, to: FormSubmitted},
		ActionEditContent:    {party: partyStudent},
	},
}

// AllowedFormActions 当前状态下某个用户可执行的动作（供前端渲染按钮）
func AllowedFormActions(form ThesisForm, actor Actor) []ActionKind {
	if form.State.Terminal() {
		return nil
	}
	var kinds []ActionKind
	for _, kind := range []ActionKind{ActionApprove, ActionReject, ActionRequestRevision, ActionSubmitRevision, ActionEditContent} {
		rule, ok := formRules[form.State][kind]
		if ok && formPartyMatches(rule.party, form, actor) {
			kinds = append(kinds, kind)
		}
	}
	return kinds
}

// RevisionTargets 当前状态允许的修改对象
func RevisionTargets(state FormState) []RevisionTarget {
	rule, ok := formRules[state][ActionRequestRevision]
	if !ok {
		return nil
	}
	var out []RevisionTarget
	for _, t := range []RevisionTarget{TargetStudent, TargetInstructor, TargetAdmin} {
		if _, ok := rule.targets[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

func formPartyMatches(p party, form ThesisForm, actor Actor) bool {
	switch p {
	case partyStudent:
		return actor.Role == RoleStudent && actor.ID == form.StudentID
	case partyInstructor:
		return actor.Role.IsProfessor() && actor.ID == form.InstructorID
	case partyAdmin:
		return actor.Role == RoleAdmin
	case partyManager:
		return actor.Role == RoleManager
	}
	return false
}

// ── 状态机 ──

// FormDecision 一次迁移的完整结果：新表单、副作用、（终审时）新会议
type FormDecision struct {
	From    FormState
	Form    ThesisForm
	Meeting *Meeting
	Effects []Effect
}

// FormMachine 表单审批状态机
type FormMachine struct {
	policy Policy
	clock  Clock
}

// NewFormMachine 创建表单状态机
func NewFormMachine(policy Policy, clock Clock) *FormMachine {
	if clock == nil {
		clock = SystemClock
	}
	return &FormMachine{policy: policy, clock: clock}
}

// NewForm 学生提交新表单，初始状态 SUBMITTED
func (m *FormMachine) NewForm(actor Actor, draft FormDraft) (ThesisForm, error) {
	if actor.Role != RoleStudent {
		return ThesisForm{}, notAuthorized("只有学生可以提交论文表单")
	}
	form := ThesisForm{
		Title:        strings.TrimSpace(draft.Title),
		AbstractText: strings.TrimSpace(draft.AbstractText),
		StudentID:    actor.ID,
		InstructorID: strings.TrimSpace(draft.InstructorID),
		FieldID:      strings.TrimSpace(draft.FieldID),
		State:        FormSubmitted,
	}
	if err := validateContent(form); err != nil {
		return ThesisForm{}, err
	}

	now := m.clock.Now()
	form.CreatedAt = now
	form.SubmittedAt = stamp(now)
	form.UpdatedAt = now
	form.Version = 1
	return form, nil
}

// Decide 根据 (当前状态, 动作, 角色) 查表决定迁移；不修改入参。
func (m *FormMachine) Decide(form ThesisForm, actor Actor, action FormAction) (*FormDecision, error) {
	if action == nil {
		return nil, invalidField("action", "不能为空")
	}
	kind := action.Kind()

	if form.State.Terminal() {
		return nil, fmt.Errorf("%w: 表单状态 %s", ErrAlreadyTerminal, form.State)
	}
	rule, ok := formRules[form.State][kind]
	if !ok {
		return nil, invalidTransition(string(form.State), kind, actor.Role)
	}
	if !formPartyMatches(rule.party, form, actor) {
		return nil, notAuthorized("状态 %s 下 %s 只能由%s执行", form.State, kind, partyLabel(rule.party))
	}

	now := m.clock.Now()
	next := form
	decision := &FormDecision{From: form.State}

	switch a := action.(type) {
	case ApproveForm:
		if rule.party == partyManager {
			meeting, err := NewMeeting(form, a.JuryIDs, m.policy, now)
			if err != nil {
				return nil, err
			}
			decision.Meeting = &meeting
		}
		next.State = rule.to
		next.RevisionMessage = ""
		next.RevisionRequestedAt = nil
		markReviewed(&next, rule.party, now)

	case RejectForm:
		reason := strings.TrimSpace(a.Reason)
		if utf8.RuneCountInString(reason) < m.minReason() {
			return nil, invalidField("reason", fmt.Sprintf("驳回理由至少 %d 个字符", m.minReason()))
		}
		next.State = rule.to
		next.RejectionReason = reason
		next.RevisionMessage = ""
		next.RevisionRequestedAt = nil
		markReviewed(&next, rule.party, now)

	case RequestFormRevision:
		to, ok := rule.targets[a.Target]
		if !ok {
			return nil, invalidTransition(string(form.State), kind, actor.Role)
		}
		message := strings.TrimSpace(a.Message)
		if utf8.RuneCountInString(message) < m.minReason() {
			return nil, invalidField("message", fmt.Sprintf("修改说明至少 %d 个字符", m.minReason()))
		}
		next.State = to
		next.RevisionMessage = message
		next.RevisionRequestedAt = stamp(now)
		markReviewed(&next, rule.party, now)

	case SubmitFormRevision:
		next.State = rule.to
		next.RevisionMessage = ""
		next.RevisionRequestedAt = nil
		if rule.to == FormSubmitted {
			next.SubmittedAt = stamp(now)
		}

	case EditFormContent:
		if err := applyEdit(&next, a); err != nil {
			return nil, err
		}

	default:
		return nil, invalidTransition(string(form.State), kind, actor.Role)
	}

	next.RejectionReason = rejectionFor(next)
	next.UpdatedAt = now

	decision.Form = next
	decision.Effects = append(decision.Effects, PersistForm{FormID: form.ID, ExpectedVersion: form.Version})
	if decision.Meeting != nil {
		decision.Effects = append(decision.Effects, CreateMeeting{Meeting: *decision.Meeting})
	}
	if n, ok := formNotification(form, next, kind, decision.Meeting); ok {
		decision.Effects = append(decision.Effects, n)
	}
	return decision, nil
}

func (m *FormMachine) minReason() int {
	if m.policy.MinReasonLength > 0 {
		return m.policy.MinReasonLength
	}
	return 10
}

func applyEdit(form *ThesisForm, edit EditFormContent) error {
	if edit.Title == nil && edit.AbstractText == nil && edit.InstructorID == nil && edit.FieldID == nil {
		return invalidField("content", "至少修改一项内容")
	}
	if edit.Title != nil {
		form.Title = strings.TrimSpace(*edit.Title)
	}
	if edit.AbstractText != nil {
		form.AbstractText = strings.TrimSpace(*edit.AbstractText)
	}
	if edit.FieldID != nil {
		form.FieldID = strings.TrimSpace(*edit.FieldID)
	}
	if edit.InstructorID != nil {
		instructorID := strings.TrimSpace(*edit.InstructorID)
		// 重新提交后直接进入 INSTRUCTOR_APPROVED 的状态下不能更换导师，新导师从未审阅过
		if instructorID != form.InstructorID && form.State == FormAdminRevisionRequestedForStudent {
			return invalidField("instructor_id", "当前阶段不能更换导师")
		}
		form.InstructorID = instructorID
	}
	return validateContent(*form)
}

func validateContent(form ThesisForm) error {
	if n := utf8.RuneCountInString(form.Title); n < TitleMinLength || n > TitleMaxLength {
		return invalidField("title", fmt.Sprintf("长度须在 %d-%d 之间", TitleMinLength, TitleMaxLength))
	}
	if n := utf8.RuneCountInString(form.AbstractText); n < AbstractMinLength || n > AbstractMaxLength {
		return invalidField("abstract_text", fmt.Sprintf("长度须在 %d-%d 之间", AbstractMinLength, AbstractMaxLength))
	}
	if form.InstructorID == "" {
		return invalidField("instructor_id", "不能为空")
	}
	if form.InstructorID == form.StudentID {
		return invalidField("instructor_id", "导师不能是学生本人")
	}
	if form.FieldID == "" {
		return invalidField("field_id", "不能为空")
	}
	return nil
}

// rejectionFor 保证驳回理由只在驳回状态下存在
func rejectionFor(form ThesisForm) string {
	if form.State.Rejected() {
		return form.RejectionReason
	}
	return ""
}

func markReviewed(form *ThesisForm, p party, now time.Time) {
	switch p {
	case partyInstructor:
		form.InstructorReviewedAt = stamp(now)
	case partyAdmin:
		form.AdminReviewedAt = stamp(now)
	case partyManager:
		form.ManagerReviewedAt = stamp(now)
	}
}

func formNotification(before, after ThesisForm, kind ActionKind, meeting *Meeting) (Notify, bool) {
	n := Notify{EntityID: before.ID}
	switch kind {
	case ActionApprove:
		n.Event = EventFormApproved
		n.Recipients = []string{after.StudentID}
		switch after.State {
		case FormInstructorApproved:
			n.Recipients = append(n.Recipients, "role:"+string(RoleAdmin))
		case FormAdminApproved:
			n.Recipients = append(n.Recipients, "role:"+string(RoleManager))
		case FormManagerApproved:
			if meeting != nil {
				n.Event = EventMeetingCreated
				n.Recipients = append(n.Recipients, meeting.JuryIDs...)
			}
		}
	case ActionReject:
		n.Event = EventFormRejected
		n.Recipients = []string{after.StudentID}
	case ActionRequestRevision:
		n.Event = EventFormRevisionRequested
		switch after.State {
		case FormAdminRevisionRequestedForInstructor, FormManagerRevisionRequestedForInstructor:
			n.Recipients = []string{after.InstructorID}
		case FormManagerRevisionRequestedForAdmin:
			n.Recipients = []string{"role:" + string(RoleAdmin)}
		default:
			n.Recipients = []string{after.StudentID}
		}
	case ActionSubmitRevision:
		n.Event = EventFormRevised
		switch after.State {
		case FormSubmitted:
			n.Recipients = []string{after.InstructorID}
		case FormInstructorApproved:
			n.Recipients = []string{"role:" + string(RoleAdmin)}
		case FormAdminApproved:
			n.Recipients = []string{"role:" + string(RoleManager)}
		}
	default:
		return Notify{}, false
	}
	return n, true
}

func partyLabel(p party) string {
	switch p {
	case partyStudent:
		return "提交表单的学生"
	case partyInstructor:
		return "该表单的导师"
	case partyAdmin:
		return "管理员"
	case partyManager:
		return "答辩负责人"
	case partyJury:
		return "评委"
	case partyCanceler:
		return "管理员或答辩负责人"
	}
	return string(p)
}
