package workflow

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MeetingState 答辩会议状态
type MeetingState string

const (
	MeetingJuriesSelected      MeetingState = "JURIES_SELECTED"
	MeetingJuriesSpecifiedTime MeetingState = "JURIES_SPECIFIED_TIME"
	MeetingStudentSpecified    MeetingState = "STUDENT_SPECIFIED_TIME"
	MeetingScheduled           MeetingState = "SCHEDULED"
	MeetingCompleted           MeetingState = "COMPLETED"
	MeetingCanceled            MeetingState = "CANCELED"
)

// MeetingStates 全部会议状态
func MeetingStates() []MeetingState {
	return []MeetingState{
		MeetingJuriesSelected, MeetingJuriesSpecifiedTime, MeetingStudentSpecified,
		MeetingScheduled, MeetingCompleted, MeetingCanceled,
	}
}

// Valid 是否为已知状态
func (s MeetingState) Valid() bool {
	for _, v := range MeetingStates() {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal 完成或取消
func (s MeetingState) Terminal() bool {
	return s == MeetingCompleted || s == MeetingCanceled
}

// HasSelectedSlot 该状态下必须已选定时间段
func (s MeetingState) HasSelectedSlot() bool {
	return s == MeetingStudentSpecified || s == MeetingScheduled || s == MeetingCompleted
}

// AcceptsAvailability 评委可提交/覆盖可用时间段的状态
func (s MeetingState) AcceptsAvailability() bool {
	return s == MeetingJuriesSelected || s == MeetingJuriesSpecifiedTime
}

// LocationMaxLength 地点最大长度
const LocationMaxLength = 200

// Meeting 答辩会议
type Meeting struct {
	ID               string
	FormID           string
	StudentID        string
	InstructorID     string
	State            MeetingState
	JuryIDs          []string
	Location         string
	SelectedTimeSlot *TimeSlot
	Availability     map[string][]TimeSlot
	Scores           map[string]float64
	Score            *float64
	CancelReason     string
	CreatedAt        time.Time
	ScheduledAt      *time.Time
	CompletedAt      *time.Time
	CanceledAt       *time.Time
	UpdatedAt        time.Time
	Version          int
}

// HasJury 是否为评委
func (m Meeting) HasJury(userID string) bool {
	for _, id := range m.JuryIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Report 当前可用时间段汇总
func (m Meeting) Report() AvailabilityReport {
	return Aggregate(m.JuryIDs, m.Availability)
}

// clone 深拷贝，保证决策不修改调用方持有的快照
func (m Meeting) clone() Meeting {
	out := m
	out.JuryIDs = append([]string(nil), m.JuryIDs...)
	out.Availability = make(map[string][]TimeSlot, len(m.Availability))
	for k, v := range m.Availability {
		out.Availability[k] = append([]TimeSlot(nil), v...)
	}
	out.Scores = make(map[string]float64, len(m.Scores))
	for k, v := range m.Scores {
		out.Scores[k] = v
	}
	if m.SelectedTimeSlot != nil {
		slot := *m.SelectedTimeSlot
		out.SelectedTimeSlot = &slot
	}
	if m.Score != nil {
		score := *m.Score
		out.Score = &score
	}
	return out
}

// NewMeeting 表单终审通过时创建会议，初始状态 JURIES_SELECTED
func NewMeeting(form ThesisForm, juryIDs []string, policy Policy, now time.Time) (Meeting, error) {
	jury, err := ValidateJury(juryIDs, form.InstructorID, form.StudentID, policy)
	if err != nil {
		return Meeting{}, err
	}
	return Meeting{
		FormID:       form.ID,
		StudentID:    form.StudentID,
		InstructorID: form.InstructorID,
		State:        MeetingJuriesSelected,
		JuryIDs:      jury,
		Availability: map[string][]TimeSlot{},
		Scores:       map[string]float64{},
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}, nil
}

// ValidateJury 校验评委名单：非空、不重复、人数在范围内、包含导师、不包含学生
func ValidateJury(juryIDs []string, instructorID, studentID string, policy Policy) ([]string, error) {
	seen := make(map[string]bool, len(juryIDs))
	jury := make([]string, 0, len(juryIDs))
	for _, raw := range juryIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			return nil, invalidField("jury_ids", "评委 ID 不能为空")
		}
		if seen[id] {
			return nil, invalidField("jury_ids", "评委 "+id+" 重复")
		}
		seen[id] = true
		jury = append(jury, id)
	}

	if len(jury) < policy.MinJuryCount {
		return nil, invalidField("jury_ids", fmt.Sprintf("评委至少 %d 人", policy.MinJuryCount))
	}
	if policy.MaxJuryCount > 0 && len(jury) > policy.MaxJuryCount {
		return nil, invalidField("jury_ids", fmt.Sprintf("评委至多 %d 人", policy.MaxJuryCount))
	}
	if !seen[instructorID] {
		return nil, invalidField("jury_ids", "评委必须包含导师")
	}
	if seen[studentID] {
		return nil, invalidField("jury_ids", "学生不能担任评委")
	}
	return jury, nil
}

// ── 会议动作 ──

// MeetingAction 会议动作
type MeetingAction interface {
	Kind() ActionKind
}

// SubmitAvailability 评委提交可用时间段（整体覆盖上次提交）
type SubmitAvailability struct {
	Slots []TimeSlot
}

// SelectTimeSlot 学生从交集中选定时间段
type SelectTimeSlot struct {
	Slot TimeSlot
}

// ScheduleMeeting 答辩负责人确定地点，会议定档
type ScheduleMeeting struct {
	Location string
}

// SubmitScore 评委打分
type SubmitScore struct {
	Score float64
}

// CancelMeeting 取消会议
type CancelMeeting struct {
	Reason string
}

// UpdateJury 答辩负责人调整评委名单
type UpdateJury struct {
	JuryIDs []string
}

func (SubmitAvailability) Kind() ActionKind { return ActionSubmitAvailability }
func (SelectTimeSlot) Kind() ActionKind     { return ActionSelectTimeSlot }
func (ScheduleMeeting) Kind() ActionKind    { return ActionSchedule }
func (SubmitScore) Kind() ActionKind        { return ActionSubmitScore }
func (CancelMeeting) Kind() ActionKind      { return ActionCancel }
func (UpdateJury) Kind() ActionKind         { return ActionUpdateJury }

var meetingRules = map[MeetingState]map[ActionKind]party{
	MeetingJuriesSelected: {
		ActionSubmitAvailability: partyJury,
		ActionUpdateJury:         partyManager,
		ActionCancel:             partyCanceler,
	},
	MeetingJuriesSpecifiedTime: {
		ActionSubmitAvailability: partyJury,
		ActionSelectTimeSlot:     partyStudent,
		ActionUpdateJury:         partyManager,
		ActionCancel:             partyCanceler,
	},
	MeetingStudentSpecified: {
		ActionSchedule: partyManager,
		ActionCancel:   partyCanceler,
	},
	MeetingScheduled: {
		ActionSubmitScore: partyJury,
		ActionCancel:      partyCanceler,
	},
}

func meetingPartyMatches(p party, m Meeting, actor Actor) bool {
	switch p {
	case partyJury:
		return m.HasJury(actor.ID)
	case partyStudent:
		return actor.Role == RoleStudent && actor.ID == m.StudentID
	case partyManager:
		return actor.Role == RoleManager
	case partyCanceler:
		return actor.Role == RoleAdmin || actor.Role == RoleManager
	}
	return false
}

// AllowedMeetingActions 当前状态下某个用户可执行的动作
func AllowedMeetingActions(m Meeting, actor Actor) []ActionKind {
	if m.State.Terminal() {
		return nil
	}
	var kinds []ActionKind
	for _, kind := range []ActionKind{ActionSubmitAvailability, ActionSelectTimeSlot, ActionSchedule, ActionSubmitScore, ActionUpdateJury, ActionCancel} {
		p, ok := meetingRules[m.State][kind]
		if !ok || !meetingPartyMatches(p, m, actor) {
			continue
		}
		if kind == ActionSubmitScore {
			if _, scored := m.Scores[actor.ID]; scored {
				continue
			}
		}
		kinds = append(kinds, kind)
	}
	return kinds
}

// ── 状态机 ──

// MeetingDecision 一次会议迁移的结果
type MeetingDecision struct {
	From    MeetingState
	Meeting Meeting
	Report  AvailabilityReport
	Effects []Effect
}

// MeetingMachine 会议状态机
type MeetingMachine struct {
	policy Policy
	clock  Clock
}

// NewMeetingMachine 创建会议状态机
func NewMeetingMachine(policy Policy, clock Clock) *MeetingMachine {
	if clock == nil {
		clock = SystemClock
	}
	return &MeetingMachine{policy: policy, clock: clock}
}

// Decide 决定会议迁移；任何错误都不会产生部分修改。
func (mm *MeetingMachine) Decide(m Meeting, actor Actor, action MeetingAction) (*MeetingDecision, error) {
	if action == nil {
		return nil, invalidField("action", "不能为空")
	}
	kind := action.Kind()

	if m.State.Terminal() {
		return nil, fmt.Errorf("%w: 会议状态 %s", ErrAlreadyTerminal, m.State)
	}
	p, ok := meetingRules[m.State][kind]
	if !ok {
		return nil, invalidTransition(string(m.State), kind, actor.Role)
	}
	if !meetingPartyMatches(p, m, actor) {
		return nil, notAuthorized("会议状态 %s 下 %s 只能由%s执行", m.State, kind, partyLabel(p))
	}

	now := mm.clock.Now()
	next := m.clone()
	var notify Notify

	switch a := action.(type) {
	case SubmitAvailability:
		slots, err := NormalizeSlots(a.Slots)
		if err != nil {
			return nil, err
		}
		if len(slots) == 0 {
			return nil, invalidField("slots", "至少提交一个时间段")
		}
		next.Availability[actor.ID] = slots
		next.State = MeetingJuriesSpecifiedTime
		notify = Notify{Event: EventAvailabilitySubmitted, Recipients: []string{m.StudentID}}

	case SelectTimeSlot:
		slot, err := NewTimeSlot(a.Slot.Date, a.Slot.TimePeriod)
		if err != nil {
			return nil, err
		}
		if !ContainsSlot(Intersect(m.JuryIDs, m.Availability), slot) {
			return nil, fmt.Errorf("%w: %s %s", ErrInvalidTimeSlot, slot.Date, slot.TimePeriod)
		}
		next.SelectedTimeSlot = &slot
		next.State = MeetingStudentSpecified
		notify = Notify{Event: EventTimeSlotSelected, Recipients: []string{"role:" + string(RoleManager)}}

	case ScheduleMeeting:
		location := strings.TrimSpace(a.Location)
		if location == "" {
			return nil, invalidField("location", "不能为空")
		}
		if utf8.RuneCountInString(location) > LocationMaxLength {
			return nil, invalidField("location", fmt.Sprintf("长度不能超过 %d", LocationMaxLength))
		}
		next.Location = location
		next.State = MeetingScheduled
		next.ScheduledAt = stamp(now)
		notify = Notify{Event: EventMeetingScheduled, Recipients: withStudent(m)}

	case SubmitScore:
		if _, scored := m.Scores[actor.ID]; scored {
			return nil, fmt.Errorf("%w: 评委 %s", ErrAlreadyScored, actor.ID)
		}
		if err := ValidateScore(mm.policy, a.Score); err != nil {
			return nil, err
		}
		next.Scores[actor.ID] = a.Score
		if final, done := FinalScore(next.JuryIDs, next.Scores); done {
			next.Score = &final
			next.State = MeetingCompleted
			next.CompletedAt = stamp(now)
			notify = Notify{Event: EventMeetingCompleted, Recipients: withStudent(m)}
		}

	case CancelMeeting:
		next.State = MeetingCanceled
		next.CancelReason = strings.TrimSpace(a.Reason)
		next.SelectedTimeSlot = nil
		next.CanceledAt = stamp(now)
		notify = Notify{Event: EventMeetingCanceled, Recipients: withStudent(m)}

	case UpdateJury:
		jury, err := ValidateJury(a.JuryIDs, m.InstructorID, m.StudentID, mm.policy)
		if err != nil {
			return nil, err
		}
		next.JuryIDs = jury
		for id := range next.Availability {
			if !next.HasJury(id) {
				delete(next.Availability, id)
			}
		}
		next.State = MeetingJuriesSelected
		if len(next.Report().Submitted) > 0 {
			next.State = MeetingJuriesSpecifiedTime
		}
		notify = Notify{Event: EventMeetingJuryUpdated, Recipients: withStudent(next)}

	default:
		return nil, invalidTransition(string(m.State), kind, actor.Role)
	}

	next.UpdatedAt = now

	decision := &MeetingDecision{
		From:    m.State,
		Meeting: next,
		Report:  next.Report(),
		Effects: []Effect{PersistMeeting{MeetingID: m.ID, ExpectedVersion: m.Version}},
	}
	if notify.Event != "" {
		notify.EntityID = m.ID
		decision.Effects = append(decision.Effects, notify)
	}
	return decision, nil
}

// withStudent 评委加学生
func withStudent(m Meeting) []string {
	out := make([]string, 0, len(m.JuryIDs)+1)
	out = append(out, m.StudentID)
	return append(out, m.JuryIDs...)
}
