package model

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"thesis-defense/backend/internal/workflow"
)

// Meeting 答辩会议表，对应 meetings（与论文表单一一对应）
type Meeting struct {
	MeetingID      string     `gorm:"type:uuid;primaryKey"                                json:"meeting_id"`
	FormID         string     `gorm:"type:uuid;not null;uniqueIndex"                      json:"form_id"`
	StudentID      string     `gorm:"type:uuid;not null;index"                            json:"student_id"`
	InstructorID   string     `gorm:"type:uuid;not null"                                  json:"instructor_id"`
	State          string     `gorm:"type:varchar(30);not null;default:'JURIES_SELECTED'" json:"state"`
	Location       *string    `gorm:"type:varchar(200)"                                   json:"location,omitempty"`
	SelectedDate   *string    `gorm:"type:varchar(10)"                                    json:"selected_date,omitempty"` // YYYY-MM-DD
	SelectedPeriod *string    `gorm:"type:varchar(30)"                                    json:"selected_period,omitempty"`
	Score          *float64   `gorm:"type:numeric(5,2)"                                   json:"score,omitempty"`
	CancelReason   *string    `gorm:"type:varchar(500)"                                   json:"cancel_reason,omitempty"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CanceledAt     *time.Time `json:"canceled_at,omitempty"`
	VersionedModel

	// 关联
	Form           *ThesisForm        `gorm:"foreignKey:FormID;references:FormID" json:"form,omitempty"`
	Juries         []MeetingJury      `gorm:"foreignKey:MeetingID"                json:"juries,omitempty"`
	Availabilities []JuryAvailability `gorm:"foreignKey:MeetingID"                json:"availabilities,omitempty"`
	Scores         []JuryScore        `gorm:"foreignKey:MeetingID"                json:"scores,omitempty"`
}

func (Meeting) TableName() string { return "meetings" }

// MeetingJury 会议评委表，对应 meeting_juries
type MeetingJury struct {
	MeetingID string    `gorm:"type:uuid;primaryKey"               json:"meeting_id"`
	JuryID    string    `gorm:"type:uuid;primaryKey"               json:"jury_id"`
	Position  int       `gorm:"type:smallint;not null"             json:"position"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`

	Jury *User `gorm:"foreignKey:JuryID;references:UserID" json:"jury,omitempty"`
}

func (MeetingJury) TableName() string { return "meeting_juries" }

// JuryAvailability 评委可用时间段表，对应 jury_availabilities（每人一行，整体覆盖）
type JuryAvailability struct {
	MeetingID   string                                `gorm:"type:uuid;primaryKey"               json:"meeting_id"`
	JuryID      string                                `gorm:"type:uuid;primaryKey"               json:"jury_id"`
	Slots       datatypes.JSONSlice[workflow.TimeSlot] `gorm:"type:jsonb;not null"                json:"slots"`
	SubmittedAt time.Time                             `gorm:"not null;default:CURRENT_TIMESTAMP" json:"submitted_at"`
}

func (JuryAvailability) TableName() string { return "jury_availabilities" }

// JuryScore 评委评分表，对应 jury_scores（每位评委至多一条）
type JuryScore struct {
	MeetingID string    `gorm:"type:uuid;primaryKey"               json:"meeting_id"`
	JuryID    string    `gorm:"type:uuid;primaryKey"               json:"jury_id"`
	Score     float64   `gorm:"type:numeric(5,2);not null"         json:"score"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (JuryScore) TableName() string { return "jury_scores" }

// ToDomain 转换为流程核心使用的会议快照
func (m *Meeting) ToDomain() workflow.Meeting {
	juries := append([]MeetingJury(nil), m.Juries...)
	sort.SliceStable(juries, func(i, j int) bool { return juries[i].Position < juries[j].Position })

	out := workflow.Meeting{
		ID:           m.MeetingID,
		FormID:       m.FormID,
		StudentID:    m.StudentID,
		InstructorID: m.InstructorID,
		State:        workflow.MeetingState(m.State),
		JuryIDs:      make([]string, 0, len(juries)),
		Location:     strVal(m.Location),
		Availability: make(map[string][]workflow.TimeSlot, len(m.Availabilities)),
		Scores:       make(map[string]float64, len(m.Scores)),
		CancelReason: strVal(m.CancelReason),
		CreatedAt:    m.CreatedAt,
		ScheduledAt:  copyTime(m.ScheduledAt),
		CompletedAt:  copyTime(m.CompletedAt),
		CanceledAt:   copyTime(m.CanceledAt),
		UpdatedAt:    m.UpdatedAt,
		Version:      m.Version,
	}
	for _, j := range juries {
		out.JuryIDs = append(out.JuryIDs, j.JuryID)
	}
	for _, a := range m.Availabilities {
		out.Availability[a.JuryID] = append([]workflow.TimeSlot(nil), a.Slots...)
	}
	for _, s := range m.Scores {
		out.Scores[s.JuryID] = s.Score
	}
	if m.SelectedDate != nil && m.SelectedPeriod != nil {
		out.SelectedTimeSlot = &workflow.TimeSlot{Date: *m.SelectedDate, TimePeriod: workflow.TimePeriod(*m.SelectedPeriod)}
	}
	if m.Score != nil {
		score := *m.Score
		out.Score = &score
	}
	return out
}

// MeetingFromDomain 由流程核心快照构造持久化模型（含评委、可用时间、评分子表）
func MeetingFromDomain(d workflow.Meeting) *Meeting {
	id := d.ID
	if id == "" {
		id = uuid.New().String()
	}
	m := &Meeting{
		MeetingID:    id,
		FormID:       d.FormID,
		StudentID:    d.StudentID,
		InstructorID: d.InstructorID,
		State:        string(d.State),
		Location:     strPtr(d.Location),
		CancelReason: strPtr(d.CancelReason),
		ScheduledAt:  copyTime(d.ScheduledAt),
		CompletedAt:  copyTime(d.CompletedAt),
		CanceledAt:   copyTime(d.CanceledAt),
	}
	m.CreatedAt = d.CreatedAt
	m.UpdatedAt = d.UpdatedAt
	m.Version = d.Version

	if d.SelectedTimeSlot != nil {
		date := d.SelectedTimeSlot.Date
		period := string(d.SelectedTimeSlot.TimePeriod)
		m.SelectedDate = &date
		m.SelectedPeriod = &period
	}
	if d.Score != nil {
		score := *d.Score
		m.Score = &score
	}

	for i, juryID := range d.JuryIDs {
		m.Juries = append(m.Juries, MeetingJury{MeetingID: id, JuryID: juryID, Position: i})
	}
	for _, juryID := range sortedKeys(d.Availability) {
		m.Availabilities = append(m.Availabilities, JuryAvailability{
			MeetingID:   id,
			JuryID:      juryID,
			Slots:       datatypes.NewJSONSlice(d.Availability[juryID]),
			SubmittedAt: d.UpdatedAt,
		})
	}
	for _, juryID := range sortedKeys(d.Scores) {
		m.Scores = append(m.Scores, JuryScore{MeetingID: id, JuryID: juryID, Score: d.Scores[juryID], CreatedAt: d.UpdatedAt})
	}
	return m
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// [自证通过] internal/model/meeting.go
