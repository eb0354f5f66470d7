package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	juryB = Actor{ID: "p2", Role: RoleProfessor}
	juryC = Actor{ID: "p3", Role: RoleProfessor}
)

var (
	slotApr1Morning = TimeSlot{Date: "2025-04-01", TimePeriod: Period0900To1030}
	slotApr2Noon    = TimeSlot{Date: "2025-04-02", TimePeriod: Period1330To1500}
)

func newMeetingMachine() *MeetingMachine {
	return NewMeetingMachine(DefaultPolicy(), fixedClock())
}

func newTestMeeting(t *testing.T) Meeting {
	t.Helper()
	form := formIn(t, FormAdminApproved)
	meeting, err := NewMeeting(form, []string{instructorID, juryB.ID, juryC.ID}, DefaultPolicy(), fixedNow)
	require.NoError(t, err)
	meeting.ID = "mt1"
	return meeting
}

// apply 执行并断言成功
func apply(t *testing.T, mm *MeetingMachine, m Meeting, actor Actor, action MeetingAction) Meeting {
	t.Helper()
	decision, err := mm.Decide(m, actor, action)
	require.NoError(t, err)
	return decision.Meeting
}

// scheduledMeeting 走完整流程到 SCHEDULED
func scheduledMeeting(t *testing.T) Meeting {
	t.Helper()
	mm := newMeetingMachine()
	m := newTestMeeting(t)
	for _, j := range []Actor{instructor, juryB, juryC} {
		m = apply(t, mm, m, j, SubmitAvailability{Slots: []TimeSlot{slotApr1Morning}})
	}
	m = apply(t, mm, m, student, SelectTimeSlot{Slot: slotApr1Morning})
	return apply(t, mm, m, manager, ScheduleMeeting{Location: "Room 301"})
}

func TestNewMeeting(t *testing.T) {
	m := newTestMeeting(t)

	assert.Equal(t, MeetingJuriesSelected, m.State)
	assert.Nil(t, m.SelectedTimeSlot)
	assert.Nil(t, m.Score)
	assert.Empty(t, m.Scores)
	assert.True(t, m.HasJury(instructorID))
	assert.False(t, m.HasJury(studentID))
}

func TestFirstAvailabilityMovesToJuriesSpecifiedTime(t *testing.T) {
	mm := newMeetingMachine()
	m := newTestMeeting(t)

	decision, err := mm.Decide(m, juryB, SubmitAvailability{Slots: []TimeSlot{slotApr1Morning}})
	require.NoError(t, err)
	assert.Equal(t, MeetingJuriesSpecifiedTime, decision.Meeting.State)
	assert.Equal(t, []string{juryB.ID}, decision.Report.Submitted)
	assert.Equal(t, []string{instructorID, juryC.ID}, decision.Report.Awaiting)
	assert.True(t, decision.Report.Partial)
	assert.Contains(t, decision.Effects, Effect(PersistMeeting{MeetingID: "mt1", ExpectedVersion: 1}))

	assert.Empty(t, m.Availability, "入参不应被修改")
	assert.Equal(t, MeetingJuriesSelected, m.State)
}

func TestAvailabilityIntersectionAcrossJury(t *testing.T) {
	mm := newMeetingMachine()
	m := newTestMeeting(t)

	m = apply(t, mm, m, juryB, SubmitAvailability{Slots: []TimeSlot{slotApr1Morning, slotApr2Noon}})
	m = apply(t, mm, m, juryC, SubmitAvailability{Slots: []TimeSlot{slotApr1Morning}})

	assert.Equal(t, []TimeSlot{slotApr1Morning}, m.Report().Intersection)
}

func TestAvailabilityResubmitIsIdempotent(t *testing.T) {
	mm := newMeetingMachine()
	m := newTestMeeting(t)
	slots := []TimeSlot{slotApr2Noon, slotApr1Morning, slotApr1Morning}

	first := apply(t, mm, m, juryB, SubmitAvailability{Slots: slots})
	second := apply(t, mm, first, juryB, SubmitAvailability{Slots: slots})

	assert.Equal(t, first.Availability, second.Availability)
	assert.Equal(t, first.Report(), second.Report())
	assert.Equal(t, first.State, second.State)
	assert.Equal(t, []TimeSlot{slotApr1Morning, slotApr2Noon}, second.Availability[juryB.ID])

	replaced := apply(t, mm, second, juryB, SubmitAvailability{Slots: []TimeSlot{slotApr2Noon}})
	assert.Equal(t, []TimeSlot{slotApr2Noon}, replaced.Availability[juryB.ID], "重新提交应整体覆盖")
}

func TestAvailabilityRejected(t *testing.T) {
	mm := newMeetingMachine()
	m := newTestMeeting(t)

	_, err := mm.Decide(m, otherProfOutsideJury(), SubmitAvailability{Slots: []TimeSlot{slotApr1Morning}})
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, err = mm.Decide(m, student, SubmitAvailability{Slots: []TimeSlot{slotApr1Morning}})
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, err = mm.Decide(m, juryB, SubmitAvailability{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = mm.Decide(m, juryB, SubmitAvailability{Slots: []TimeSlot{{Date: "2025-04-01", TimePeriod: "PERIOD_NOON"}}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = mm.Decide(scheduledMeeting(t), juryB, SubmitAvailability{Slots: []TimeSlot{slotApr1Morning}})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func otherProfOutsideJury() Actor {
	return Actor{ID: "p9", Role: RoleProfessor}
}

func TestStudentSelectsTimeSlot(t *testing.T) {
	mm := newMeetingMachine()
	m := newTestMeeting(t)

	_, err := mm.Decide(m, student, SelectTimeSlot{Slot: slotApr1Morning})
	require.ErrorIs(t, err, ErrInvalidTransition)

	m = apply(t, mm, m, juryB, SubmitAvailability{Slots: []TimeSlot{slotApr1Morning, slotApr2Noon}})
	m = apply(t, mm, m, juryC, SubmitAvailability{Slots: []TimeSlot{slotApr1Morning}})

	_, err = mm.Decide(m, student, SelectTimeSlot{Slot: slotApr2Noon})
	require.ErrorIs(t, err, ErrInvalidTimeSlot)

	_, err = mm.Decide(m, Actor{ID: "s9", Role: RoleStudent}, SelectTimeSlot{Slot: slotApr1Morning})
	require.ErrorIs(t, err, ErrNotAuthorized)

	decision, err := mm.Decide(m, student, SelectTimeSlot{Slot: slotApr1Morning})
	require.NoError(t, err)
	assert.Equal(t, MeetingStudentSpecified, decision.Meeting.State)
	require.NotNil(t, decision.Meeting.SelectedTimeSlot)
	assert.Equal(t, slotApr1Morning, *decision.Meeting.SelectedTimeSlot)
}

func TestScheduleMeeting(t *testing.T) {
	mm := newMeetingMachine()
	m := newTestMeeting(t)
	m = apply(t, mm, m, juryB, SubmitAvailability{Slots: []TimeSlot{slotApr1Morning}})
	m = apply(t, mm, m, student, SelectTimeSlot{Slot: slotApr1Morning})

	_, err := mm.Decide(m, manager, ScheduleMeeting{Location: "   "})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = mm.Decide(m, admin, ScheduleMeeting{Location: "Room 301"})
	assert.ErrorIs(t, err, ErrNotAuthorized)

	decision, err := mm.Decide(m, manager, ScheduleMeeting{Location: " Room 301 "})
	require.NoError(t, err)
	assert.Equal(t, MeetingScheduled, decision.Meeting.State)
	assert.Equal(t, "Room 301", decision.Meeting.Location)
	require.NotNil(t, decision.Meeting.ScheduledAt)
	assert.Equal(t, slotApr1Morning, *decision.Meeting.SelectedTimeSlot)
}

func TestScoringCompletesMeeting(t *testing.T) {
	mm := newMeetingMachine()
	m := scheduledMeeting(t)

	m = apply(t, mm, m, instructor, SubmitScore{Score: 18.0})
	assert.Equal(t, MeetingScheduled, m.State)
	assert.Nil(t, m.Score)

	_, err := mm.Decide(m, instructor, SubmitScore{Score: 19})
	require.ErrorIs(t, err, ErrAlreadyScored)

	m = apply(t, mm, m, juryB, SubmitScore{Score: 16.5})
	assert.Len(t, m.Scores, 2)

	decision, err := mm.Decide(m, juryC, SubmitScore{Score: 17.5})
	require.NoError(t, err)
	done := decision.Meeting
	assert.Equal(t, MeetingCompleted, done.State)
	require.NotNil(t, done.Score)
	assert.Equal(t, 17.33, *done.Score)
	require.NotNil(t, done.CompletedAt)
	assert.NotNil(t, done.SelectedTimeSlot)

	var completed bool
	for _, e := range decision.Effects {
		if n, ok := e.(Notify); ok && n.Event == EventMeetingCompleted {
			completed = true
		}
	}
	assert.True(t, completed)

	_, err = mm.Decide(done, juryC, SubmitScore{Score: 10})
	assert.ErrorIs(t, err, ErrAlreadyTerminal)
}

func TestScoringRejected(t *testing.T) {
	mm := newMeetingMachine()
	m := scheduledMeeting(t)

	_, err := mm.Decide(m, juryB, SubmitScore{Score: 20.5})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = mm.Decide(m, juryB, SubmitScore{Score: -1})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = mm.Decide(m, juryB, SubmitScore{Score: 17.1})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = mm.Decide(m, otherProfOutsideJury(), SubmitScore{Score: 15})
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, err = mm.Decide(newTestMeeting(t), juryB, SubmitScore{Score: 15})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelMeeting(t *testing.T) {
	mm := newMeetingMachine()

	for _, m := range []Meeting{newTestMeeting(t), scheduledMeeting(t)} {
		decision, err := mm.Decide(m, admin, CancelMeeting{Reason: "student withdrew"})
		require.NoError(t, err)
		assert.Equal(t, MeetingCanceled, decision.Meeting.State)
		assert.Nil(t, decision.Meeting.SelectedTimeSlot)
		assert.Equal(t, "student withdrew", decision.Meeting.CancelReason)

		_, err = mm.Decide(decision.Meeting, manager, CancelMeeting{})
		assert.ErrorIs(t, err, ErrAlreadyTerminal)
	}

	_, err := mm.Decide(newTestMeeting(t), instructor, CancelMeeting{})
	assert.ErrorIs(t, err, ErrNotAuthorized)

	_, err = mm.Decide(newTestMeeting(t), manager, CancelMeeting{})
	assert.NoError(t, err)
}

func TestUpdateJury(t *testing.T) {
	mm := newMeetingMachine()
	m := newTestMeeting(t)
	m = apply(t, mm, m, juryC, SubmitAvailability{Slots: []TimeSlot{slotApr1Morning}})

	_, err := mm.Decide(m, manager, UpdateJury{JuryIDs: []string{juryB.ID, juryC.ID, "p4"}})
	require.ErrorIs(t, err, ErrValidation, "不能移除导师")

	_, err = mm.Decide(m, admin, UpdateJury{JuryIDs: []string{instructorID, juryB.ID, "p4"}})
	require.ErrorIs(t, err, ErrNotAuthorized)

	decision, err := mm.Decide(m, manager, UpdateJury{JuryIDs: []string{instructorID, juryB.ID, "p4"}})
	require.NoError(t, err)
	updated := decision.Meeting
	assert.Equal(t, []string{instructorID, juryB.ID, "p4"}, updated.JuryIDs)
	assert.NotContains(t, updated.Availability, juryC.ID)
	assert.Equal(t, MeetingJuriesSelected, updated.State, "无人提交时回到 JURIES_SELECTED")

	_, err = mm.Decide(scheduledMeeting(t), manager, UpdateJury{JuryIDs: []string{instructorID, juryB.ID, "p4"}})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAllowedMeetingActions(t *testing.T) {
	m := scheduledMeeting(t)

	assert.Equal(t, []ActionKind{ActionSubmitScore}, AllowedMeetingActions(m, juryB))
	assert.Equal(t, []ActionKind{ActionCancel}, AllowedMeetingActions(m, admin))
	assert.Empty(t, AllowedMeetingActions(m, student))

	scored := apply(t, newMeetingMachine(), m, juryB, SubmitScore{Score: 12})
	assert.Empty(t, AllowedMeetingActions(scored, juryB))
}

// 完整流程中 selectedTimeSlot 只在选定之后的状态存在
func TestMeetingSelectedSlotInvariant(t *testing.T) {
	mm := newMeetingMachine()
	check := func(m Meeting) {
		assert.Equal(t, m.State.HasSelectedSlot(), m.SelectedTimeSlot != nil, "selectedTimeSlot 不变式: %s", m.State)
		assert.Equal(t, m.State == MeetingCompleted, m.Score != nil)
	}

	m := newTestMeeting(t)
	check(m)
	for _, j := range []Actor{instructor, juryB, juryC} {
		m = apply(t, mm, m, j, SubmitAvailability{Slots: []TimeSlot{slotApr1Morning, slotApr2Noon}})
		check(m)
	}
	m = apply(t, mm, m, student, SelectTimeSlot{Slot: slotApr2Noon})
	check(m)
	m = apply(t, mm, m, manager, ScheduleMeeting{Location: "Hall A"})
	check(m)
	prev := 0
	for _, j := range []Actor{instructor, juryB, juryC} {
		m = apply(t, mm, m, j, SubmitScore{Score: 15})
		assert.Greater(t, len(m.Scores), prev)
		prev = len(m.Scores)
		check(m)
	}
	assert.Equal(t, MeetingCompleted, m.State)
	assert.Equal(t, 15.0, *m.Score)
}
