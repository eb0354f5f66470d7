package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"thesis-defense/backend/internal/dto"
	"thesis-defense/backend/internal/service"
	"thesis-defense/backend/internal/workflow"
)

// ── Mock MeetingService ──

type mockMeetingService struct {
	meeting  *dto.MeetingResponse
	report   *dto.AvailabilityResponse
	calendar []byte
	err      error

	actor      workflow.Actor
	id         string
	slots      []workflow.TimeSlot
	importReq  *dto.ImportAvailabilityRequest
	importBody string
	cancel     *dto.CancelMeetingRequest
	score      float64
}

func (m *mockMeetingService) Get(_ context.Context, actor workflow.Actor, id string) (*dto.MeetingResponse, error) {
	m.actor, m.id = actor, id
	return m.meeting, m.err
}
func (m *mockMeetingService) List(_ context.Context, actor workflow.Actor, _ *dto.MeetingListRequest) ([]dto.MeetingResponse, int64, error) {
	m.actor = actor
	if m.meeting == nil {
		return nil, 0, m.err
	}
	return []dto.MeetingResponse{*m.meeting}, 1, m.err
}
func (m *mockMeetingService) Availability(_ context.Context, actor workflow.Actor, id string) (*dto.AvailabilityResponse, error) {
	m.actor, m.id = actor, id
	return m.report, m.err
}
func (m *mockMeetingService) SubmitAvailability(_ context.Context, actor workflow.Actor, id string, req *dto.SubmitAvailabilityRequest) (*dto.AvailabilityResponse, error) {
	m.actor, m.id = actor, id
	m.slots = req.TimeSlots()
	return m.report, m.err
}
func (m *mockMeetingService) ImportAvailability(_ context.Context, actor workflow.Actor, id string, req *dto.ImportAvailabilityRequest, calendar io.Reader) (*dto.AvailabilityResponse, error) {
	m.actor, m.id = actor, id
	m.importReq = req
	b, _ := io.ReadAll(calendar)
	m.importBody = string(b)
	return m.report, m.err
}
func (m *mockMeetingService) SelectTimeSlot(_ context.Context, actor workflow.Actor, id string, req *dto.SelectTimeSlotRequest) (*dto.MeetingResponse, error) {
	m.actor, m.id = actor, id
	m.slots = []workflow.TimeSlot{req.ToTimeSlot()}
	return m.meeting, m.err
}
func (m *mockMeetingService) Schedule(_ context.Context, actor workflow.Actor, id string, _ *dto.ScheduleMeetingRequest) (*dto.MeetingResponse, error) {
	m.actor, m.id = actor, id
	return m.meeting, m.err
}
func (m *mockMeetingService) SubmitScore(_ context.Context, actor workflow.Actor, id string, req *dto.SubmitScoreRequest) (*dto.MeetingResponse, error) {
	m.actor, m.id = actor, id
	m.score = *req.Score
	return m.meeting, m.err
}
func (m *mockMeetingService) Cancel(_ context.Context, actor workflow.Actor, id string, req *dto.CancelMeetingRequest) (*dto.MeetingResponse, error) {
	m.actor, m.id = actor, id
	m.cancel = req
	return m.meeting, m.err
}
func (m *mockMeetingService) UpdateJury(_ context.Context, actor workflow.Actor, id string, _ *dto.UpdateJuryRequest) (*dto.MeetingResponse, error) {
	m.actor, m.id = actor, id
	return m.meeting, m.err
}
func (m *mockMeetingService) Calendar(_ context.Context, actor workflow.Actor, id string) ([]byte, string, error) {
	m.actor, m.id = actor, id
	return m.calendar, "defense-" + id + ".ics", m.err
}
func (m *mockMeetingService) RemindAwaiting(context.Context) (int, error) {
	return 0, m.err
}

// ═══════════════════════════════════════════════════════════
// MeetingHandler Tests
// ═══════════════════════════════════════════════════════════

func TestMeetingHandler_Get(t *testing.T) {
	mock := &mockMeetingService{meeting: &dto.MeetingResponse{ID: "mtg-1", State: workflow.MeetingScheduled}}
	h := NewMeetingHandler(mock)

	w := serve("GET", "/meetings/:id", withActor("prof-1", workflow.RoleProfessor, h.Get), httptest.NewRequest("GET", "/meetings/mtg-1", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if mock.id != "mtg-1" || mock.actor.Role != workflow.RoleProfessor {
		t.Errorf("unexpected call: id=%s actor=%+v", mock.id, mock.actor)
	}
}

func TestMeetingHandler_List(t *testing.T) {
	mock := &mockMeetingService{meeting: &dto.MeetingResponse{ID: "mtg-1"}}
	h := NewMeetingHandler(mock)

	w := serve("GET", "/meetings", withActor("stu-1", workflow.RoleStudent, h.List), httptest.NewRequest("GET", "/meetings?state=SCHEDULED", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	w = serve("GET", "/meetings", withActor("stu-1", workflow.RoleStudent, h.List), httptest.NewRequest("GET", "/meetings?state=PENDING", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown state, got %d", w.Code)
	}
}

func TestMeetingHandler_UnknownRole(t *testing.T) {
	h := NewMeetingHandler(&mockMeetingService{})

	w := serve("GET", "/meetings/:id", withActor("x-1", workflow.Role("JANITOR"), h.Get), httptest.NewRequest("GET", "/meetings/mtg-1", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestMeetingHandler_SubmitAvailability(t *testing.T) {
	mock := &mockMeetingService{report: &dto.AvailabilityResponse{MeetingID: "mtg-1", State: workflow.MeetingJuriesSelected}}
	h := NewMeetingHandler(mock)

	body := dto.SubmitAvailabilityRequest{Slots: []dto.TimeSlotRequest{
		{Date: "2026-06-01", TimePeriod: "PERIOD_9_00_10_30"},
		{Date: "2026-06-02", TimePeriod: "PERIOD_13_30_15_00"},
	}}
	w := serve("PUT", "/meetings/:id/time-slots", withActor("prof-1", workflow.RoleProfessor, h.SubmitAvailability), jsonRequest("PUT", "/meetings/mtg-1/time-slots", body))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if len(mock.slots) != 2 || mock.slots[0].Date != "2026-06-01" {
		t.Errorf("slots not forwarded: %+v", mock.slots)
	}
}

func TestMeetingHandler_SubmitAvailability_Validation(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
	}{
		{"空列表", dto.SubmitAvailabilityRequest{}},
		{"非法日期", dto.SubmitAvailabilityRequest{Slots: []dto.TimeSlotRequest{{Date: "2026-02-30", TimePeriod: "PERIOD_9_00_10_30"}}}},
		{"非法时段", dto.SubmitAvailabilityRequest{Slots: []dto.TimeSlotRequest{{Date: "2026-06-01", TimePeriod: "08:00-09:00"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewMeetingHandler(&mockMeetingService{})

			w := serve("PUT", "/meetings/:id/time-slots", withActor("prof-1", workflow.RoleProfessor, h.SubmitAvailability), jsonRequest("PUT", "/meetings/mtg-1/time-slots", tt.body))

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
			if resp := parseResponse(w); resp.Code != 15001 {
				t.Errorf("expected code 15001, got %d", resp.Code)
			}
		})
	}
}

const importICS = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nEND:VCALENDAR\r\n"

func TestMeetingHandler_ImportAvailability(t *testing.T) {
	mock := &mockMeetingService{report: &dto.AvailabilityResponse{MeetingID: "mtg-1"}}
	h := NewMeetingHandler(mock)

	req := httptest.NewRequest("PUT", "/meetings/mtg-1/time-slots/ics?from=2026-06-01&to=2026-06-05&include_weekends=true", strings.NewReader(importICS))
	req.Header.Set("Content-Type", calendarContentType)
	w := serve("PUT", "/meetings/:id/time-slots/ics", withActor("prof-1", workflow.RoleProfessor, h.ImportAvailability), req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if mock.importReq.From != "2026-06-01" || mock.importReq.To != "2026-06-05" || !mock.importReq.IncludeWeekends {
		t.Errorf("query not bound: %+v", mock.importReq)
	}
	if mock.importBody != importICS {
		t.Errorf("calendar body not forwarded: %q", mock.importBody)
	}
}

func TestMeetingHandler_ImportAvailability_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		url  string
		body string
	}{
		{"缺少起始日期", "/meetings/mtg-1/time-slots/ics?to=2026-06-05", importICS},
		{"日期格式错误", "/meetings/mtg-1/time-slots/ics?from=06/01/2026&to=2026-06-05", importICS},
		{"空请求体", "/meetings/mtg-1/time-slots/ics?from=2026-06-01&to=2026-06-05", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewMeetingHandler(&mockMeetingService{})

			req := httptest.NewRequest("PUT", tt.url, strings.NewReader(tt.body))
			w := serve("PUT", "/meetings/:id/time-slots/ics", withActor("prof-1", workflow.RoleProfessor, h.ImportAvailability), req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
			if resp := parseResponse(w); resp.Code != 15001 {
				t.Errorf("expected code 15001, got %d", resp.Code)
			}
		})
	}
}

func TestMeetingHandler_SelectTimeSlot(t *testing.T) {
	mock := &mockMeetingService{meeting: &dto.MeetingResponse{ID: "mtg-1", State: workflow.MeetingStudentSpecified}}
	h := NewMeetingHandler(mock)

	body := map[string]string{"date": "2026-06-02", "time_period": "PERIOD_13_30_15_00"}
	w := serve("POST", "/meetings/:id/select-time-slot", withActor("stu-1", workflow.RoleStudent, h.SelectTimeSlot), jsonRequest("POST", "/meetings/mtg-1/select-time-slot", body))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if len(mock.slots) != 1 || mock.slots[0].TimePeriod != workflow.TimePeriod("PERIOD_13_30_15_00") {
		t.Errorf("slot not forwarded: %+v", mock.slots)
	}
}

func TestMeetingHandler_SubmitScore(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"零分合法", `{"score": 0}`, http.StatusOK},
		{"满分", `{"score": 20}`, http.StatusOK},
		{"步长不符", `{"score": 17.3}`, http.StatusBadRequest},
		{"超出范围", `{"score": 21}`, http.StatusBadRequest},
		{"缺少分数", `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockMeetingService{meeting: &dto.MeetingResponse{ID: "mtg-1"}}
			h := NewMeetingHandler(mock)

			req := httptest.NewRequest("POST", "/meetings/mtg-1/scores", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := serve("POST", "/meetings/:id/scores", withActor("prof-1", workflow.RoleProfessor, h.SubmitScore), req)

			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestMeetingHandler_Cancel_WithoutBody(t *testing.T) {
	mock := &mockMeetingService{meeting: &dto.MeetingResponse{ID: "mtg-1", State: workflow.MeetingCanceled}}
	h := NewMeetingHandler(mock)

	w := serve("POST", "/meetings/:id/cancel", withActor("mgr-1", workflow.RoleManager, h.Cancel), httptest.NewRequest("POST", "/meetings/mtg-1/cancel", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if mock.cancel == nil || mock.cancel.Reason != "" {
		t.Errorf("unexpected cancel request: %+v", mock.cancel)
	}
}

func TestMeetingHandler_UpdateJury_Validation(t *testing.T) {
	h := NewMeetingHandler(&mockMeetingService{})

	body := dto.UpdateJuryRequest{JuryIDs: []string{"prof-1"}}
	w := serve("PUT", "/meetings/:id/juries", withActor("mgr-1", workflow.RoleManager, h.UpdateJury), jsonRequest("PUT", "/meetings/mtg-1/juries", body))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestMeetingHandler_Calendar(t *testing.T) {
	mock := &mockMeetingService{calendar: []byte(importICS)}
	h := NewMeetingHandler(mock)

	w := serve("GET", "/meetings/:id/calendar.ics", withActor("stu-1", workflow.RoleStudent, h.Calendar), httptest.NewRequest("GET", "/meetings/mtg-1/calendar.ics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != calendarContentType {
		t.Errorf("unexpected content type %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "defense-mtg-1.ics") {
		t.Errorf("unexpected disposition %q", cd)
	}
	if w.Body.String() != importICS {
		t.Errorf("unexpected body %q", w.Body.String())
	}
}

func TestMeetingHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
	}{
		{"NotFound", service.ErrMeetingNotFound, 404, 15101},
		{"NoPermission", service.ErrNoPermission, 403, 15102},
		{"NotAuthorized", workflow.ErrNotAuthorized, 403, 15103},
		{"Validation", &workflow.ValidationError{Field: "location", Constraint: "不能为空"}, 400, 15104},
		{"InvalidTimeSlot", workflow.ErrInvalidTimeSlot, 400, 15105},
		{"AlreadyScored", workflow.ErrAlreadyScored, 409, 15106},
		{"Terminal", workflow.ErrAlreadyTerminal, 409, 15107},
		{"InvalidTransition", &workflow.TransitionError{State: "SCHEDULED", Action: workflow.ActionKind("SELECT_TIME_SLOT"), Role: workflow.RoleStudent}, 409, 15108},
		{"Concurrent", workflow.ErrConcurrentModification, 409, 15109},
		{"CalendarUnavailable", service.ErrCalendarUnavailable, 409, 15110},
		{"JuryNotProfessor", service.ErrJuryNotProfessor, 400, 15111},
		{"CalendarParse", service.ErrCalendarParse, 400, 15112},
		{"ImportRange", service.ErrImportRangeInvalid, 400, 15113},
		{"NoFreeSlots", service.ErrImportNoFreeSlots, 400, 15114},
		{"Unknown", io.ErrUnexpectedEOF, 500, 50000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewMeetingHandler(&mockMeetingService{err: tt.err})

			w := serve("GET", "/meetings/:id/availability", withActor("mgr-1", workflow.RoleManager, h.Availability), httptest.NewRequest("GET", "/meetings/mtg-1/availability", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.wantCode {
				t.Errorf("expected code %d, got %d", tt.wantCode, resp.Code)
			}
		})
	}
}

// [自证通过] internal/api/handler/meeting_handler_test.go
