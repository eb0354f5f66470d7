package service

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"thesis-defense/backend/config"
	"thesis-defense/backend/internal/dto"
	"thesis-defense/backend/internal/model"
	"thesis-defense/backend/internal/repository"
	"thesis-defense/backend/internal/workflow"
)

// ── 会议模块业务错误 ──

var (
	ErrMeetingNotFound     = errors.New("答辩会议不存在")
	ErrCalendarUnavailable = errors.New("会议尚未定档，无法生成日历")
)

// MeetingService 答辩会议业务接口
type MeetingService interface {
	Get(ctx context.Context, actor workflow.Actor, id string) (*dto.MeetingResponse, error)
	List(ctx context.Context, actor workflow.Actor, req *dto.MeetingListRequest) ([]dto.MeetingResponse, int64, error)
	Availability(ctx context.Context, actor workflow.Actor, id string) (*dto.AvailabilityResponse, error)
	SubmitAvailability(ctx context.Context, actor workflow.Actor, id string, req *dto.SubmitAvailabilityRequest) (*dto.AvailabilityResponse, error)
	// ImportAvailability 解析评委的忙碌日历，以范围内的空闲时段整体覆盖其可用时间
	ImportAvailability(ctx context.Context, actor workflow.Actor, id string, req *dto.ImportAvailabilityRequest, calendar io.Reader) (*dto.AvailabilityResponse, error)
	SelectTimeSlot(ctx context.Context, actor workflow.Actor, id string, req *dto.SelectTimeSlotRequest) (*dto.MeetingResponse, error)
	Schedule(ctx context.Context, actor workflow.Actor, id string, req *dto.ScheduleMeetingRequest) (*dto.MeetingResponse, error)
	SubmitScore(ctx context.Context, actor workflow.Actor, id string, req *dto.SubmitScoreRequest) (*dto.MeetingResponse, error)
	Cancel(ctx context.Context, actor workflow.Actor, id string, req *dto.CancelMeetingRequest) (*dto.MeetingResponse, error)
	UpdateJury(ctx context.Context, actor workflow.Actor, id string, req *dto.UpdateJuryRequest) (*dto.MeetingResponse, error)
	Calendar(ctx context.Context, actor workflow.Actor, id string) ([]byte, string, error)
	// RemindAwaiting 为仍有评委未提交时间段的会议发布提醒事件，返回提醒的会议数
	RemindAwaiting(ctx context.Context) (int, error)
}

type meetingService struct {
	repo     *repository.Repository
	store    *store
	machine  *workflow.MeetingMachine
	dir      workflow.UserDirectory
	locks    *entityLocker
	notifier *notifier
	server   config.ServerConfig
	clock    workflow.Clock
	logger   *zap.Logger
}

// NewMeetingService 创建 MeetingService 实例
func NewMeetingService(deps WorkflowDeps, server config.ServerConfig) MeetingService {
	return &meetingService{
		repo:     deps.Repo,
		store:    newStore(deps.Repo),
		machine:  workflow.NewMeetingMachine(deps.Policy, deps.clock()),
		dir:      NewUserDirectory(deps.Repo),
		locks:    deps.locker(),
		notifier: deps.notifier(),
		server:   server,
		clock:    deps.clock(),
		logger:   deps.Logger,
	}
}

// ────────────────────── 查询 ──────────────────────

func (s *meetingService) Get(ctx context.Context, actor workflow.Actor, id string) (*dto.MeetingResponse, error) {
	m, err := s.getMeeting(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canViewMeeting(actor, m); err != nil {
		return nil, err
	}
	return toMeetingResponse(m, actor), nil
}

func (s *meetingService) List(ctx context.Context, actor workflow.Actor, req *dto.MeetingListRequest) ([]dto.MeetingResponse, int64, error) {
	filter := repository.MeetingFilter{
		Offset: req.GetOffset(),
		Limit:  req.GetPageSize(),
	}
	if req.State != "" {
		filter.States = []string{req.State}
	}

	switch actor.Role {
	case workflow.RoleStudent:
		filter.StudentID = actor.ID
	case workflow.RoleProfessor:
		filter.JuryID = actor.ID
	case workflow.RoleAdmin, workflow.RoleManager:
	default:
		return nil, 0, ErrNoPermission
	}

	meetings, total, err := s.repo.Meeting.List(ctx, filter)
	if err != nil {
		s.logger.Error("查询会议列表失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.MeetingResponse, 0, len(meetings))
	for i := range meetings {
		result = append(result, *toMeetingResponse(&meetings[i], actor))
	}
	return result, total, nil
}

func (s *meetingService) Availability(ctx context.Context, actor workflow.Actor, id string) (*dto.AvailabilityResponse, error) {
	m, err := s.getMeeting(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canViewMeeting(actor, m); err != nil {
		return nil, err
	}
	d := m.ToDomain()
	return &dto.AvailabilityResponse{MeetingID: d.ID, State: d.State, AvailabilityReport: d.Report()}, nil
}

// ────────────────────── 状态迁移 ──────────────────────

func (s *meetingService) SubmitAvailability(ctx context.Context, actor workflow.Actor, id string, req *dto.SubmitAvailabilityRequest) (*dto.AvailabilityResponse, error) {
	return s.submitSlots(ctx, actor, id, req.TimeSlots())
}

func (s *meetingService) submitSlots(ctx context.Context, actor workflow.Actor, id string, slots []workflow.TimeSlot) (*dto.AvailabilityResponse, error) {
	decision, err := s.apply(ctx, actor, id, workflow.SubmitAvailability{Slots: slots}, "")
	if err != nil {
		return nil, err
	}
	return &dto.AvailabilityResponse{
		MeetingID:          decision.Meeting.ID,
		State:              decision.Meeting.State,
		AvailabilityReport: decision.Report,
	}, nil
}

func (s *meetingService) SelectTimeSlot(ctx context.Context, actor workflow.Actor, id string, req *dto.SelectTimeSlotRequest) (*dto.MeetingResponse, error) {
	return s.applyAndRespond(ctx, actor, id, workflow.SelectTimeSlot{Slot: req.ToTimeSlot()}, "")
}

func (s *meetingService) Schedule(ctx context.Context, actor workflow.Actor, id string, req *dto.ScheduleMeetingRequest) (*dto.MeetingResponse, error) {
	return s.applyAndRespond(ctx, actor, id, workflow.ScheduleMeeting{Location: req.Location}, req.Location)
}

func (s *meetingService) SubmitScore(ctx context.Context, actor workflow.Actor, id string, req *dto.SubmitScoreRequest) (*dto.MeetingResponse, error) {
	var score float64
	if req.Score != nil {
		score = *req.Score
	}
	return s.applyAndRespond(ctx, actor, id, workflow.SubmitScore{Score: score}, "")
}

func (s *meetingService) Cancel(ctx context.Context, actor workflow.Actor, id string, req *dto.CancelMeetingRequest) (*dto.MeetingResponse, error) {
	return s.applyAndRespond(ctx, actor, id, workflow.CancelMeeting{Reason: req.Reason}, req.Reason)
}

func (s *meetingService) UpdateJury(ctx context.Context, actor workflow.Actor, id string, req *dto.UpdateJuryRequest) (*dto.MeetingResponse, error) {
	return s.applyAndRespond(ctx, actor, id, workflow.UpdateJury{JuryIDs: req.JuryIDs}, "")
}

func (s *meetingService) applyAndRespond(ctx context.Context, actor workflow.Actor, id string, action workflow.MeetingAction, note string) (*dto.MeetingResponse, error) {
	if _, err := s.apply(ctx, actor, id, action, note); err != nil {
		return nil, err
	}
	m, err := s.getMeeting(ctx, id)
	if err != nil {
		return nil, err
	}
	return toMeetingResponse(m, actor), nil
}

// apply 加锁 → 加载 → 决策 → 事务提交 → 投递通知
func (s *meetingService) apply(ctx context.Context, actor workflow.Actor, id string, action workflow.MeetingAction, note string) (*workflow.MeetingDecision, error) {
	release, err := s.locks.acquire(ctx, model.EntityMeeting, id)
	if err != nil {
		return nil, err
	}
	defer release()

	meeting, err := s.store.LoadMeeting(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrMeetingNotFound) {
			s.logger.Error("加载会议失败", zap.String("meeting_id", id), zap.Error(err))
		}
		return nil, err
	}

	decision, err := s.machine.Decide(*meeting, actor, action)
	if err != nil {
		return nil, err
	}
	if _, ok := action.(workflow.UpdateJury); ok {
		if err := checkJury(ctx, s.dir, decision.Meeting.JuryIDs); err != nil {
			return nil, err
		}
	}

	entry := newTransitionLog(model.EntityMeeting, id, string(action.Kind()), string(decision.From), string(decision.Meeting.State), actor, note)
	entry.Detail = meetingLogDetail(action)

	notices, err := s.store.commitMeeting(ctx, decision, entry)
	if err != nil {
		if !errors.Is(err, workflow.ErrConcurrentModification) {
			s.logger.Error("保存会议迁移失败",
				zap.String("meeting_id", id),
				zap.String("action", string(action.Kind())),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.logger.Info("会议状态迁移",
		zap.String("meeting_id", id),
		zap.String("action", string(action.Kind())),
		zap.String("from", string(decision.From)),
		zap.String("to", string(decision.Meeting.State)),
		zap.String("actor_id", actor.ID),
	)
	s.notifier.dispatch(ctx, notices)
	return decision, nil
}

// ────────────────────── 提醒 ──────────────────────

func (s *meetingService) RemindAwaiting(ctx context.Context) (int, error) {
	meetings, _, err := s.repo.Meeting.List(ctx, repository.MeetingFilter{
		States: []string{string(workflow.MeetingJuriesSelected), string(workflow.MeetingJuriesSpecifiedTime)},
	})
	if err != nil {
		s.logger.Error("查询待提交时间段的会议失败", zap.Error(err))
		return 0, err
	}

	var notices []workflow.Notify
	for i := range meetings {
		report := meetings[i].ToDomain().Report()
		if len(report.Awaiting) == 0 {
			continue
		}
		notices = append(notices, workflow.Notify{
			Event:      workflow.EventAvailabilityReminder,
			EntityID:   meetings[i].MeetingID,
			Recipients: report.Awaiting,
		})
	}
	s.notifier.dispatch(ctx, notices)
	return len(notices), nil
}

// ── 辅助方法 ──

func (s *meetingService) getMeeting(ctx context.Context, id string) (*model.Meeting, error) {
	m, err := s.repo.Meeting.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMeetingNotFound
		}
		s.logger.Error("查询会议失败", zap.String("meeting_id", id), zap.Error(err))
		return nil, err
	}
	return m, nil
}

// canViewMeeting 学生看自己的会议；评委看自己参与的会议；管理员与答辩负责人看全部
func canViewMeeting(actor workflow.Actor, m *model.Meeting) error {
	switch actor.Role {
	case workflow.RoleAdmin, workflow.RoleManager:
		return nil
	case workflow.RoleStudent:
		if m.StudentID == actor.ID {
			return nil
		}
	case workflow.RoleProfessor:
		for _, j := range m.Juries {
			if j.JuryID == actor.ID {
				return nil
			}
		}
	}
	return ErrNoPermission
}

func meetingLogDetail(action workflow.MeetingAction) map[string]interface{} {
	switch a := action.(type) {
	case workflow.SubmitAvailability:
		return map[string]interface{}{"slots": len(a.Slots)}
	case workflow.SelectTimeSlot:
		return map[string]interface{}{"date": a.Slot.Date, "time_period": string(a.Slot.TimePeriod)}
	case workflow.SubmitScore:
		return map[string]interface{}{"score": a.Score}
	case workflow.UpdateJury:
		return map[string]interface{}{"jury_ids": a.JuryIDs}
	}
	return nil
}

func toMeetingResponse(m *model.Meeting, actor workflow.Actor) *dto.MeetingResponse {
	d := m.ToDomain()
	resp := &dto.MeetingResponse{
		ID:               d.ID,
		FormID:           d.FormID,
		State:            d.State,
		Juries:           make([]dto.JuryMemberResponse, 0, len(d.JuryIDs)),
		Location:         d.Location,
		SelectedTimeSlot: d.SelectedTimeSlot,
		Score:            d.Score,
		CancelReason:     d.CancelReason,
		AllowedActions:   workflow.AllowedMeetingActions(d, actor),
		CreatedAt:        d.CreatedAt,
		ScheduledAt:      d.ScheduledAt,
		CompletedAt:      d.CompletedAt,
		CanceledAt:       d.CanceledAt,
		UpdatedAt:        d.UpdatedAt,
		Version:          d.Version,
	}
	if resp.AllowedActions == nil {
		resp.AllowedActions = []workflow.ActionKind{}
	}
	if m.Form != nil {
		resp.Title = m.Form.Title
		if m.Form.Student != nil {
			u := m.Form.Student.Simple()
			resp.Student = &u
		}
	}

	seeAllScores := actor.Role == workflow.RoleAdmin || actor.Role == workflow.RoleManager
	report := d.Report()
	submitted := make(map[string]bool, len(report.Submitted))
	for _, id := range report.Submitted {
		submitted[id] = true
	}
	users := make(map[string]*model.User, len(m.Juries))
	for _, j := range m.Juries {
		users[j.JuryID] = j.Jury
	}
	for _, juryID := range d.JuryIDs {
		member := dto.JuryMemberResponse{
			SimpleUser:            workflow.SimpleUser{ID: juryID},
			IsInstructor:          juryID == d.InstructorID,
			AvailabilitySubmitted: submitted[juryID],
		}
		if u := users[juryID]; u != nil {
			member.SimpleUser = u.Simple()
		}
		if score, ok := d.Scores[juryID]; ok {
			member.Scored = true
			if seeAllScores || actor.ID == juryID {
				v := score
				member.Score = &v
			}
		}
		resp.Juries = append(resp.Juries, member)
	}
	return resp
}

// [自证通过] internal/service/meeting_service.go
