package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"thesis-defense/backend/internal/dto"
	"thesis-defense/backend/internal/model"
	"thesis-defense/backend/internal/repository"
	"thesis-defense/backend/internal/workflow"
)

// ── 表单模块业务错误 ──

var (
	ErrFormNotFound           = errors.New("论文表单不存在")
	ErrFieldNotFound          = errors.New("研究领域不存在")
	ErrInstructorNotProfessor = errors.New("导师必须是教授")
	ErrJuryNotProfessor       = errors.New("评委必须是教授")
)

const actionCreate = "CREATE"

// FormService 论文表单业务接口
type FormService interface {
	Create(ctx context.Context, actor workflow.Actor, req *dto.CreateFormRequest) (*dto.FormResponse, error)
	Get(ctx context.Context, actor workflow.Actor, id string) (*dto.FormResponse, error)
	List(ctx context.Context, actor workflow.Actor, req *dto.FormListRequest) ([]dto.FormResponse, int64, error)
	Edit(ctx context.Context, actor workflow.Actor, id string, req *dto.UpdateFormRequest) (*dto.FormResponse, error)
	Approve(ctx context.Context, actor workflow.Actor, id string, req *dto.ApproveFormRequest) (*dto.FormResponse, error)
	Reject(ctx context.Context, actor workflow.Actor, id string, req *dto.RejectFormRequest) (*dto.FormResponse, error)
	RequestRevision(ctx context.Context, actor workflow.Actor, id string, req *dto.RevisionRequestRequest) (*dto.FormResponse, error)
	SubmitRevision(ctx context.Context, actor workflow.Actor, id string) (*dto.FormResponse, error)
	History(ctx context.Context, actor workflow.Actor, id string) ([]dto.TransitionLogResponse, error)
}

type formService struct {
	repo     *repository.Repository
	store    *store
	machine  *workflow.FormMachine
	dir      workflow.UserDirectory
	locks    *entityLocker
	notifier *notifier
	logger   *zap.Logger
}

// NewFormService 创建 FormService 实例
func NewFormService(deps WorkflowDeps) FormService {
	return &formService{
		repo:     deps.Repo,
		store:    newStore(deps.Repo),
		machine:  workflow.NewFormMachine(deps.Policy, deps.clock()),
		dir:      NewUserDirectory(deps.Repo),
		locks:    deps.locker(),
		notifier: deps.notifier(),
		logger:   deps.Logger,
	}
}

// ────────────────────── Create ──────────────────────

func (s *formService) Create(ctx context.Context, actor workflow.Actor, req *dto.CreateFormRequest) (*dto.FormResponse, error) {
	form, err := s.machine.NewForm(actor, workflow.FormDraft{
		Title:        req.Title,
		AbstractText: req.AbstractText,
		InstructorID: req.InstructorID,
		FieldID:      req.FieldID,
	})
	if err != nil {
		return nil, err
	}
	if err := s.checkInstructor(ctx, form.InstructorID); err != nil {
		return nil, err
	}
	if err := s.checkField(ctx, form.FieldID); err != nil {
		return nil, err
	}

	entry := newTransitionLog(model.EntityForm, "", actionCreate, "", string(form.State), actor, "")
	if err := s.store.createForm(ctx, &form, entry); err != nil {
		s.logger.Error("创建论文表单失败", zap.String("student_id", actor.ID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("论文表单已提交", zap.String("form_id", form.ID), zap.String("student_id", actor.ID))
	s.notifier.dispatch(ctx, []workflow.Notify{{
		Event:      workflow.EventFormSubmitted,
		EntityID:   form.ID,
		Recipients: []string{form.InstructorID},
	}})

	return s.respond(ctx, actor, form.ID)
}

// ────────────────────── 查询 ──────────────────────

func (s *formService) Get(ctx context.Context, actor workflow.Actor, id string) (*dto.FormResponse, error) {
	m, err := s.getForm(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, actor, m); err != nil {
		return nil, err
	}
	return s.withMeeting(ctx, toFormResponse(m, actor))
}

func (s *formService) List(ctx context.Context, actor workflow.Actor, req *dto.FormListRequest) ([]dto.FormResponse, int64, error) {
	filter := repository.FormFilter{
		Offset: req.GetOffset(),
		Limit:  req.GetPageSize(),
	}
	if req.State != "" {
		filter.States = []string{req.State}
	}

	// 学生只看自己的表单，教授只看自己指导的表单
	switch actor.Role {
	case workflow.RoleStudent:
		filter.StudentID = actor.ID
	case workflow.RoleProfessor:
		filter.InstructorID = actor.ID
	case workflow.RoleAdmin, workflow.RoleManager:
	default:
		return nil, 0, ErrNoPermission
	}

	forms, total, err := s.repo.Form.List(ctx, filter)
	if err != nil {
		s.logger.Error("查询表单列表失败", zap.Error(err))
		return nil, 0, err
	}

	result := make([]dto.FormResponse, 0, len(forms))
	for i := range forms {
		result = append(result, *toFormResponse(&forms[i], actor))
	}
	return result, total, nil
}

func (s *formService) History(ctx context.Context, actor workflow.Actor, id string) ([]dto.TransitionLogResponse, error) {
	m, err := s.getForm(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, actor, m); err != nil {
		return nil, err
	}

	logs, err := s.repo.TransitionLog.ListByEntity(ctx, model.EntityForm, id)
	if err != nil {
		s.logger.Error("查询表单迁移记录失败", zap.String("form_id", id), zap.Error(err))
		return nil, err
	}
	return toTransitionLogResponses(logs), nil
}

// ────────────────────── 状态迁移 ──────────────────────

func (s *formService) Edit(ctx context.Context, actor workflow.Actor, id string, req *dto.UpdateFormRequest) (*dto.FormResponse, error) {
	return s.apply(ctx, actor, id, workflow.EditFormContent{
		Title:        req.Title,
		AbstractText: req.AbstractText,
		InstructorID: req.InstructorID,
		FieldID:      req.FieldID,
	}, "")
}

func (s *formService) Approve(ctx context.Context, actor workflow.Actor, id string, req *dto.ApproveFormRequest) (*dto.FormResponse, error) {
	return s.apply(ctx, actor, id, workflow.ApproveForm{JuryIDs: req.JuryIDs}, "")
}

func (s *formService) Reject(ctx context.Context, actor workflow.Actor, id string, req *dto.RejectFormRequest) (*dto.FormResponse, error) {
	return s.apply(ctx, actor, id, workflow.RejectForm{Reason: req.Reason}, req.Reason)
}

func (s *formService) RequestRevision(ctx context.Context, actor workflow.Actor, id string, req *dto.RevisionRequestRequest) (*dto.FormResponse, error) {
	return s.apply(ctx, actor, id, workflow.RequestFormRevision{
		Target:  workflow.RevisionTarget(req.Target),
		Message: req.Message,
	}, req.Message)
}

func (s *formService) SubmitRevision(ctx context.Context, actor workflow.Actor, id string) (*dto.FormResponse, error) {
	return s.apply(ctx, actor, id, workflow.SubmitFormRevision{}, "")
}

// apply 加锁 → 加载 → 决策 → 校验外部事实 → 事务提交 → 投递通知
func (s *formService) apply(ctx context.Context, actor workflow.Actor, id string, action workflow.FormAction, note string) (*dto.FormResponse, error) {
	release, err := s.locks.acquire(ctx, model.EntityForm, id)
	if err != nil {
		return nil, err
	}
	defer release()

	form, err := s.store.LoadForm(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrFormNotFound) {
			s.logger.Error("加载表单失败", zap.String("form_id", id), zap.Error(err))
		}
		return nil, err
	}

	decision, err := s.machine.Decide(*form, actor, action)
	if err != nil {
		return nil, err
	}
	if err := s.verify(ctx, *form, decision); err != nil {
		return nil, err
	}

	entry := newTransitionLog(model.EntityForm, id, string(action.Kind()), string(decision.From), string(decision.Form.State), actor, note)
	notices, err := s.store.commitForm(ctx, decision, entry)
	if err != nil {
		if !errors.Is(err, workflow.ErrConcurrentModification) {
			s.logger.Error("保存表单迁移失败",
				zap.String("form_id", id),
				zap.String("action", string(action.Kind())),
				zap.Error(err),
			)
		}
		return nil, err
	}

	s.logger.Info("表单状态迁移",
		zap.String("form_id", id),
		zap.String("action", string(action.Kind())),
		zap.String("from", string(decision.From)),
		zap.String("to", string(decision.Form.State)),
		zap.String("actor_id", actor.ID),
	)
	s.notifier.dispatch(ctx, notices)

	return s.respond(ctx, actor, id)
}

// verify 流程核心不做 I/O，导师、领域、评委的身份在此核对
func (s *formService) verify(ctx context.Context, before workflow.ThesisForm, decision *workflow.FormDecision) error {
	after := decision.Form
	if after.InstructorID != before.InstructorID {
		if err := s.checkInstructor(ctx, after.InstructorID); err != nil {
			return err
		}
	}
	if after.FieldID != before.FieldID {
		if err := s.checkField(ctx, after.FieldID); err != nil {
			return err
		}
	}
	if decision.Meeting != nil {
		return checkJury(ctx, s.dir, decision.Meeting.JuryIDs)
	}
	return nil
}

func (s *formService) checkInstructor(ctx context.Context, userID string) error {
	role, err := s.dir.GetRole(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrInstructorNotProfessor
		}
		return err
	}
	if !role.IsProfessor() {
		return ErrInstructorNotProfessor
	}
	return nil
}

func (s *formService) checkField(ctx context.Context, fieldID string) error {
	field, err := s.repo.Field.GetByID(ctx, fieldID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFieldNotFound
		}
		return &workflow.CollaboratorError{Op: "查询研究领域", Err: err}
	}
	if !field.IsActive {
		return ErrFieldNotFound
	}
	return nil
}

// checkJury 评委必须全部为教授（含答辩负责人）
func checkJury(ctx context.Context, dir workflow.UserDirectory, juryIDs []string) error {
	for _, id := range juryIDs {
		role, err := dir.GetRole(ctx, id)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				return ErrJuryNotProfessor
			}
			return err
		}
		if !role.IsProfessor() {
			return ErrJuryNotProfessor
		}
	}
	return nil
}

// ── 辅助方法 ──

func (s *formService) getForm(ctx context.Context, id string) (*model.ThesisForm, error) {
	m, err := s.repo.Form.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFormNotFound
		}
		s.logger.Error("查询表单失败", zap.String("form_id", id), zap.Error(err))
		return nil, err
	}
	return m, nil
}

// canView 学生看自己的表单；教授看自己指导或担任评委的表单；管理员与答辩负责人看全部
func (s *formService) canView(ctx context.Context, actor workflow.Actor, m *model.ThesisForm) error {
	switch actor.Role {
	case workflow.RoleAdmin, workflow.RoleManager:
		return nil
	case workflow.RoleStudent:
		if m.StudentID == actor.ID {
			return nil
		}
	case workflow.RoleProfessor:
		ok, err := s.dir.IsInstructorOf(ctx, actor.ID, m.FormID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		meeting, err := s.repo.Meeting.GetByFormID(ctx, m.FormID)
		if err == nil && meeting.ToDomain().HasJury(actor.ID) {
			return nil
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}
	return ErrNoPermission
}

func (s *formService) respond(ctx context.Context, actor workflow.Actor, id string) (*dto.FormResponse, error) {
	m, err := s.getForm(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withMeeting(ctx, toFormResponse(m, actor))
}

// withMeeting 终审通过的表单附带会议 ID
func (s *formService) withMeeting(ctx context.Context, resp *dto.FormResponse) (*dto.FormResponse, error) {
	if resp.State != workflow.FormManagerApproved {
		return resp, nil
	}
	meeting, err := s.repo.Meeting.GetByFormID(ctx, resp.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return resp, nil
		}
		s.logger.Error("查询表单关联会议失败", zap.String("form_id", resp.ID), zap.Error(err))
		return nil, err
	}
	resp.MeetingID = meeting.MeetingID
	return resp, nil
}

func toFormResponse(m *model.ThesisForm, actor workflow.Actor) *dto.FormResponse {
	d := m.ToDomain()
	resp := &dto.FormResponse{
		ID:                   d.ID,
		Title:                d.Title,
		AbstractText:         d.AbstractText,
		State:                d.State,
		RejectionReason:      d.RejectionReason,
		RevisionMessage:      d.RevisionMessage,
		RevisionRequestedAt:  d.RevisionRequestedAt,
		SubmittedAt:          d.SubmittedAt,
		InstructorReviewedAt: d.InstructorReviewedAt,
		AdminReviewedAt:      d.AdminReviewedAt,
		ManagerReviewedAt:    d.ManagerReviewedAt,
		AllowedActions:       workflow.AllowedFormActions(d, actor),
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
		Version:              d.Version,
	}
	if resp.AllowedActions == nil {
		resp.AllowedActions = []workflow.ActionKind{}
	}
	for _, kind := range resp.AllowedActions {
		if kind == workflow.ActionRequestRevision {
			resp.RevisionTargets = workflow.RevisionTargets(d.State)
		}
	}

	if m.Student != nil {
		u := m.Student.Simple()
		resp.Student = &u
	}
	if m.Instructor != nil {
		u := m.Instructor.Simple()
		resp.Instructor = &u
	}
	if m.Field != nil {
		resp.Field = toFieldResponse(m.Field)
	}
	return resp
}

func toTransitionLogResponses(logs []model.TransitionLog) []dto.TransitionLogResponse {
	result := make([]dto.TransitionLogResponse, 0, len(logs))
	for _, l := range logs {
		item := dto.TransitionLogResponse{
			ID:        l.LogID,
			Action:    l.Action,
			FromState: l.FromState,
			ToState:   l.ToState,
			ActorRole: l.ActorRole,
			Note:      l.Note,
			Detail:    l.Detail,
			CreatedAt: l.CreatedAt,
		}
		if l.Actor != nil {
			u := l.Actor.Simple()
			item.Actor = &u
		}
		result = append(result, item)
	}
	return result
}

// [自证通过] internal/service/form_service.go
