package workflow

import (
	"context"
	"time"
)

// UserDirectory 用户目录（由服务层基于用户表实现）
type UserDirectory interface {
	GetRole(ctx context.Context, userID string) (Role, error)
	IsInstructorOf(ctx context.Context, userID, formID string) (bool, error)
	ListProfessors(ctx context.Context) ([]SimpleUser, error)
}

// Persistence 表单与会议的持久化，Save* 必须按 Version 做乐观锁校验，
// 冲突时返回 ErrConcurrentModification。
type Persistence interface {
	LoadForm(ctx context.Context, id string) (*ThesisForm, error)
	SaveForm(ctx context.Context, form *ThesisForm) error
	LoadMeeting(ctx context.Context, id string) (*Meeting, error)
	SaveMeeting(ctx context.Context, meeting *Meeting) error
	// SaveFormAndCreateMeeting 原子地保存表单并创建会议
	SaveFormAndCreateMeeting(ctx context.Context, form *ThesisForm, meeting *Meeting) error
}

// Clock 可注入时钟
type Clock interface {
	Now() time.Time
}

// ClockFunc 函数适配为 Clock
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock 系统时钟（UTC）
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })
