package workflow

import (
	"errors"
	"fmt"
)

// ── 工作流错误分类 ──
//
// 所有失败均以返回值形式给出，调用方用 errors.Is 判断类别。

var (
	ErrInvalidTransition      = errors.New("当前状态不允许该操作")
	ErrValidation             = errors.New("参数校验失败")
	ErrNotAuthorized          = errors.New("无权执行该操作")
	ErrAlreadyScored          = errors.New("该评委已提交评分")
	ErrAlreadyTerminal        = errors.New("流程已结束，不可再变更")
	ErrInvalidTimeSlot        = errors.New("所选时间段不在可选范围内")
	ErrConcurrentModification = errors.New("数据已被其他操作修改，请刷新后重试")
	ErrCollaborator           = errors.New("外部依赖调用失败")
)

// TransitionError 非法状态迁移：(当前状态, 动作, 角色) 不在迁移表中
type TransitionError struct {
	State  string
	Action ActionKind
	Role   Role
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("状态 %s 下角色 %s 不能执行 %s", e.State, e.Role, e.Action)
}

// Is 使 errors.Is(err, ErrInvalidTransition) 成立
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ValidationError 载荷内容不满足约束
type ValidationError struct {
	Field      string
	Constraint string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("字段 %s 校验失败: %s", e.Field, e.Constraint)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// CollaboratorError 包装持久化 / 用户目录等外部调用的失败
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CollaboratorError) Is(target error) bool {
	return target == ErrCollaborator
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

func invalidTransition(state string, action ActionKind, role Role) error {
	return &TransitionError{State: state, Action: action, Role: role}
}

func invalidField(field, constraint string) error {
	return &ValidationError{Field: field, Constraint: constraint}
}

func notAuthorized(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotAuthorized, fmt.Sprintf(format, args...))
}
