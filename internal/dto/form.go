package dto

import (
	"time"

	"thesis-defense/backend/internal/workflow"
)

// ── 论文表单 DTO ──

// CreateFormRequest 学生提交论文表单
type CreateFormRequest struct {
	Title        string `json:"title"         binding:"required,min=10,max=200"`
	AbstractText string `json:"abstract_text" binding:"required,min=50,max=2000"`
	InstructorID string `json:"instructor_id" binding:"required,uuid"`
	FieldID      string `json:"field_id"      binding:"required,uuid"`
}

// UpdateFormRequest 修改表单内容（仅更新非 nil 字段）
type UpdateFormRequest struct {
	Title        *string `json:"title"         binding:"omitempty,min=10,max=200"`
	AbstractText *string `json:"abstract_text" binding:"omitempty,min=50,max=2000"`
	InstructorID *string `json:"instructor_id" binding:"omitempty,uuid"`
	FieldID      *string `json:"field_id"      binding:"omitempty,uuid"`
}

// ApproveFormRequest 审批通过；答辩负责人终审时必须给出评委名单
type ApproveFormRequest struct {
	JuryIDs []string `json:"jury_ids" binding:"omitempty,unique,dive,uuid"`
}

// RejectFormRequest 驳回
type RejectFormRequest struct {
	Reason string `json:"reason" binding:"required,max=1000"`
}

// RevisionRequestRequest 要求修改
type RevisionRequestRequest struct {
	Target  string `json:"target"  binding:"required,oneof=STUDENT INSTRUCTOR ADMIN"`
	Message string `json:"message" binding:"required,max=1000"`
}

// FormListRequest 表单列表查询参数
type FormListRequest struct {
	PaginationRequest
	State string `form:"state" binding:"omitempty,form_state"`
}

// FormResponse 表单详情；allowed_actions 为当前用户可执行的动作
type FormResponse struct {
	ID                   string                    `json:"id"`
	Title                string                    `json:"title"`
	AbstractText         string                    `json:"abstract_text"`
	State                workflow.FormState        `json:"state"`
	Student              *workflow.SimpleUser      `json:"student,omitempty"`
	Instructor           *workflow.SimpleUser      `json:"instructor,omitempty"`
	Field                *FieldResponse            `json:"field,omitempty"`
	RejectionReason      string                    `json:"rejection_reason,omitempty"`
	RevisionMessage      string                    `json:"revision_message,omitempty"`
	RevisionRequestedAt  *time.Time                `json:"revision_requested_at,omitempty"`
	SubmittedAt          *time.Time                `json:"submitted_at,omitempty"`
	InstructorReviewedAt *time.Time                `json:"instructor_reviewed_at,omitempty"`
	AdminReviewedAt      *time.Time                `json:"admin_reviewed_at,omitempty"`
	ManagerReviewedAt    *time.Time                `json:"manager_reviewed_at,omitempty"`
	MeetingID            string                    `json:"meeting_id,omitempty"`
	AllowedActions       []workflow.ActionKind     `json:"allowed_actions"`
	RevisionTargets      []workflow.RevisionTarget `json:"revision_targets,omitempty"`
	CreatedAt            time.Time                 `json:"created_at"`
	UpdatedAt            time.Time                 `json:"updated_at"`
	Version              int                       `json:"version"`
}

// TransitionLogResponse 状态迁移记录
type TransitionLogResponse struct {
	ID        string                 `json:"id"`
	Action    string                 `json:"action"`
	FromState string                 `json:"from_state"`
	ToState   string                 `json:"to_state"`
	Actor     *workflow.SimpleUser   `json:"actor,omitempty"`
	ActorRole string                 `json:"actor_role"`
	Note      string                 `json:"note,omitempty"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
