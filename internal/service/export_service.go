package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"thesis-defense/backend/internal/model"
	"thesis-defense/backend/internal/repository"
	"thesis-defense/backend/internal/workflow"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoMeetings   = errors.New("暂无可导出的答辩会议")
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 设计说明：
//   - 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
//   - Sheet "答辩安排"：每场会议一行（学生、题目、状态、时间、地点、评委、成绩）
//   - Sheet "评委评分"：每位评委一行，未评分显示 "-"
type ExportService interface {
	// ExportMeetings 导出答辩会议为 Excel；state 为空时导出全部
	ExportMeetings(ctx context.Context, state string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	clock  workflow.Clock
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, clock workflow.Clock, logger *zap.Logger) ExportService {
	if clock == nil {
		clock = workflow.SystemClock
	}
	return &exportService{repo: repo, clock: clock, logger: logger}
}

var meetingStateNames = map[workflow.MeetingState]string{
	workflow.MeetingJuriesSelected:      "待提交可用时间",
	workflow.MeetingJuriesSpecifiedTime: "评委已提交时间",
	workflow.MeetingStudentSpecified:    "学生已选时间",
	workflow.MeetingScheduled:           "已定档",
	workflow.MeetingCompleted:           "已完成",
	workflow.MeetingCanceled:            "已取消",
}

// ═══════════════════════════════════════════════════════════
// ExportMeetings 导出答辩安排为 Excel
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportMeetings(ctx context.Context, state string) (*bytes.Buffer, string, error) {
	filter := repository.MeetingFilter{}
	if state != "" {
		filter.States = []string{state}
	}
	meetings, _, err := s.repo.Meeting.List(ctx, filter)
	if err != nil {
		s.logger.Error("查询答辩会议失败", zap.Error(err))
		return nil, "", err
	}
	if len(meetings) == 0 {
		return nil, "", ErrExportNoMeetings
	}

	// 已定档的按日期 + 时段排序，未定档的排在后面
	sort.SliceStable(meetings, func(i, j int) bool {
		a, b := meetings[i].ToDomain(), meetings[j].ToDomain()
		switch {
		case a.SelectedTimeSlot == nil:
			return false
		case b.SelectedTimeSlot == nil:
			return true
		default:
			return a.SelectedTimeSlot.Less(*b.SelectedTimeSlot)
		}
	})

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	if err := s.writeScheduleSheet(f, meetings, headerStyle); err != nil {
		s.logger.Error("写入答辩安排失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	if err := s.writeScoreSheet(f, meetings, headerStyle); err != nil {
		s.logger.Error("写入评委评分失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}
	// 删除默认 Sheet1
	f.DeleteSheet("Sheet1")

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("答辩安排_%s.xlsx", s.clock.Now().Format("20060102"))
	return buf, filename, nil
}

func (s *exportService) writeScheduleSheet(f *excelize.File, meetings []model.Meeting, headerStyle int) error {
	const sheet = "答辩安排"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)

	headers := []string{"学生", "论文题目", "状态", "日期", "时段", "地点", "评委", "成绩"}
	widths := []float64{12, 40, 16, 12, 14, 20, 30, 8}
	for i, h := range headers {
		col := colName(i)
		f.SetColWidth(sheet, col, col, widths[i])
		f.SetCellValue(sheet, cell(col, 1), h)
	}
	f.SetCellStyle(sheet, "A1", cell(colName(len(headers)-1), 1), headerStyle)

	row := 2
	for i := range meetings {
		m := &meetings[i]
		d := m.ToDomain()

		student, title := "-", "-"
		if m.Form != nil {
			title = m.Form.Title
			if m.Form.Student != nil {
				student = m.Form.Student.Name
			}
		}
		date, period := "-", "-"
		if d.SelectedTimeSlot != nil {
			date = d.SelectedTimeSlot.Date
			period = d.SelectedTimeSlot.TimePeriod.Label()
		}
		location := d.Location
		if location == "" {
			location = "-"
		}

		values := []interface{}{student, title, meetingStateNames[d.State], date, period, location, strings.Join(juryNames(m), "、"), "-"}
		if d.Score != nil {
			values[7] = *d.Score
		}
		for c, v := range values {
			f.SetCellValue(sheet, cell(colName(c), row), v)
		}
		row++
	}
	return nil
}

func (s *exportService) writeScoreSheet(f *excelize.File, meetings []model.Meeting, headerStyle int) error {
	const sheet = "评委评分"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	headers := []string{"学生", "论文题目", "评委", "是否导师", "评分"}
	widths := []float64{12, 40, 12, 10, 8}
	for i, h := range headers {
		col := colName(i)
		f.SetColWidth(sheet, col, col, widths[i])
		f.SetCellValue(sheet, cell(col, 1), h)
	}
	f.SetCellStyle(sheet, "A1", cell(colName(len(headers)-1), 1), headerStyle)

	row := 2
	for i := range meetings {
		m := &meetings[i]
		d := m.ToDomain()
		student, title := "-", "-"
		if m.Form != nil {
			title = m.Form.Title
			if m.Form.Student != nil {
				student = m.Form.Student.Name
			}
		}
		names := juryNameIndex(m)
		for _, juryID := range d.JuryIDs {
			instructor := "否"
			if juryID == d.InstructorID {
				instructor = "是"
			}
			var score interface{} = "-"
			if v, ok := d.Scores[juryID]; ok {
				score = v
			}
			values := []interface{}{student, title, names[juryID], instructor, score}
			for c, v := range values {
				f.SetCellValue(sheet, cell(colName(c), row), v)
			}
			row++
		}
	}
	return nil
}

// ── 辅助函数 ──

func juryNameIndex(m *model.Meeting) map[string]string {
	names := make(map[string]string, len(m.Juries))
	for _, j := range m.Juries {
		if j.Jury != nil {
			names[j.JuryID] = j.Jury.Name
		} else {
			names[j.JuryID] = j.JuryID
		}
	}
	return names
}

func juryNames(m *model.Meeting) []string {
	d := m.ToDomain()
	index := juryNameIndex(m)
	out := make([]string, 0, len(d.JuryIDs))
	for _, id := range d.JuryIDs {
		out = append(out, index[id])
	}
	return out
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// [自证通过] internal/service/export_service.go
