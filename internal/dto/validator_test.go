package dto

import (
	"testing"

	"github.com/go-playground/validator/v10"

	"thesis-defense/backend/internal/workflow"
)

func newTestValidator(t *testing.T) *validator.Validate {
	t.Helper()
	v := validator.New()
	v.SetTagName("binding")
	if err := registerRules(v, workflow.DefaultPolicy()); err != nil {
		t.Fatalf("registerRules 失败: %v", err)
	}
	return v
}

func TestTimeSlotRequest_Validation(t *testing.T) {
	v := newTestValidator(t)

	tests := []struct {
		name string
		req  TimeSlotRequest
		ok   bool
	}{
		{"合法", TimeSlotRequest{Date: "2025-06-01", TimePeriod: "PERIOD_9_00_10_30"}, true},
		{"日期格式错误", TimeSlotRequest{Date: "2025/06/01", TimePeriod: "PERIOD_9_00_10_30"}, false},
		{"日期不存在", TimeSlotRequest{Date: "2025-02-30", TimePeriod: "PERIOD_9_00_10_30"}, false},
		{"未知时段", TimeSlotRequest{Date: "2025-06-01", TimePeriod: "PERIOD_18_00_19_30"}, false},
		{"缺少时段", TimeSlotRequest{Date: "2025-06-01"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.req)
			if tt.ok && err != nil {
				t.Errorf("期望通过，实际: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("期望校验失败")
			}
		})
	}
}

func TestSubmitScoreRequest_Validation(t *testing.T) {
	v := newTestValidator(t)
	score := func(f float64) *float64 { return &f }

	tests := []struct {
		name  string
		score *float64
		ok    bool
	}{
		{"零分合法", score(0), true},
		{"满分", score(20), true},
		{"步长 0.25", score(17.75), true},
		{"缺少分数", nil, false},
		{"超出上限", score(20.5), false},
		{"负分", score(-1), false},
		{"粒度不符", score(15.1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(SubmitScoreRequest{Score: tt.score})
			if tt.ok && err != nil {
				t.Errorf("期望通过，实际: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("期望校验失败")
			}
		})
	}
}

func TestStateFilters_Validation(t *testing.T) {
	v := newTestValidator(t)

	if err := v.Struct(FormListRequest{State: "ADMIN_APPROVED"}); err != nil {
		t.Errorf("已知表单状态应通过: %v", err)
	}
	if err := v.Struct(FormListRequest{State: "APPROVED"}); err == nil {
		t.Error("未知表单状态应失败")
	}
	if err := v.Struct(FormListRequest{}); err != nil {
		t.Errorf("空状态表示不过滤: %v", err)
	}
	if err := v.Struct(MeetingListRequest{State: "STUDENT_SPECIFIED_TIME"}); err != nil {
		t.Errorf("已知会议状态应通过: %v", err)
	}
	if err := v.Struct(MeetingListRequest{State: "DONE"}); err == nil {
		t.Error("未知会议状态应失败")
	}
}

func TestUpdateJuryRequest_Validation(t *testing.T) {
	v := newTestValidator(t)
	a := "8f6c1f2e-3b1a-4c55-9d7e-2a1b3c4d5e6f"
	b := "1c2d3e4f-5a6b-4c7d-8e9f-0a1b2c3d4e5f"

	if err := v.Struct(UpdateJuryRequest{JuryIDs: []string{a, b}}); err != nil {
		t.Errorf("合法名单应通过: %v", err)
	}
	if err := v.Struct(UpdateJuryRequest{JuryIDs: []string{a, a}}); err == nil {
		t.Error("重复评委应失败")
	}
	if err := v.Struct(UpdateJuryRequest{JuryIDs: []string{"not-a-uuid"}}); err == nil {
		t.Error("非法 ID 应失败")
	}
	if err := v.Struct(UpdateJuryRequest{}); err == nil {
		t.Error("空名单应失败")
	}
}
