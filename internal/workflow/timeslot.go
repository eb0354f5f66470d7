package workflow

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DateLayout 时间段日期格式
const DateLayout = "2006-01-02"

// TimePeriod 固定的 5 个答辩时段
type TimePeriod string

const (
	Period0730To0900 TimePeriod = "PERIOD_7_30_9_00"
	Period0900To1030 TimePeriod = "PERIOD_9_00_10_30"
	Period1030To1200 TimePeriod = "PERIOD_10_30_12_00"
	Period1330To1500 TimePeriod = "PERIOD_13_30_15_00"
	Period1530To1700 TimePeriod = "PERIOD_15_30_17_00"
)

// periodBounds 时段起止（时, 分）
var periodBounds = map[TimePeriod][4]int{
	Period0730To0900: {7, 30, 9, 0},
	Period0900To1030: {9, 0, 10, 30},
	Period1030To1200: {10, 30, 12, 0},
	Period1330To1500: {13, 30, 15, 0},
	Period1530To1700: {15, 30, 17, 0},
}

// Periods 按一天内先后顺序返回全部时段
func Periods() []TimePeriod {
	return []TimePeriod{Period0730To0900, Period0900To1030, Period1030To1200, Period1330To1500, Period1530To1700}
}

// Valid 是否为已知时段
func (p TimePeriod) Valid() bool {
	_, ok := periodBounds[p]
	return ok
}

// Label 形如 "07:30-09:00" 的展示文本，未知时段原样返回
func (p TimePeriod) Label() string {
	b, ok := periodBounds[p]
	if !ok {
		return string(p)
	}
	return fmt.Sprintf("%02d:%02d-%02d:%02d", b[0], b[1], b[2], b[3])
}

func (p TimePeriod) order() int {
	for i, q := range Periods() {
		if q == p {
			return i
		}
	}
	return len(periodBounds)
}

// TimeSlot (日期, 时段) 值类型，两字段都相等即相等，可直接作为 map 键
type TimeSlot struct {
	Date       string     `json:"date"`
	TimePeriod TimePeriod `json:"time_period"`
}

// NewTimeSlot 校验并规范化日期
func NewTimeSlot(date string, period TimePeriod) (TimeSlot, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return TimeSlot{}, invalidField("date", "日期格式必须为 YYYY-MM-DD")
	}
	if !period.Valid() {
		return TimeSlot{}, invalidField("time_period", "未知时段 "+string(period))
	}
	return TimeSlot{Date: d.Format(DateLayout), TimePeriod: period}, nil
}

// Validate 校验时间段字段
func (s TimeSlot) Validate() error {
	_, err := NewTimeSlot(s.Date, s.TimePeriod)
	return err
}

// Start 时段在指定时区的开始时间
func (s TimeSlot) Start(loc *time.Location) (time.Time, error) {
	return s.at(loc, 0)
}

// End 时段在指定时区的结束时间
func (s TimeSlot) End(loc *time.Location) (time.Time, error) {
	return s.at(loc, 2)
}

func (s TimeSlot) at(loc *time.Location, offset int) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	d, err := time.ParseInLocation(DateLayout, s.Date, loc)
	if err != nil {
		return time.Time{}, invalidField("date", "日期格式必须为 YYYY-MM-DD")
	}
	b, ok := periodBounds[s.TimePeriod]
	if !ok {
		return time.Time{}, invalidField("time_period", "未知时段 "+string(s.TimePeriod))
	}
	return time.Date(d.Year(), d.Month(), d.Day(), b[offset], b[offset+1], 0, 0, loc), nil
}

// Less 先按日期再按时段排序
func (s TimeSlot) Less(o TimeSlot) bool {
	if s.Date != o.Date {
		return s.Date < o.Date
	}
	return s.TimePeriod.order() < o.TimePeriod.order()
}

// NormalizeSlots 校验、去重并排序
func NormalizeSlots(slots []TimeSlot) ([]TimeSlot, error) {
	seen := make(map[TimeSlot]bool, len(slots))
	out := make([]TimeSlot, 0, len(slots))
	for _, s := range slots {
		n, err := NewTimeSlot(s.Date, s.TimePeriod)
		if err != nil {
			return nil, err
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	SortSlots(out)
	return out, nil
}

// SortSlots 原地排序
func SortSlots(slots []TimeSlot) {
	sort.Slice(slots, func(i, j int) bool { return slots[i].Less(slots[j]) })
}

// ContainsSlot 判断列表是否包含指定时间段
func ContainsSlot(slots []TimeSlot, target TimeSlot) bool {
	for _, s := range slots {
		if s == target {
			return true
		}
	}
	return false
}
