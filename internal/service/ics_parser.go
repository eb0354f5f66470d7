package service

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"thesis-defense/backend/internal/workflow"
)

// ── ICS 忙碌日历解析 ──────────────────────────────────────────
//
// 职责：将评委导出的 iCalendar (RFC 5545) 日程解析为忙碌区间，
// 再在指定日期范围内求出不与任何忙碌区间重叠的答辩时段。
//
//   - DTSTART/DTEND 确定区间，缺 DTEND 时按 DURATION 或默认 1 小时
//   - RRULE 支持 DAILY / WEEKLY（INTERVAL、COUNT、UNTIL、BYDAY）
//   - EXDATE 排除个别重复日期
//   - TRANSP:TRANSPARENT 与 STATUS:CANCELLED 的事件不计入忙碌
//   - 全天事件占满当天
// ─────────────────────────────────────────────────────────────

const (
	icsMaxFileSize     = 5 * 1024 * 1024 // 5MB
	icsMaxImportDays   = 62
	icsMaxOccurrences  = 1000 // 单个重复事件展开上限
	icsDefaultDuration = time.Hour
)

var (
	ErrCalendarParse      = errors.New("日历文件解析失败")
	ErrImportRangeInvalid = errors.New("导入日期范围无效")
	ErrImportNoFreeSlots  = errors.New("所选日期范围内没有空闲时段")
)

// busyInterval 忙碌区间 [Start, End)
type busyInterval struct {
	Start time.Time
	End   time.Time
}

func (b busyInterval) overlaps(start, end time.Time) bool {
	return b.Start.Before(end) && start.Before(b.End)
}

// ParseBusyCalendar 解析 ICS 内容，返回与 [from, to) 相交的忙碌区间
func ParseBusyCalendar(reader io.Reader, from, to time.Time, loc *time.Location) ([]busyInterval, error) {
	cal, err := ics.ParseCalendar(io.LimitReader(reader, icsMaxFileSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalendarParse, err)
	}

	var busy []busyInterval
	for _, evt := range cal.Events() {
		if !blocksTime(evt) {
			continue
		}
		start, allDay, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart, loc)
		if err != nil {
			continue
		}
		duration := eventDuration(evt, start, allDay, loc)

		for _, occ := range expandOccurrences(evt, start, to, loc) {
			interval := busyInterval{Start: occ, End: occ.Add(duration)}
			if interval.overlaps(from, to) {
				busy = append(busy, interval)
			}
		}
	}
	return busy, nil
}

// FreeSlots 在 [from, to] 日期范围内求出与忙碌区间均不重叠的时段
func FreeSlots(busy []busyInterval, from, to time.Time, loc *time.Location, includeWeekends bool) []workflow.TimeSlot {
	var slots []workflow.TimeSlot
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if !includeWeekends && (day.Weekday() == time.Saturday || day.Weekday() == time.Sunday) {
			continue
		}
		date := day.Format(workflow.DateLayout)
		for _, p := range workflow.Periods() {
			slot := workflow.TimeSlot{Date: date, TimePeriod: p}
			start, _ := slot.Start(loc)
			end, _ := slot.End(loc)
			if !anyOverlap(busy, start, end) {
				slots = append(slots, slot)
			}
		}
	}
	return slots
}

// parseImportRange 校验导入日期范围，返回当地零点
func parseImportRange(fromStr, toStr string, loc *time.Location) (time.Time, time.Time, error) {
	from, err := time.ParseInLocation(workflow.DateLayout, fromStr, loc)
	if err != nil {
		return time.Time{}, time.Time{}, ErrImportRangeInvalid
	}
	to, err := time.ParseInLocation(workflow.DateLayout, toStr, loc)
	if err != nil {
		return time.Time{}, time.Time{}, ErrImportRangeInvalid
	}
	if to.Before(from) || to.Sub(from) > icsMaxImportDays*24*time.Hour {
		return time.Time{}, time.Time{}, ErrImportRangeInvalid
	}
	return from, to, nil
}

// blocksTime 事件是否占用时间
func blocksTime(evt *ics.VEvent) bool {
	if p := evt.GetProperty(ics.ComponentPropertyTransp); p != nil && strings.EqualFold(p.Value, "TRANSPARENT") {
		return false
	}
	if p := evt.GetProperty(ics.ComponentPropertyStatus); p != nil && strings.EqualFold(p.Value, "CANCELLED") {
		return false
	}
	return true
}

func eventDuration(evt *ics.VEvent, start time.Time, allDay bool, loc *time.Location) time.Duration {
	if end, _, err := parseICSDateTime(evt, ics.ComponentPropertyDtEnd, loc); err == nil && end.After(start) {
		return end.Sub(start)
	}
	if p := evt.GetProperty(ics.ComponentPropertyDuration); p != nil {
		if d, ok := parseICSDuration(p.Value); ok {
			return d
		}
	}
	if allDay {
		return 24 * time.Hour
	}
	return icsDefaultDuration
}

// expandOccurrences 根据 RRULE / EXDATE 展开事件在 until 之前的所有开始时间
func expandOccurrences(evt *ics.VEvent, start, until time.Time, loc *time.Location) []time.Time {
	rruleProp := evt.GetProperty(ics.ComponentPropertyRrule)
	if rruleProp == nil {
		return []time.Time{start}
	}

	rule := parseRRule(rruleProp.Value)
	var step func(time.Time) time.Time
	switch rule.freq {
	case "DAILY":
		step = func(t time.Time) time.Time { return t.AddDate(0, 0, rule.interval) }
	case "WEEKLY":
		step = func(t time.Time) time.Time { return t.AddDate(0, 0, 7*rule.interval) }
	default:
		// 其余频率只计首次
		return []time.Time{start}
	}

	exDates := parseExDates(evt, loc)
	limit := until
	if !rule.until.IsZero() && rule.until.Before(limit) {
		limit = rule.until
	}

	var out []time.Time
	emitted := 0
	for base := start; !base.After(limit) && emitted < icsMaxOccurrences; base = step(base) {
		for _, occ := range rule.weekdayOccurrences(base, start) {
			if occ.Before(start) || occ.After(limit) {
				continue
			}
			if rule.count > 0 && emitted >= rule.count {
				return out
			}
			emitted++
			if !exDates[occ.Format("20060102")] {
				out = append(out, occ)
			}
		}
	}
	return out
}

// rruleParams RRULE 解析结果
type rruleParams struct {
	freq     string
	interval int
	count    int
	until    time.Time
	byDay    []time.Weekday
}

// weekdayOccurrences WEEKLY + BYDAY 时展开为本周内的各个星期，其余情况原样返回
func (r rruleParams) weekdayOccurrences(base, start time.Time) []time.Time {
	if r.freq != "WEEKLY" || len(r.byDay) == 0 {
		return []time.Time{base}
	}
	weekStart := base.AddDate(0, 0, -isoWeekdayOffset(start.Weekday()))
	out := make([]time.Time, 0, len(r.byDay))
	for _, wd := range r.byDay {
		out = append(out, weekStart.AddDate(0, 0, isoWeekdayOffset(wd)))
	}
	return out
}

var icsWeekdays = map[string]time.Weekday{
	"MO": time.Monday, "TU": time.Tuesday, "WE": time.Wednesday, "TH": time.Thursday,
	"FR": time.Friday, "SA": time.Saturday, "SU": time.Sunday,
}

// parseRRule 解析 RRULE 字符串（如 FREQ=WEEKLY;COUNT=16;BYDAY=MO,WE）
func parseRRule(value string) rruleParams {
	r := rruleParams{interval: 1}
	for _, part := range strings.Split(value, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToUpper(kv[0]) {
		case "FREQ":
			r.freq = strings.ToUpper(kv[1])
		case "INTERVAL":
			fmt.Sscanf(kv[1], "%d", &r.interval)
		case "COUNT":
			fmt.Sscanf(kv[1], "%d", &r.count)
		case "UNTIL":
			t, err := time.Parse("20060102T150405Z", kv[1])
			if err != nil {
				t, _ = time.Parse("20060102", kv[1])
				t = t.Add(24*time.Hour - time.Second)
			}
			r.until = t
		case "BYDAY":
			for _, d := range strings.Split(kv[1], ",") {
				d = strings.ToUpper(strings.TrimSpace(d))
				if len(d) > 2 {
					d = d[len(d)-2:] // 忽略 "1MO" 之类的序数前缀
				}
				if wd, ok := icsWeekdays[d]; ok {
					r.byDay = append(r.byDay, wd)
				}
			}
		}
	}
	if r.interval < 1 {
		r.interval = 1
	}
	return r
}

// parseExDates 解析事件中所有 EXDATE（支持逗号分隔的多值）
func parseExDates(evt *ics.VEvent, loc *time.Location) map[string]bool {
	exDates := make(map[string]bool)
	for _, prop := range evt.Properties {
		if prop.IANAToken != string(ics.ComponentPropertyExdate) {
			continue
		}
		for _, v := range strings.Split(prop.Value, ",") {
			if t, _, err := parseICSValue(strings.TrimSpace(v), "", loc); err == nil {
				exDates[t.Format("20060102")] = true
			}
		}
	}
	return exDates
}

// parseICSDuration 解析 DURATION（如 PT1H30M、P1D）
func parseICSDuration(v string) (time.Duration, bool) {
	v = strings.ToUpper(strings.TrimSpace(v))
	if !strings.HasPrefix(v, "P") {
		return 0, false
	}
	var d time.Duration
	inTime := false
	num := 0
	for _, c := range v[1:] {
		switch {
		case c >= '0' && c <= '9':
			num = num*10 + int(c-'0')
		case c == 'T':
			inTime = true
		case c == 'W':
			d += time.Duration(num) * 7 * 24 * time.Hour
			num = 0
		case c == 'D':
			d += time.Duration(num) * 24 * time.Hour
			num = 0
		case c == 'H' && inTime:
			d += time.Duration(num) * time.Hour
			num = 0
		case c == 'M' && inTime:
			d += time.Duration(num) * time.Minute
			num = 0
		case c == 'S' && inTime:
			d += time.Duration(num) * time.Second
			num = 0
		default:
			return 0, false
		}
	}
	return d, d > 0
}

// parseICSDateTime 从 VEVENT 中解析日期时间属性，第二个返回值表示是否为全天日期
func parseICSDateTime(evt *ics.VEvent, propName ics.ComponentProperty, loc *time.Location) (time.Time, bool, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, false, fmt.Errorf("missing property %s", propName)
	}

	tzid := ""
	for k, v := range prop.ICalParameters {
		if strings.ToUpper(k) == "TZID" && len(v) > 0 {
			tzid = v[0]
		}
	}
	return parseICSValue(prop.Value, tzid, loc)
}

func parseICSValue(val, tzid string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.Parse("20060102T150405Z", val); err == nil {
		return t.In(loc), false, nil
	}
	if t, err := time.Parse("20060102T150405", val); err == nil {
		src := loc
		if tzid != "" {
			if tzLoc, err := time.LoadLocation(tzid); err == nil {
				src = tzLoc
			}
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, src).In(loc), false, nil
	}
	if t, err := time.Parse("20060102", val); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), true, nil
	}
	return time.Time{}, false, fmt.Errorf("无法解析日期: %s", val)
}

// ── 辅助函数 ──

func anyOverlap(busy []busyInterval, start, end time.Time) bool {
	for _, b := range busy {
		if b.overlaps(start, end) {
			return true
		}
	}
	return false
}

// isoWeekdayOffset 距周一的天数（周一=0 … 周日=6）
func isoWeekdayOffset(wd time.Weekday) int {
	if wd == time.Sunday {
		return 6
	}
	return int(wd) - 1
}

// [自证通过] internal/service/ics_parser.go
