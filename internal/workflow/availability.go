package workflow

import "sort"

// DayAvailability 某评委某一天提交的时段（展示用）
type DayAvailability struct {
	Date    string       `json:"date"`
	Periods []TimePeriod `json:"periods"`
}

// MemberAvailability 单个评委的提交情况
type MemberAvailability struct {
	MemberID  string            `json:"member_id"`
	Submitted bool              `json:"submitted"`
	Days      []DayAvailability `json:"days,omitempty"`
}

// AvailabilityReport 时间段求交结果
type AvailabilityReport struct {
	Intersection []TimeSlot           `json:"intersection"`
	Submitted    []string             `json:"submitted"`
	Awaiting     []string             `json:"awaiting"`
	Partial      bool                 `json:"partial"` // 仍有评委未提交
	Members      []MemberAvailability `json:"members"`
}

// Aggregate 计算评委时间段交集。
//
// 只统计 roster 中已提交（列表非空）的评委：每个时间段先按评委去重，
// 再累计出现次数，次数等于已提交人数的时间段进入交集。
// 未提交的评委不参与求交，仅记入 Awaiting。
func Aggregate(roster []string, submissions map[string][]TimeSlot) AvailabilityReport {
	report := AvailabilityReport{
		Intersection: []TimeSlot{},
		Submitted:    []string{},
		Awaiting:     []string{},
		Members:      make([]MemberAvailability, 0, len(roster)),
	}

	counts := make(map[TimeSlot]int)
	seenMember := make(map[string]bool, len(roster))
	for _, memberID := range roster {
		if seenMember[memberID] {
			continue
		}
		seenMember[memberID] = true

		slots := dedupe(submissions[memberID])
		if len(slots) == 0 {
			report.Awaiting = append(report.Awaiting, memberID)
			report.Members = append(report.Members, MemberAvailability{MemberID: memberID})
			continue
		}

		report.Submitted = append(report.Submitted, memberID)
		for _, s := range slots {
			counts[s]++
		}
		report.Members = append(report.Members, MemberAvailability{
			MemberID:  memberID,
			Submitted: true,
			Days:      groupByDate(slots),
		})
	}

	submitters := len(report.Submitted)
	if submitters > 0 {
		for slot, n := range counts {
			if n == submitters {
				report.Intersection = append(report.Intersection, slot)
			}
		}
		SortSlots(report.Intersection)
	}
	report.Partial = len(report.Awaiting) > 0

	return report
}

// Intersect 仅返回交集
func Intersect(roster []string, submissions map[string][]TimeSlot) []TimeSlot {
	return Aggregate(roster, submissions).Intersection
}

func dedupe(slots []TimeSlot) []TimeSlot {
	if len(slots) == 0 {
		return nil
	}
	seen := make(map[TimeSlot]bool, len(slots))
	out := make([]TimeSlot, 0, len(slots))
	for _, s := range slots {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func groupByDate(slots []TimeSlot) []DayAvailability {
	byDate := make(map[string][]TimePeriod)
	for _, s := range slots {
		byDate[s.Date] = append(byDate[s.Date], s.TimePeriod)
	}

	days := make([]DayAvailability, 0, len(byDate))
	for date, periods := range byDate {
		sort.Slice(periods, func(i, j int) bool { return periods[i].order() < periods[j].order() })
		days = append(days, DayAvailability{Date: date, Periods: periods})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })
	return days
}
