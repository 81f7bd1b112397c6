package recurrence

import (
	"strings"
	"time"
)

const (
	labelNoRepeat = "ไม่ซ้ำ"
	labelDaily    = "ทุกวัน"
	labelWeekends = "ทุกวันสุดสัปดาห์"
	labelWeekdays = "ทุกวันธรรมดา"
)

var dayLabels = [7]string{
	"ทุกวันอาทิตย์",
	"ทุกวันจันทร์",
	"ทุกวันอังคาร",
	"ทุกวันพุธ",
	"ทุกวันพฤหัสบดี",
	"ทุกวันศุกร์",
	"ทุกวันเสาร์",
}

// Describe renders the repeat label shown next to a reminder.
func Describe(rule Rule) string {
	if !rule.Repeating() {
		return labelNoRepeat
	}
	set := make(map[time.Weekday]bool, len(rule.Weekdays))
	for _, day := range rule.Weekdays {
		set[day] = true
	}
	switch {
	case len(set) == 7:
		return labelDaily
	case len(set) == 2 && set[time.Saturday] && set[time.Sunday]:
		return labelWeekends
	case len(set) == 5 && !set[time.Saturday] && !set[time.Sunday]:
		return labelWeekdays
	}

	labels := make([]string, 0, len(set))
	for day := time.Sunday; day <= time.Saturday; day++ {
		if set[day] {
			labels = append(labels, dayLabels[day])
		}
	}
	return strings.Join(labels, ", ")
}
