package timeutil

import (
	"strings"
	"time"
)

var weekdaySymbols = [7]string{"อา.", "จ.", "อ.", "พ.", "พฤ.", "ศ.", "ส."}

var weekdayAliases = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// WeekdaySymbol returns the stored day symbol for a weekday.
func WeekdaySymbol(day time.Weekday) string {
	return weekdaySymbols[int(day)%7]
}

// WeekdaySymbols returns the seven day symbols starting on Sunday.
func WeekdaySymbols() []string {
	out := make([]string, len(weekdaySymbols))
	copy(out, weekdaySymbols[:])
	return out
}

// ParseWeekdaySymbol accepts a stored Thai symbol or an English day name.
func ParseWeekdaySymbol(value string) (time.Weekday, bool) {
	value = strings.TrimSpace(value)
	for idx, symbol := range weekdaySymbols {
		if value == symbol {
			return time.Weekday(idx), true
		}
	}
	day, ok := weekdayAliases[strings.ToLower(value)]
	return day, ok
}

// WeekdayOfDate returns the weekday of a YYYY-MM-DD calendar date.
func WeekdayOfDate(isoDate string) (time.Weekday, error) {
	date, err := time.Parse(DateLayout, strings.TrimSpace(isoDate))
	if err != nil {
		return time.Sunday, err
	}
	return date.Weekday(), nil
}
