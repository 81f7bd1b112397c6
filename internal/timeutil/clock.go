// Package timeutil converts between clock strings, minute offsets and
// duration labels, and computes "now" in a named timezone.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay bounds the clock domain handled by MinutesToTime.
const MinutesPerDay = 24 * 60

// TimeToMinutes converts an "HH:MM" clock string into minutes since
// midnight. Empty input yields 0. A window such as "19:00 - 22:00" is
// reduced to its first clock time.
func TimeToMinutes(clock string) int {
	clock = strings.TrimSpace(clock)
	if clock == "" {
		return 0
	}
	if idx := strings.Index(clock, "-"); idx >= 0 {
		clock = strings.TrimSpace(clock[:idx])
	}
	hourPart, minutePart, _ := strings.Cut(clock, ":")
	if !strings.Contains(clock, ":") {
		hourPart, minutePart, _ = strings.Cut(clock, ".")
	}
	hours, err := strconv.Atoi(strings.TrimSpace(hourPart))
	if err != nil {
		return 0
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(minutePart))
	if err != nil {
		minutes = 0
	}
	return hours*60 + minutes
}

// MinutesToTime renders minutes since midnight as a zero padded "HH:MM".
func MinutesToTime(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseClock validates an "HH:MM" string and returns its hour and minute.
func ParseClock(clock string) (hour, minute int, err error) {
	clock = strings.TrimSpace(clock)
	hourPart, minutePart, ok := strings.Cut(clock, ":")
	if !ok {
		return 0, 0, fmt.Errorf("timeutil: clock %q must be HH:MM", clock)
	}
	hour, err = strconv.Atoi(hourPart)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("timeutil: clock %q has invalid hour", clock)
	}
	minute, err = strconv.Atoi(minutePart)
	if err != nil || minute < 0 || minute > 59 || len(minutePart) != 2 {
		return 0, 0, fmt.Errorf("timeutil: clock %q has invalid minute", clock)
	}
	return hour, minute, nil
}

// Window is a clock-time range expressed in minutes since midnight.
type Window struct {
	Start int
	End   int
}

// ParseWindow splits "HH:MM - HH:MM" into a window. A single clock time is
// reported with isRange=false and Start set to that time.
func ParseWindow(value string) (w Window, isRange bool) {
	value = strings.TrimSpace(value)
	startPart, endPart, found := strings.Cut(value, "-")
	if !found {
		start := TimeToMinutes(value)
		return Window{Start: start, End: start}, false
	}
	return Window{Start: TimeToMinutes(startPart), End: TimeToMinutes(endPart)}, true
}

// FormatWindow renders start and end clock strings in the stored template shape.
func FormatWindow(start, end string) string {
	return strings.TrimSpace(start) + " - " + strings.TrimSpace(end)
}
