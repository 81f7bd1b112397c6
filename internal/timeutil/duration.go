package timeutil

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// MinimumCustomDuration is the smallest custom duration, in minutes, that
// callers accept from users.
const MinimumCustomDuration = 10

// Unit names the unit of a custom duration.
type Unit string

const (
	UnitMinutes Unit = "minutes"
	UnitHours   Unit = "hours"
)

// CustomLabel marks a Duration whose value comes from CustomValue/CustomUnit.
const CustomLabel = "custom"

// StandardDurations lists the selectable duration labels in display order.
var StandardDurations = []string{
	"30 minutes",
	"1 hour",
	"1.5 hours",
	"2 hours",
	"3 hours",
}

var (
	leadingNumber = regexp.MustCompile(`[\d.]+`)
	hourKeywords  = []string{"hour", "ชั่วโมง", "ชม.", "hr"}
)

// Duration is either a standard label such as "1.5 hours" or a custom
// value+unit pair when Label is CustomLabel.
type Duration struct {
	Label       string
	CustomValue float64
	CustomUnit  Unit
}

// IsCustom reports whether the duration carries a custom value.
func (d Duration) IsCustom() bool {
	label := strings.TrimSpace(d.Label)
	return label == CustomLabel || label == "กำหนดเอง"
}

// IsZero reports whether no duration was chosen.
func (d Duration) IsZero() bool {
	return strings.TrimSpace(d.Label) == "" && d.CustomValue == 0
}

// DurationToMinutes resolves a duration label to whole minutes. It
// returns 0 when the label cannot be parsed.
func DurationToMinutes(d Duration) int {
	label := strings.TrimSpace(d.Label)
	if label == "" && d.CustomValue > 0 {
		label = CustomLabel
	}
	if label == "" {
		return 0
	}
	if d.IsCustom() || label == CustomLabel {
		if d.CustomValue <= 0 || math.IsNaN(d.CustomValue) {
			return 0
		}
		if ParseUnit(string(d.CustomUnit)) == UnitHours {
			return roundMinutes(d.CustomValue * 60)
		}
		return roundMinutes(d.CustomValue)
	}
	return LabelToMinutes(label)
}

// LabelToMinutes parses the first numeric token of a label and scales it
// when an hour keyword is present.
func LabelToMinutes(label string) int {
	match := leadingNumber.FindString(label)
	if match == "" {
		return 0
	}
	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	lower := strings.ToLower(label)
	for _, keyword := range hourKeywords {
		if strings.Contains(lower, keyword) {
			return roundMinutes(value * 60)
		}
	}
	return roundMinutes(value)
}

// ParseUnit normalises English and Thai unit names.
func ParseUnit(value string) Unit {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "hour", "hours", "h", "hr", "ชั่วโมง", "ชม.":
		return UnitHours
	default:
		return UnitMinutes
	}
}

// FormatDuration renders minutes as the closest human label, for example
// "1.5 hours" or "45 minutes".
func FormatDuration(minutes int) string {
	switch {
	case minutes <= 0:
		return ""
	case minutes%60 == 0:
		hours := minutes / 60
		if hours == 1 {
			return "1 hour"
		}
		return strconv.Itoa(hours) + " hours"
	case minutes > 60 && minutes%30 == 0:
		return strconv.FormatFloat(float64(minutes)/60, 'f', 1, 64) + " hours"
	default:
		return strconv.Itoa(minutes) + " minutes"
	}
}

func roundMinutes(value float64) int {
	return int(math.Round(value))
}
