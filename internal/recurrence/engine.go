// Package recurrence computes the upcoming firings of reminders, expressed
// as RFC 5545 rules.
package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/example/booking-reminder/internal/persistence"
	"github.com/example/booking-reminder/internal/timeutil"
)

// ErrInvalidRule indicates the reminder cannot be expressed as a schedule.
var ErrInvalidRule = errors.New("recurrence: invalid rule")

var rruleWeekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// Rule is the schedule of one reminder. Weekdays take precedence over Date.
type Rule struct {
	Clock    string
	Date     string
	Weekdays []time.Weekday
}

// Repeating reports whether the rule recurs weekly.
func (r Rule) Repeating() bool {
	return len(r.Weekdays) > 0
}

// RuleFor derives the rule of a stored reminder. Out-of-range repeat days
// are dropped.
func RuleFor(reminder persistence.Reminder) Rule {
	rule := Rule{Clock: reminder.Time, Date: reminder.Date}
	seen := make(map[int]struct{}, len(reminder.RepeatDays))
	for _, day := range reminder.RepeatDays {
		if day < 0 || day > 6 {
			continue
		}
		if _, ok := seen[day]; ok {
			continue
		}
		seen[day] = struct{}{}
		rule.Weekdays = append(rule.Weekdays, time.Weekday(day))
	}
	sort.Slice(rule.Weekdays, func(i, j int) bool { return rule.Weekdays[i] < rule.Weekdays[j] })
	return rule
}

// Engine evaluates rules in a default timezone.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine. If loc is nil, the organization timezone
// is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = timeutil.OrgLocation()
	}
	return &Engine{location: loc}
}

// Options builds the rrule options of a weekly rule anchored at the start of
// from's day in loc.
func (e *Engine) Options(rule Rule, loc *time.Location, from time.Time) (rrule.ROption, error) {
	if loc == nil {
		loc = e.location
	}
	hour, minute, err := timeutil.ParseClock(rule.Clock)
	if err != nil {
		return rrule.ROption{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if !rule.Repeating() {
		return rrule.ROption{}, fmt.Errorf("%w: rule does not repeat", ErrInvalidRule)
	}

	local := from.In(loc)
	days := make([]rrule.Weekday, 0, len(rule.Weekdays))
	for _, day := range rule.Weekdays {
		days = append(days, rruleWeekdays[day])
	}
	return rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc),
		Byweekday: days,
		Byhour:    []int{hour},
		Byminute:  []int{minute},
		Bysecond:  []int{0},
	}, nil
}

// Next returns the first firing strictly after after. One-time rules have no
// firing once their instant has passed.
func (e *Engine) Next(rule Rule, loc *time.Location, after time.Time) (time.Time, bool, error) {
	if loc == nil {
		loc = e.location
	}
	if !rule.Repeating() {
		at, err := e.oneTime(rule, loc)
		if err != nil {
			return time.Time{}, false, err
		}
		if !at.After(after) {
			return time.Time{}, false, nil
		}
		return at, true, nil
	}

	opts, err := e.Options(rule, loc, after)
	if err != nil {
		return time.Time{}, false, err
	}
	r, err := rrule.NewRRule(opts)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	next := r.After(after, false)
	if next.IsZero() {
		return time.Time{}, false, nil
	}
	return next, true, nil
}

// Between returns the firings within [from, to).
func (e *Engine) Between(rule Rule, loc *time.Location, from, to time.Time) ([]time.Time, error) {
	if loc == nil {
		loc = e.location
	}
	if !rule.Repeating() {
		at, err := e.oneTime(rule, loc)
		if err != nil {
			return nil, err
		}
		if at.Before(from) || !at.Before(to) {
			return nil, nil
		}
		return []time.Time{at}, nil
	}

	opts, err := e.Options(rule, loc, from)
	if err != nil {
		return nil, err
	}
	r, err := rrule.NewRRule(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	var out []time.Time
	for _, t := range r.Between(from, to, true) {
		if t.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

// RRule renders the RRULE line of a repeating rule.
func (e *Engine) RRule(rule Rule, loc *time.Location, from time.Time) (string, error) {
	opts, err := e.Options(rule, loc, from)
	if err != nil {
		return "", err
	}
	return opts.RRuleString(), nil
}

func (e *Engine) oneTime(rule Rule, loc *time.Location) (time.Time, error) {
	if strings.TrimSpace(rule.Date) == "" {
		return time.Time{}, fmt.Errorf("%w: one-time rule needs a date", ErrInvalidRule)
	}
	if _, _, err := timeutil.ParseClock(rule.Clock); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	at, err := timeutil.At(rule.Date, rule.Clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return at, nil
}
