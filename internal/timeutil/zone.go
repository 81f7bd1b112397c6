package timeutil

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	// DateLayout is the calendar date layout used by stored documents.
	DateLayout = "2006-01-02"
	// ClockLayout is the clock layout used by stored documents.
	ClockLayout = "15:04"
	// OrgTimezone is the organisation's home timezone for schedule templates.
	OrgTimezone = "Asia/Bangkok"
)

var (
	locationMu    sync.RWMutex
	locationCache = map[string]*time.Location{}
	orgFallback   = time.FixedZone("ICT", 7*60*60)
)

// OrgLocation returns the organisation timezone, falling back to a fixed
// +07:00 zone when the tz database is unavailable.
func OrgLocation() *time.Location {
	loc, err := LoadLocation(OrgTimezone)
	if err != nil {
		return orgFallback
	}
	return loc
}

// LoadLocation is time.LoadLocation with a process-wide cache. An empty
// name resolves to the organisation timezone.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = OrgTimezone
	}
	locationMu.RLock()
	loc, ok := locationCache[name]
	locationMu.RUnlock()
	if ok {
		return loc, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		if name == OrgTimezone {
			return orgFallback, nil
		}
		return nil, fmt.Errorf("timeutil: unknown timezone %q: %w", name, err)
	}
	locationMu.Lock()
	locationCache[name] = loc
	locationMu.Unlock()
	return loc, nil
}

// Moment is an instant broken down in a particular timezone.
type Moment struct {
	Date    string
	Time    string
	Weekday time.Weekday
	Hour    int
	Minute  int
}

// NowIn breaks now down in loc.
func NowIn(loc *time.Location, now time.Time) Moment {
	if loc == nil {
		loc = OrgLocation()
	}
	local := now.In(loc)
	return Moment{
		Date:    local.Format(DateLayout),
		Time:    local.Format(ClockLayout),
		Weekday: local.Weekday(),
		Hour:    local.Hour(),
		Minute:  local.Minute(),
	}
}

// At interprets a calendar date and clock string in loc.
func At(isoDate, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = OrgLocation()
	}
	date, err := time.ParseInLocation(DateLayout, strings.TrimSpace(isoDate), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("timeutil: invalid date %q: %w", isoDate, err)
	}
	minutes := TimeToMinutes(clock)
	return time.Date(date.Year(), date.Month(), date.Day(), minutes/60, minutes%60, 0, 0, loc), nil
}
