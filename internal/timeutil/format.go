package timeutil

import (
	"fmt"
	"time"
)

var thaiShortMonths = [12]string{
	"ม.ค.", "ก.พ.", "มี.ค.", "เม.ย.", "พ.ค.", "มิ.ย.",
	"ก.ค.", "ส.ค.", "ก.ย.", "ต.ค.", "พ.ย.", "ธ.ค.",
}

// buddhistEraOffset converts a Gregorian year to the Thai calendar year.
const buddhistEraOffset = 543

// FormatThaiDate renders t as "11 มิ.ย. 2567".
func FormatThaiDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), thaiShortMonths[t.Month()-1], t.Year()+buddhistEraOffset)
}

// FormatThaiDateTime renders t as "11 มิ.ย. 2567 เวลา 09:00" in loc.
func FormatThaiDateTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = OrgLocation()
	}
	local := t.In(loc)
	return FormatThaiDate(local) + " เวลา " + local.Format(ClockLayout)
}

// FormatFooterTime renders t as "11 Jun 2024, 09:00 (GMT+07:00)" in loc.
func FormatFooterTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = OrgLocation()
	}
	local := t.In(loc)
	return fmt.Sprintf("%s, %s (%s)", local.Format("2 Jan 2006"), local.Format(ClockLayout), GMTOffset(local))
}

// GMTOffset renders the zone offset of t as "GMT+07:00".
func GMTOffset(t time.Time) string {
	_, offset := t.Zone()
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("GMT%c%02d:%02d", sign, offset/3600, (offset%3600)/60)
}
