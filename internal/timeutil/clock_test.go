package timeutil

import "testing"

func TestTimeToMinutes(t *testing.T) {
	t.Parallel()

	cases := map[string]int{
		"":              0,
		"00:00":         0,
		"09:30":         570,
		"19:00 - 22:00": 1140,
		"23:59":         1439,
		"7.15":          435,
	}
	for input, want := range cases {
		if got := TimeToMinutes(input); got != want {
			t.Fatalf("expected TimeToMinutes(%q) = %d, got %d", input, want, got)
		}
	}
}

func TestMinutesToTimeRoundTrip(t *testing.T) {
	t.Parallel()

	for hour := 0; hour < 24; hour++ {
		for minute := 0; minute < 60; minute++ {
			clock := MinutesToTime(hour*60 + minute)
			if got := MinutesToTime(TimeToMinutes(clock)); got != clock {
				t.Fatalf("expected round trip of %s, got %s", clock, got)
			}
		}
	}
}

func TestParseClockRejectsMalformedValues(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "9", "24:00", "12:60", "12:5", "ab:cd"} {
		if _, _, err := ParseClock(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
	hour, minute, err := ParseClock("08:05")
	if err != nil {
		t.Fatalf("expected valid clock, got %v", err)
	}
	if hour != 8 || minute != 5 {
		t.Fatalf("expected 8:05, got %d:%d", hour, minute)
	}
}

func TestParseWindow(t *testing.T) {
	t.Parallel()

	w, isRange := ParseWindow("19:00 - 22:00")
	if !isRange {
		t.Fatalf("expected range window")
	}
	if w.Start != 1140 || w.End != 1320 {
		t.Fatalf("expected 1140-1320, got %d-%d", w.Start, w.End)
	}

	single, isRange := ParseWindow("10:30")
	if isRange {
		t.Fatalf("expected single time to report no range")
	}
	if single.Start != 630 {
		t.Fatalf("expected start 630, got %d", single.Start)
	}
	if got := FormatWindow(" 09:00", "11:00 "); got != "09:00 - 11:00" {
		t.Fatalf("expected normalised window, got %q", got)
	}
}
