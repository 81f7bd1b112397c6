package testfixtures

import (
	"testing"
	"time"
)

func TestClockDefaultsToReferenceTime(t *testing.T) {
	clock := NewClock(time.Time{})
	if !clock.Now().Equal(ReferenceTime()) {
		t.Fatalf("expected ReferenceTime, got %v", clock.Now())
	}
}

func TestClockAdvance(t *testing.T) {
	start := time.Date(2024, time.March, 14, 9, 26, 0, 0, time.UTC)
	clock := NewClock(start)

	updated := clock.Advance(90 * time.Minute)
	if !updated.Equal(start.Add(90 * time.Minute)) {
		t.Fatalf("advance returned %v", updated)
	}
	if got := clock.Now(); !got.Equal(updated) {
		t.Fatalf("expected Now to report %v, got %v", updated, got)
	}
}

func TestClockNowFunc(t *testing.T) {
	clock := NewClock(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC))
	nowFn := clock.NowFunc()

	if got := nowFn(); !got.Equal(clock.Now()) {
		t.Fatalf("expected %v from NowFunc, got %v", clock.Now(), got)
	}

	clock.Advance(time.Minute)
	if got := nowFn(); !got.Equal(clock.Now()) {
		t.Fatalf("expected updated time %v, got %v", clock.Now(), got)
	}
}

func TestClockStep(t *testing.T) {
	clock := NewClock(time.Time{})
	var seen []time.Time
	clock.Step(time.Minute, 3, func(now time.Time) { seen = append(seen, now) })

	if len(seen) != 3 {
		t.Fatalf("expected 3 ticks, got %d", len(seen))
	}
	if !seen[2].Equal(ReferenceTime().Add(3 * time.Minute)) {
		t.Fatalf("expected last tick at %v, got %v", ReferenceTime().Add(3*time.Minute), seen[2])
	}
	if got := clock.In(time.UTC); !got.Equal(seen[2]) {
		t.Fatalf("expected clock to rest at the last tick, got %v", got)
	}
}
