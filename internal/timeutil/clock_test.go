package timeutil

import (
	"testing"
	"time"
)

func TestMockClockAdvance(t *testing.T) {
	start := time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	if got := c.Now(); !got.Equal(start) {
		t.Errorf("Now() = %v, want %v", got, start)
	}

	c.Advance(90 * time.Second)
	if got := c.Since(start); got != 90*time.Second {
		t.Errorf("Since() = %v, want 90s", got)
	}
}

func TestMockClockSleepRecords(t *testing.T) {
	c := NewMockClock(time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC))

	c.Sleep(time.Second)
	c.Sleep(2 * time.Second)

	sleeps := c.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != time.Second || sleeps[1] != 2*time.Second {
		t.Errorf("Sleeps() = %v", sleeps)
	}

	// Sleeping advances the mocked time so elapsed measurements work.
	want := time.Date(2010, 1, 1, 0, 0, 3, 0, time.UTC)
	if got := c.Now(); !got.Equal(want) {
		t.Errorf("Now() = %v, want %v", got, want)
	}
}

func TestRealClockMonotonic(t *testing.T) {
	var c RealClock
	before := c.Now()
	if c.Since(before) < 0 {
		t.Error("Since returned negative duration")
	}
}
