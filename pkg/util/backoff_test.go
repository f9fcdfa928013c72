package util

import (
	"testing"
	"time"
)

func TestExpBackoffDoublesUntilCap(t *testing.T) {
	min, max := 100*time.Millisecond, time.Second
	want := []time.Duration{100, 200, 400, 800, 1000, 1000}
	for i, w := range want {
		if got := ExpBackoff(min, max, i+1); got != w*time.Millisecond {
			t.Fatalf("attempt %d: got %v want %v", i+1, got, w*time.Millisecond)
		}
	}
}

func TestExpBackoffLargeAttemptDoesNotOverflow(t *testing.T) {
	if got := ExpBackoff(time.Second, time.Minute, 200); got != time.Minute {
		t.Fatalf("got %v", got)
	}
}

func TestBackoffJitterWithinBounds(t *testing.T) {
	for attempt := 1; attempt < 8; attempt++ {
		exp := ExpBackoff(50*time.Millisecond, 2*time.Second, attempt)
		got := Backoff(50*time.Millisecond, 2*time.Second, attempt)
		if got > exp || got < exp/2 {
			t.Fatalf("attempt %d: %v outside [%v, %v]", attempt, got, exp/2, exp)
		}
	}
}
