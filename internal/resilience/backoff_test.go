package resilience

import (
	"testing"
	"time"
)

func TestBackoff_StartsAtInitialInterval(t *testing.T) {
	t.Parallel()

	b := newBackoff(RetryConfig{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     300 * time.Millisecond,
		Multiplier:      2,
	})

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	for i, w := range want {
		if got := b.next(); got != w {
			t.Errorf("delay #%d = %v, want %v", i+1, got, w)
		}
	}
}

func TestBackoff_JitterStaysInRange(t *testing.T) {
	t.Parallel()

	b := newBackoff(RetryConfig{InitialInterval: 100 * time.Millisecond, RandomFactor: 0.1})
	for i := 0; i < 50; i++ {
		if got := b.next(); got < 90*time.Millisecond || got > 110*time.Millisecond {
			t.Fatalf("delay = %v, want within 10%% of 100ms", got)
		}
	}
}
