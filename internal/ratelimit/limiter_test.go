package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestNew_InvalidArgs(t *testing.T) {
	tests := []struct {
		name  string
		rps   float64
		burst int
	}{
		{"zero rate", 0, 1},
		{"negative rate", -1, 1},
		{"zero burst", 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.rps, tt.burst, 0)
			if l != nil {
				t.Fatal("expected nil limiter")
			}
			if !l.Allow("alice", time.Now()) {
				t.Error("nil limiter should allow")
			}
			l.Reset("alice")
			if l.Len() != 0 {
				t.Error("nil limiter should track nothing")
			}
		})
	}
}

func TestAllow_BurstThenThrottle(t *testing.T) {
	l := New(1, 3, time.Minute)
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 3; i++ {
		if !l.Allow("alice", now) {
			t.Fatalf("attempt %d throttled inside burst", i+1)
		}
	}
	if l.Allow("alice", now) {
		t.Error("attempt beyond burst allowed")
	}

	// Other keys have their own bucket
	if !l.Allow("bob", now) {
		t.Error("bob throttled by alice's attempts")
	}

	// One token refills after a second
	if !l.Allow("alice", now.Add(time.Second)) {
		t.Error("attempt after refill throttled")
	}
}

func TestAllow_BlankKey(t *testing.T) {
	l := New(1, 1, time.Minute)
	now := time.Now()

	for i := 0; i < 5; i++ {
		if !l.Allow("  ", now) {
			t.Fatal("blank key throttled")
		}
	}
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0", l.Len())
	}
}

func TestReset(t *testing.T) {
	l := New(0.001, 1, time.Minute)
	now := time.Now()

	l.Allow("alice", now)
	if l.Allow("alice", now) {
		t.Fatal("expected throttle")
	}

	l.Reset("alice")
	if !l.Allow("alice", now) {
		t.Error("attempt after Reset throttled")
	}
}

func TestEvict(t *testing.T) {
	l := New(1, 1, time.Minute)
	start := time.Unix(1_700_000_000, 0)

	l.Allow("old", start)
	l.Allow("new", start.Add(50*time.Second))

	l.Evict(start.Add(90 * time.Second))
	if l.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", l.Len())
	}

	l.Evict(start.Add(time.Hour))
	if l.Len() != 0 {
		t.Errorf("Len() = %d, want 0", l.Len())
	}
}

func TestAllow_Concurrent(t *testing.T) {
	l := New(0.001, 10, time.Minute)
	now := time.Now()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("shared", now) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 10 {
		t.Errorf("allowed = %d, want 10", allowed)
	}
}

func TestWindow(t *testing.T) {
	if got := New(0.5, 5, 0).Window(); got != 10*time.Second {
		t.Errorf("Window() = %v, want 10s", got)
	}
	var l *KeyLimiter
	if l.Window() != 0 {
		t.Error("nil limiter should have no window")
	}
}

func TestSeed(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	tests := []struct {
		name     string
		attempts []time.Time
		want     bool
	}{
		{"no history", nil, true},
		{"burst used up", []time.Time{now.Add(-2 * time.Second), now.Add(-time.Second)}, false},
		{"old attempts refilled", []time.Time{now.Add(-30 * time.Second), now.Add(-29 * time.Second)}, true},
		{"one recent attempt", []time.Time{now.Add(-time.Second)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(0.1, 2, time.Minute)
			l.Seed("alice", tt.attempts, now)
			if !l.Tracks("alice") {
				t.Fatal("Seed() did not create a bucket")
			}
			if got := l.Allow("alice", now); got != tt.want {
				t.Errorf("Allow() after Seed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSeed_KeepsExistingBucket(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := New(0.1, 2, time.Minute)

	if !l.Allow("alice", now) {
		t.Fatal("first attempt throttled")
	}
	l.Seed("alice", []time.Time{now, now, now}, now)
	if !l.Allow("alice", now) {
		t.Error("Seed() replaced a tracked bucket")
	}

	l.Seed("  ", []time.Time{now}, now)
	if l.Tracks("") || l.Len() != 1 {
		t.Error("blank key was seeded")
	}
}
