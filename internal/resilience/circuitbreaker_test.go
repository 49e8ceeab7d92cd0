package resilience

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(threshold int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 3, 11, 16, 30, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("yahoo", CircuitBreakerConfig{
		FailureThreshold: threshold,
		SuccessThreshold: 1,
		Cooldown:         time.Minute,
	}, clock.Now)
	return cb, clock
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker(3)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess() // resets the streak
	cb.RecordFailure()
	if got := cb.RecordFailure(); got != CircuitClosed {
		t.Fatalf("state after 2 consecutive failures = %s, want CLOSED", got)
	}
	if got := cb.RecordFailure(); got != CircuitOpen {
		t.Fatalf("state after 3 consecutive failures = %s, want OPEN", got)
	}

	for i := 0; i < 2; i++ {
		if err := cb.Allow(); !errors.Is(err, ErrCircuitOpen) {
			t.Fatalf("Allow() = %v, want ErrCircuitOpen", err)
		}
	}
	if s := cb.Stats(); s.Rejected != 2 || s.ConsecutiveFailures != 3 {
		t.Errorf("stats = %+v", s)
	}
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	cb, clock := newTestBreaker(1)
	cb.RecordFailure()

	clock.Advance(59 * time.Second)
	if err := cb.Allow(); err == nil {
		t.Fatal("Allow() succeeded before the cooldown elapsed")
	}

	clock.Advance(time.Second)
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() after cooldown = %v", err)
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("state = %s, want HALF_OPEN", cb.State())
	}

	// A failed probe reopens for a fresh cooldown.
	if got := cb.RecordFailure(); got != CircuitOpen {
		t.Fatalf("state after failed probe = %s", got)
	}
	clock.Advance(30 * time.Second)
	if err := cb.Allow(); err == nil {
		t.Fatal("Allow() succeeded during the second cooldown")
	}

	clock.Advance(30 * time.Second)
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() = %v", err)
	}
	if got := cb.RecordSuccess(); got != CircuitClosed {
		t.Errorf("state after successful probe = %s, want CLOSED", got)
	}
}

func TestCircuitBreaker_ZeroThresholdNeverOpens(t *testing.T) {
	cb, _ := newTestBreaker(0)
	for i := 0; i < 100; i++ {
		cb.RecordFailure()
	}
	if err := cb.Allow(); err != nil {
		t.Errorf("Allow() = %v", err)
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := newTestBreaker(1)
	cb.RecordFailure()
	cb.Reset()
	if cb.State() != CircuitClosed || cb.Allow() != nil {
		t.Errorf("breaker not closed after Reset: %+v", cb.Stats())
	}
}

func TestCircuitBreaker_ConcurrentUse(t *testing.T) {
	cb, _ := newTestBreaker(1000)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(fail bool) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = cb.Allow()
				if fail {
					cb.RecordFailure()
				} else {
					cb.RecordSuccess()
				}
			}
		}(i%2 == 0)
	}
	wg.Wait()
	if cb.State() != CircuitClosed {
		t.Errorf("state = %s", cb.State())
	}
}
