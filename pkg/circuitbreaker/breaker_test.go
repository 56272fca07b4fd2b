package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream failure")

// fakeClock lets tests move time without sleeping
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
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(cfg Config) (*Breaker, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	b := New(cfg)
	b.now = clock.Now
	return b, clock
}

func fail() error    { return errUpstream }
func succeed() error { return nil }

func TestNew_Defaults(t *testing.T) {
	b := New(Config{})

	if b.State() != StateClosed {
		t.Errorf("expected closed, got %s", b.State())
	}
	if b.cfg.FailureThreshold != 5 || b.cfg.SuccessThreshold != 2 || b.cfg.Cooldown != 30*time.Second {
		t.Errorf("expected defaults to be applied, got %+v", b.cfg)
	}
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3, Cooldown: time.Second})

	for i := 0; i < 3; i++ {
		if err := b.Execute(fail); !errors.Is(err, errUpstream) {
			t.Fatalf("expected upstream error, got %v", err)
		}
	}

	if b.State() != StateOpen {
		t.Fatalf("expected open after 3 failures, got %s", b.State())
	}

	called := false
	err := b.Execute(func() error { called = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Errorf("expected ErrOpen, got %v", err)
	}
	if called {
		t.Error("expected fn not to run while open")
	}
	if got := b.Stats().Rejected; got != 1 {
		t.Errorf("expected 1 rejected, got %d", got)
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3, Cooldown: time.Second})

	b.Execute(fail)
	b.Execute(fail)
	b.Execute(succeed)
	b.Execute(fail)
	b.Execute(fail)

	if b.State() != StateClosed {
		t.Errorf("expected non-consecutive failures to keep the breaker closed, got %s", b.State())
	}
}

func TestBreaker_IsFailureClassifier(t *testing.T) {
	errNoFill := errors.New("no fill")
	b, _ := newTestBreaker(Config{
		FailureThreshold: 1,
		Cooldown:         time.Second,
		IsFailure:        func(err error) bool { return !errors.Is(err, errNoFill) },
	})

	for i := 0; i < 5; i++ {
		b.Execute(func() error { return errNoFill })
	}

	if b.State() != StateClosed {
		t.Errorf("expected ignored errors not to trip the breaker, got %s", b.State())
	}
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	b, clock := newTestBreaker(Config{FailureThreshold: 1, SuccessThreshold: 2, Cooldown: time.Minute})

	b.Execute(fail)
	if b.State() != StateOpen {
		t.Fatalf("expected open, got %s", b.State())
	}

	clock.Advance(time.Minute)

	if err := b.Execute(succeed); err != nil {
		t.Fatalf("expected probe to run, got %v", err)
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("expected half-open after one success, got %s", b.State())
	}
	if err := b.Execute(succeed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("expected closed after success threshold, got %s", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, clock := newTestBreaker(Config{FailureThreshold: 1, SuccessThreshold: 1, Cooldown: time.Minute})

	b.Execute(fail)
	clock.Advance(time.Minute)
	b.Execute(fail)

	if b.State() != StateOpen {
		t.Errorf("expected failed probe to reopen, got %s", b.State())
	}
	if err := b.Execute(succeed); !errors.Is(err, ErrOpen) {
		t.Errorf("expected cooldown to restart, got %v", err)
	}
}

func TestBreaker_HalfOpenSingleProbe(t *testing.T) {
	b, clock := newTestBreaker(Config{FailureThreshold: 1, SuccessThreshold: 1, Cooldown: time.Minute})

	b.Execute(fail)
	clock.Advance(time.Minute)

	probing := make(chan struct{})
	done := make(chan struct{})
	go func() {
		b.Execute(func() error {
			close(probing)
			<-done
			return nil
		})
	}()
	<-probing

	if err := b.Execute(succeed); !errors.Is(err, ErrOpen) {
		t.Errorf("expected concurrent probe to be rejected, got %v", err)
	}
	close(done)
}

func TestBreaker_MaxConcurrent(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 100, MaxConcurrent: 2, Cooldown: time.Second})

	started := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Execute(func() error {
				started <- struct{}{}
				<-release
				return nil
			})
		}()
	}
	<-started
	<-started

	if err := b.Execute(succeed); !errors.Is(err, ErrTooManyRequests) {
		t.Errorf("expected ErrTooManyRequests, got %v", err)
	}

	close(release)
	wg.Wait()

	if err := b.Execute(succeed); err != nil {
		t.Errorf("expected capacity after in-flight calls finish, got %v", err)
	}
}

func TestBreaker_OnStateChange(t *testing.T) {
	var mu sync.Mutex
	var changes []string

	b, _ := newTestBreaker(Config{
		FailureThreshold: 2,
		Cooldown:         time.Second,
		OnStateChange: func(from, to string) {
			mu.Lock()
			changes = append(changes, from+"->"+to)
			mu.Unlock()
		},
	})

	b.Execute(fail)
	b.Execute(fail)
	b.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(changes) != 1 || changes[0] != "closed->open" {
		t.Errorf("expected closed->open, got %v", changes)
	}
}

func TestBreaker_StatsAndReset(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3, Cooldown: time.Hour})

	for i := 0; i < 4; i++ {
		b.Execute(succeed)
	}
	for i := 0; i < 3; i++ {
		b.Execute(fail)
	}

	s := b.Stats()
	if s.Requests != 7 || s.Successes != 4 || s.Failures != 3 {
		t.Errorf("unexpected stats: %+v", s)
	}
	if s.State != StateOpen {
		t.Errorf("expected open, got %s", s.State)
	}

	b.Reset()
	if b.State() != StateClosed {
		t.Errorf("expected closed after reset, got %s", b.State())
	}
	if err := b.Execute(succeed); err != nil {
		t.Errorf("expected calls after reset, got %v", err)
	}
}
