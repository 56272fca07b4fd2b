// Package circuitbreaker guards calls to a flaky upstream
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// Breaker states
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half-open"
)

var (
	// ErrOpen is returned when the breaker rejects a call
	ErrOpen = errors.New("circuit breaker is open")

	// ErrTooManyRequests is returned when MaxConcurrent calls are already in flight
	ErrTooManyRequests = errors.New("circuit breaker concurrency limit reached")
)

// Config holds breaker configuration
type Config struct {
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // half-open successes before closing
	Cooldown         time.Duration // time spent open before probing
	MaxConcurrent    int           // 0 = unlimited

	// IsFailure classifies a call result. Nil counts every non-nil error.
	IsFailure func(err error) bool

	OnStateChange func(from, to string)
}

// DefaultConfig returns defaults suited to a partner ad endpoint
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Cooldown:         30 * time.Second,
		MaxConcurrent:    100,
	}
}

// Breaker implements the circuit breaker pattern
type Breaker struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	state     string
	failures  int
	successes int
	openedAt  time.Time
	inFlight  int
	stats     Stats

	callbacks sync.WaitGroup
}

// Stats holds breaker counters
type Stats struct {
	State     string `json:"state"`
	Requests  int64  `json:"requests"`
	Failures  int64  `json:"failures"`
	Successes int64  `json:"successes"`
	Rejected  int64  `json:"rejected"`
	InFlight  int    `json:"in_flight"`
}

// New creates a closed breaker. Zero thresholds fall back to DefaultConfig values.
func New(cfg Config) *Breaker {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	return &Breaker{cfg: cfg, now: time.Now, state: StateClosed}
}

// Execute runs fn unless the breaker is open
func (b *Breaker) Execute(fn func() error) error {
	if err := b.acquire(); err != nil {
		return err
	}
	err := fn()
	b.release(err)
	return err
}

func (b *Breaker) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.Requests++

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			b.stats.Rejected++
			return ErrOpen
		}
		b.setState(StateHalfOpen)
		b.inFlight++
		return nil

	case StateHalfOpen:
		// one probe at a time
		if b.inFlight > 0 {
			b.stats.Rejected++
			return ErrOpen
		}
		b.inFlight++
		return nil
	}

	if b.cfg.MaxConcurrent > 0 && b.inFlight >= b.cfg.MaxConcurrent {
		b.stats.Rejected++
		return ErrTooManyRequests
	}
	b.inFlight++
	return nil
}

func (b *Breaker) release(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.inFlight--

	if b.failed(err) {
		b.stats.Failures++
		b.failures++
		b.successes = 0
		switch b.state {
		case StateClosed:
			if b.failures >= b.cfg.FailureThreshold {
				b.trip()
			}
		case StateHalfOpen:
			b.trip()
		}
		return
	}

	b.stats.Successes++
	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.failures = 0
			b.setState(StateClosed)
		}
	}
}

func (b *Breaker) failed(err error) bool {
	if err == nil {
		return false
	}
	if b.cfg.IsFailure == nil {
		return true
	}
	return b.cfg.IsFailure(err)
}

func (b *Breaker) trip() {
	b.openedAt = b.now()
	b.setState(StateOpen)
}

// setState must be called with mu held
func (b *Breaker) setState(to string) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.successes = 0

	if b.cfg.OnStateChange != nil {
		b.callbacks.Add(1)
		go func() {
			defer b.callbacks.Done()
			b.cfg.OnStateChange(from, to)
		}()
	}
}

// State returns the current state
func (b *Breaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Stats returns a snapshot of the breaker counters
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.stats
	s.State = b.state
	s.InFlight = b.inFlight
	return s
}

// Reset closes the breaker and clears failure counts
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.setState(StateClosed)
}

// Close waits for pending state change callbacks
func (b *Breaker) Close() {
	b.callbacks.Wait()
}
