package resilience

import (
	"sync"
	"time"

	"contentpipe/internal/domain"
)

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// BreakerConfig tunes a circuit breaker. The breaker opens when at least
// Threshold of the last Window calls failed.
type BreakerConfig struct {
	Window      int
	Threshold   int
	Cooldown    time.Duration
	MaxCooldown time.Duration
}

// DefaultBreakerConfig opens after 5 failures in the last 10 calls and cools
// down for 30 seconds, doubling up to 5 minutes on repeated trips.
var DefaultBreakerConfig = BreakerConfig{
	Window:      10,
	Threshold:   5,
	Cooldown:    30 * time.Second,
	MaxCooldown: 5 * time.Minute,
}

func (c BreakerConfig) normalized() BreakerConfig {
	if c.Window <= 0 {
		c.Window = DefaultBreakerConfig.Window
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultBreakerConfig.Threshold
	}
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultBreakerConfig.Cooldown
	}
	if c.MaxCooldown < c.Cooldown {
		c.MaxCooldown = DefaultBreakerConfig.MaxCooldown
	}
	return c
}

// Breaker is a circuit breaker over a sliding window of call outcomes.
// Closed passes calls through; Open fails them instantly; HalfOpen admits a
// single probe after the cooldown.
type Breaker struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	state    breakerState
	window   []bool // true = failure, most recent last
	openedAt time.Time
	cooldown time.Duration
	probing  bool
	now      func() time.Time
}

// NewBreaker creates a closed breaker with the given configuration.
func NewBreaker(cfg BreakerConfig) *Breaker {
	cfg = cfg.normalized()
	return &Breaker{cfg: cfg, cooldown: cfg.Cooldown, now: time.Now}
}

// Allow reports whether a call may proceed. In the Open state it returns
// domain.ErrCircuitOpen until the cooldown elapses, then admits exactly one
// probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case stateClosed:
		return nil
	case stateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return domain.ErrCircuitOpen
		}
		b.state = stateHalfOpen
		b.probing = true
		return nil
	default: // half-open
		if b.probing {
			return domain.ErrCircuitOpen
		}
		b.probing = true
		return nil
	}
}

// RecordSuccess notes a successful call. A successful half-open probe closes
// the breaker and resets the window and cooldown.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == stateHalfOpen {
		b.state = stateClosed
		b.window = b.window[:0]
		b.cooldown = b.cfg.Cooldown
		b.probing = false
		return
	}
	b.observe(false)
}

// RecordFailure notes a failed call. A failed half-open probe reopens the
// breaker and doubles the cooldown up to the configured cap.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.openedAt = b.now()
		b.probing = false
		b.cooldown *= 2
		if b.cooldown > b.cfg.MaxCooldown {
			b.cooldown = b.cfg.MaxCooldown
		}
		return
	}
	b.observe(true)
	if b.failures() >= b.cfg.Threshold {
		b.state = stateOpen
		b.openedAt = b.now()
		b.window = b.window[:0]
	}
}

func (b *Breaker) observe(failed bool) {
	b.window = append(b.window, failed)
	if len(b.window) > b.cfg.Window {
		b.window = b.window[len(b.window)-b.cfg.Window:]
	}
}

func (b *Breaker) failures() int {
	n := 0
	for _, failed := range b.window {
		if failed {
			n++
		}
	}
	return n
}

// Registry holds the process-wide breakers, one per dependency key.
type Registry struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	breakers map[string]*Breaker
}

// NewRegistry creates a registry whose breakers all share cfg.
func NewRegistry(cfg BreakerConfig) *Registry {
	return &Registry{cfg: cfg.normalized(), breakers: make(map[string]*Breaker)}
}

func (r *Registry) breaker(key string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	br, ok := r.breakers[key]
	if !ok {
		br = NewBreaker(r.cfg)
		r.breakers[key] = br
	}
	return br
}
