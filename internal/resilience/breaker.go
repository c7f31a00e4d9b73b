// Package resilience guards calls to flaky external services, such as the
// completion providers, with circuit breakers.
package resilience

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// State of a breaker
type State int32

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects calls until the cool-down expires.
	StateOpen
	// StateHalfOpen lets a limited number of probe calls through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

var (
	// ErrOpen is returned without calling through while the breaker is open.
	ErrOpen = errors.New("circuit breaker is open")

	// ErrTooManyProbes is returned when every half-open probe slot is taken.
	ErrTooManyProbes = errors.New("too many requests in half-open state")
)

// Counts tallies calls within the current generation
type Counts struct {
	Requests             uint32
	Successes            uint32
	Failures             uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Config configures a Breaker
type Config struct {
	Name string

	// Probes is how many calls half-open admits, and how many consecutive
	// successes close it again.
	Probes uint32

	// Interval clears the closed-state counts periodically. Zero never clears.
	Interval time.Duration

	// Cooldown is how long the breaker stays open.
	Cooldown time.Duration

	// Trip decides, after each failure, whether to open.
	Trip func(Counts) bool

	// Failed decides whether an error counts against the breaker. Context
	// cancellation never does.
	Failed func(error) bool

	OnStateChange func(name string, from, to State)
}

// DefaultConfig trips after five consecutive failures and cools down for 30s.
func DefaultConfig(name string) Config {
	return Config{
		Name:     name,
		Probes:   1,
		Interval: time.Minute,
		Cooldown: 30 * time.Second,
		Trip: func(c Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	}
}

// Breaker is a circuit breaker. The zero value is not usable; use New.
type Breaker struct {
	cfg Config
	now func() time.Time

	mu         sync.Mutex
	state      State
	generation uint64
	counts     Counts
	expiry     time.Time
	probes     uint32
}

// New builds a closed breaker, filling unset Config fields with defaults.
func New(cfg Config) *Breaker {
	def := DefaultConfig(cfg.Name)
	if cfg.Probes == 0 {
		cfg.Probes = def.Probes
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.Trip == nil {
		cfg.Trip = def.Trip
	}
	if cfg.Failed == nil {
		cfg.Failed = func(err error) bool { return err != nil }
	}
	b := &Breaker{cfg: cfg, now: time.Now}
	b.newGeneration(b.now())
	return b
}

// Name returns the configured name.
func (b *Breaker) Name() string { return b.cfg.Name }

// State returns the current state, applying any expired cool-down.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, _ := b.current(b.now())
	return s
}

// Counts returns a snapshot of the current generation's counts.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Do runs fn unless the breaker rejects the call.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	gen, err := b.before()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		b.after(gen, err)
		return err
	}
	err = fn(ctx)
	b.after(gen, err)
	return err
}

// Call runs fn through b and returns its value.
func Call[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := b.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

func (b *Breaker) before() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, gen := b.current(b.now())
	switch state {
	case StateOpen:
		return gen, ErrOpen
	case StateHalfOpen:
		if b.probes >= b.cfg.Probes {
			return gen, ErrTooManyProbes
		}
		b.probes++
	}
	b.counts.Requests++
	return gen, nil
}

func (b *Breaker) after(gen uint64, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	state, current := b.current(now)
	if current != gen {
		return
	}

	failed := err != nil && !errors.Is(err, context.Canceled) && b.cfg.Failed(err)
	if !failed {
		b.counts.Successes++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
		if state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.cfg.Probes {
			b.setState(StateClosed, now)
		}
		return
	}

	b.counts.Failures++
	b.counts.ConsecutiveFailures++
	b.counts.ConsecutiveSuccesses = 0
	switch state {
	case StateClosed:
		if b.cfg.Trip(b.counts) {
			b.setState(StateOpen, now)
		}
	case StateHalfOpen:
		b.setState(StateOpen, now)
	}
}

func (b *Breaker) current(now time.Time) (State, uint64) {
	switch b.state {
	case StateClosed:
		if !b.expiry.IsZero() && b.expiry.Before(now) {
			b.newGeneration(now)
		}
	case StateOpen:
		if b.expiry.Before(now) {
			b.setState(StateHalfOpen, now)
		}
	}
	return b.state, b.generation
}

func (b *Breaker) setState(s State, now time.Time) {
	if b.state == s {
		return
	}
	prev := b.state
	b.state = s
	b.newGeneration(now)
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, prev, s)
	}
}

func (b *Breaker) newGeneration(now time.Time) {
	b.generation++
	b.counts = Counts{}
	b.probes = 0

	switch b.state {
	case StateClosed:
		b.expiry = time.Time{}
		if b.cfg.Interval > 0 {
			b.expiry = now.Add(b.cfg.Interval)
		}
	case StateOpen:
		b.expiry = now.Add(b.cfg.Cooldown)
	case StateHalfOpen:
		b.expiry = time.Time{}
	}
}

// Registry hands out one breaker per name
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	defaults func(name string) Config
}

// NewRegistry builds breakers from defaults, or DefaultConfig when nil.
func NewRegistry(defaults func(name string) Config) *Registry {
	if defaults == nil {
		defaults = DefaultConfig
	}
	return &Registry{breakers: make(map[string]*Breaker), defaults: defaults}
}

// Get returns the breaker for name, creating it on first use.
func (r *Registry) Get(name string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	cfg := r.defaults(name)
	cfg.Name = name
	b = New(cfg)
	r.breakers[name] = b
	return b
}

// States reports every breaker's state by name.
func (r *Registry) States() map[string]State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]State, len(r.breakers))
	for name, b := range r.breakers {
		out[name] = b.State()
	}
	return out
}

// Names lists the registered breakers, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
