package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(cfg Config) (*Breaker, *clock) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := New(cfg)
	b.now = c.now
	b.newGeneration(c.now())
	return b, c
}

var errBoom = errors.New("boom")

func fail(context.Context) error    { return errBoom }
func succeed(context.Context) error { return nil }

func tripAfter(n uint32) Config {
	return Config{
		Name:     "test",
		Cooldown: time.Minute,
		Trip:     func(c Counts) bool { return c.ConsecutiveFailures >= n },
	}
}

func TestBreaker_StartsClosed(t *testing.T) {
	b := New(DefaultConfig("test"))
	if b.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", b.State())
	}
	if b.Name() != "test" {
		t.Errorf("Name() = %q", b.Name())
	}
}

func TestBreaker_TripsAndRejects(t *testing.T) {
	b, _ := newTestBreaker(tripAfter(3))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.Do(ctx, fail); !errors.Is(err, errBoom) {
			t.Fatalf("call %d error = %v, want errBoom", i, err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	called := false
	err := b.Do(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrOpen) {
		t.Errorf("error = %v, want ErrOpen", err)
	}
	if called {
		t.Error("open breaker must not call through")
	}
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	b, c := newTestBreaker(tripAfter(1))
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	c.advance(time.Minute + time.Second)
	if b.State() != StateHalfOpen {
		t.Fatalf("state after cool-down = %v, want half-open", b.State())
	}

	if err := b.Do(ctx, succeed); err != nil {
		t.Fatalf("probe error = %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("state after probe = %v, want closed", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, c := newTestBreaker(tripAfter(1))
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	c.advance(2 * time.Minute)
	_ = b.Do(ctx, fail)

	if b.State() != StateOpen {
		t.Errorf("state = %v, want open", b.State())
	}
}

func TestBreaker_ProbeLimit(t *testing.T) {
	b, c := newTestBreaker(tripAfter(1))
	ctx := context.Background()
	_ = b.Do(ctx, fail)
	c.advance(2 * time.Minute)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Do(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if err := b.Do(ctx, succeed); !errors.Is(err, ErrTooManyProbes) {
		t.Errorf("second probe error = %v, want ErrTooManyProbes", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Errorf("first probe error = %v", err)
	}
}

func TestBreaker_FailedFilter(t *testing.T) {
	cfg := tripAfter(1)
	cfg.Failed = func(err error) bool { return !errors.Is(err, errBoom) }
	b, _ := newTestBreaker(cfg)

	_ = b.Do(context.Background(), fail)
	if b.State() != StateClosed {
		t.Errorf("filtered error tripped the breaker")
	}
	if got := b.Counts().Successes; got != 1 {
		t.Errorf("Successes = %d, want 1", got)
	}
}

func TestBreaker_CanceledContext(t *testing.T) {
	b, _ := newTestBreaker(tripAfter(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := b.Do(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if called {
		t.Error("canceled call must not run")
	}
	if b.State() != StateClosed {
		t.Error("cancellation must not trip the breaker")
	}
}

func TestBreaker_IntervalClearsCounts(t *testing.T) {
	cfg := tripAfter(2)
	cfg.Interval = time.Minute
	b, c := newTestBreaker(cfg)
	ctx := context.Background()

	_ = b.Do(ctx, fail)
	c.advance(2 * time.Minute)
	_ = b.Do(ctx, fail)

	if b.State() != StateClosed {
		t.Errorf("failures in separate intervals must not trip")
	}
	if got := b.Counts().Failures; got != 1 {
		t.Errorf("Failures = %d, want 1", got)
	}
}

func TestBreaker_OnStateChange(t *testing.T) {
	var transitions []string
	cfg := tripAfter(1)
	cfg.OnStateChange = func(name string, from, to State) {
		transitions = append(transitions, name+":"+from.String()+"->"+to.String())
	}
	b, c := newTestBreaker(cfg)

	_ = b.Do(context.Background(), fail)
	c.advance(2 * time.Minute)
	_ = b.Do(context.Background(), succeed)

	want := []string{"test:closed->open", "test:open->half-open", "test:half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestCall(t *testing.T) {
	b, _ := newTestBreaker(tripAfter(1))
	got, err := Call(context.Background(), b, func(context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Errorf("Call() = %q, %v", got, err)
	}

	_, err = Call(context.Background(), b, func(context.Context) (int, error) { return 0, errBoom })
	if !errors.Is(err, errBoom) {
		t.Errorf("Call() error = %v", err)
	}
	if _, err := Call(context.Background(), b, func(context.Context) (int, error) { return 1, nil }); !errors.Is(err, ErrOpen) {
		t.Errorf("Call() on open breaker error = %v", err)
	}
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		StateClosed:   "closed",
		StateOpen:     "open",
		StateHalfOpen: "half-open",
		State(9):      "unknown",
	}
	for s, want := range tests {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(nil)
	a := r.Get("openrouter")
	if r.Get("openrouter") != a {
		t.Error("Get() should return the same breaker per name")
	}
	r.Get("anthropic")

	names := r.Names()
	if len(names) != 2 || names[0] != "anthropic" || names[1] != "openrouter" {
		t.Errorf("Names() = %v", names)
	}
	if r.States()["openrouter"] != StateClosed {
		t.Errorf("States() = %v", r.States())
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry(nil)
	var wg sync.WaitGroup
	got := make([]*Breaker, 20)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = r.Get("shared")
		}(i)
	}
	wg.Wait()
	for _, b := range got[1:] {
		if b != got[0] {
			t.Fatal("concurrent Get() created more than one breaker")
		}
	}
}
