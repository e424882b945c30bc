package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNilRefreshFunc is returned by [New] when no refresh function is supplied.
var ErrNilRefreshFunc = errors.New("refresh func required")

// Phase is the coordinator state.
type Phase uint8

const (
	// Idle means no refresh is in flight.
	Idle Phase = iota
	// Refreshing means exactly one refresh call is in flight.
	Refreshing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Refreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Func performs one refresh. The context it receives is detached from the
// leader's cancellation; bounding it is the function's responsibility.
type Func func(ctx context.Context) error

// Result describes how a caller took part in a refresh.
type Result struct {
	// Leader is true for the caller that ran the refresh function.
	Leader bool
	// Generation identifies the refresh round the caller observed.
	Generation uint64
	// Waited is how long the caller waited for the outcome.
	Waited time.Duration
}

// Stats is a point-in-time copy of coordinator counters.
type Stats struct {
	Started   uint64
	Coalesced uint64
	Failed    uint64
	Abandoned uint64
}

// Options configures a [Coordinator].
type Options struct {
	// OnFailure runs after a failed refresh, after the coordinator is back to
	// Idle and before any waiter is released.
	OnFailure func(err error)
	// Timeout bounds the refresh function. Zero means no additional bound.
	Timeout time.Duration
}

type outcome struct {
	generation uint64
	err        error
}

// Coordinator guarantees at most one in-flight refresh.
type Coordinator struct {
	refresh Func
	opts    Options

	mu         sync.Mutex
	phase      Phase
	generation uint64
	waiters    []chan outcome

	started   atomic.Uint64
	coalesced atomic.Uint64
	failed    atomic.Uint64
	abandoned atomic.Uint64
}

// New returns an idle coordinator around fn.
func New(fn Func, opts Options) (*Coordinator, error) {
	if fn == nil {
		return nil, ErrNilRefreshFunc
	}
	return &Coordinator{refresh: fn, opts: opts}, nil
}

// Phase returns the current state.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Do joins the current refresh round, starting one if the coordinator is Idle,
// and returns that round's outcome. A waiter whose ctx ends stops waiting and
// returns ctx.Err(); the round itself is unaffected.
func (c *Coordinator) Do(ctx context.Context) (Result, error) {
	start := time.Now()

	c.mu.Lock()
	if c.phase == Refreshing {
		ch := make(chan outcome, 1)
		c.waiters = append(c.waiters, ch)
		gen := c.generation
		c.mu.Unlock()
		c.coalesced.Add(1)

		select {
		case out := <-ch:
			return Result{Generation: out.generation, Waited: time.Since(start)}, out.err
		case <-ctx.Done():
			c.abandoned.Add(1)
			return Result{Generation: gen, Waited: time.Since(start)}, ctx.Err()
		}
	}

	c.phase = Refreshing
	c.generation++
	gen := c.generation
	c.mu.Unlock()
	c.started.Add(1)

	err := c.run(context.WithoutCancel(ctx))

	c.mu.Lock()
	waiters := c.waiters
	c.waiters = nil
	c.phase = Idle
	c.mu.Unlock()

	if err != nil {
		c.failed.Add(1)
		if c.opts.OnFailure != nil {
			c.opts.OnFailure(err)
		}
	}

	out := outcome{generation: gen, err: err}
	for _, ch := range waiters {
		ch <- out
	}

	return Result{Leader: true, Generation: gen, Waited: time.Since(start)}, err
}

func (c *Coordinator) run(ctx context.Context) (err error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("refresh func panicked")
		}
	}()
	return c.refresh(ctx)
}

// Stats returns a snapshot of the coordinator counters.
func (c *Coordinator) Stats() Stats {
	return Stats{
		Started:   c.started.Load(),
		Coalesced: c.coalesced.Load(),
		Failed:    c.failed.Load(),
		Abandoned: c.abandoned.Load(),
	}
}
