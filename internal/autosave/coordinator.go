package autosave

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultDelay is the quiet period after the last draft change.
	DefaultDelay = 5 * time.Second
	// DefaultTimeout bounds a single save.
	DefaultTimeout = 30 * time.Second
)

// Target is what the coordinator saves.
type Target interface {
	Autosave(ctx context.Context) error
}

type Options struct {
	Delay   time.Duration
	Timeout time.Duration
	Clock   Clock
	Logger  *zap.Logger
}

// Stats counts coordinator outcomes.
type Stats struct {
	Saves    int
	Dropped  int
	Failures int
}

// Coordinator debounces change notifications into saves. A fire that lands
// while a save is in flight is dropped, not queued; the next change
// schedules a fresh attempt, and Flush picks up a dropped one.
type Coordinator struct {
	target   Target
	debounce *Debouncer
	timeout  time.Duration
	log      *zap.Logger

	mu       sync.Mutex
	idle     *sync.Cond
	inFlight bool
	// missed is set when a fire was dropped after the running save had
	// already captured its state.
	missed  bool
	closed  bool
	stats   Stats
	running sync.WaitGroup
}

func New(target Target, opts Options) *Coordinator {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	c := &Coordinator{
		target:   target,
		debounce: NewDebouncer(opts.Delay, opts.Clock),
		timeout:  opts.Timeout,
		log:      log.Named("autosave"),
	}
	c.idle = sync.NewCond(&c.mu)
	return c
}

// Notify records a change and restarts the countdown.
func (c *Coordinator) Notify() {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	c.debounce.Schedule(c.fire)
}

func (c *Coordinator) fire() {
	if !c.begin() {
		return
	}
	defer c.running.Done()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	c.finish(c.target.Autosave(ctx))
}

// begin claims the in-flight flag. It reports false when the save must be
// skipped.
func (c *Coordinator) begin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	if c.inFlight {
		c.stats.Dropped++
		c.missed = true
		c.log.Debug("save already in flight, dropping")
		return false
	}
	c.claim()
	return true
}

// claim marks a save as running. c.mu must be held.
func (c *Coordinator) claim() {
	c.inFlight = true
	c.missed = false
	c.running.Add(1)
}

func (c *Coordinator) finish(err error) {
	c.mu.Lock()
	c.inFlight = false
	c.idle.Broadcast()
	if err != nil {
		c.stats.Failures++
	} else {
		c.stats.Saves++
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("autosave failed", zap.Error(err))
		return
	}
	c.log.Debug("autosaved")
}

// Flush runs a pending save now. A save already in flight is waited for
// first, so a change made while it ran is still written. Flush reports false
// when nothing was pending.
func (c *Coordinator) Flush(ctx context.Context) (bool, error) {
	c.mu.Lock()
	for c.inFlight && !c.closed {
		c.idle.Wait()
	}
	if c.closed {
		c.mu.Unlock()
		return false, nil
	}
	missed := c.missed
	c.claim()
	c.mu.Unlock()
	defer c.running.Done()

	// A fire racing the claim is dropped and marks missed, so checking it
	// again after the claim covers that case.
	pending := c.debounce.Cancel()
	c.mu.Lock()
	pending = pending || missed || c.missed
	c.missed = false
	if !pending {
		c.inFlight = false
		c.idle.Broadcast()
		c.mu.Unlock()
		return false, nil
	}
	c.mu.Unlock()

	err := c.target.Autosave(ctx)
	c.finish(err)
	return err == nil, err
}

// Pending reports whether a save is scheduled.
func (c *Coordinator) Pending() bool { return c.debounce.Pending() }

func (c *Coordinator) busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Close cancels any pending save and waits for a running one to finish.
// Later notifications are ignored.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.idle.Broadcast()
	c.mu.Unlock()
	if c.debounce.Cancel() {
		c.log.Debug("pending autosave cancelled on close")
	}
	c.running.Wait()
}
