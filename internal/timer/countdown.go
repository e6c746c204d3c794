package timer

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// TickInterval is how often a running countdown recomputes its remaining time.
const TickInterval = 250 * time.Millisecond

// Callbacks receive countdown events. Both are invoked without any
// countdown lock held, so they may call back into the countdown. OnTick
// fires when the whole-second value changes, and once on the first tick
// after Start.
type Callbacks struct {
	OnTick   func(remaining, total int)
	OnExpire func()
}

// Countdown counts whole seconds down to zero. Remaining time is derived
// from the clock on every tick rather than decremented, so late ticks do
// not drift.
type Countdown struct {
	clock Clock
	cb    Callbacks

	mu             sync.Mutex
	total          int
	remaining      int
	startRemaining int
	startedAt      time.Time
	reported       int
	running        bool
	gen            uint64
	timer          Timer
}

// NewCountdown returns a stopped countdown seeded with seconds.
func NewCountdown(clock Clock, seconds int, cb Callbacks) *Countdown {
	if clock == nil {
		clock = RealClock
	}
	return &Countdown{clock: clock, cb: cb, total: seconds, remaining: seconds}
}

// Start (re)starts counting from the current remaining value.
func (c *Countdown) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.gen++
	c.running = true
	c.startedAt = c.clock.Now()
	c.startRemaining = c.remaining
	c.reported = -1
	c.scheduleLocked(c.gen)
}

// Stop halts the countdown, keeping the remaining value.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Reset stops the countdown and reseeds it with seconds.
func (c *Countdown) Reset(seconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.total = seconds
	c.remaining = seconds
}

// Remaining returns the last computed number of whole seconds left.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Total returns the seed of the current run.
func (c *Countdown) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Running reports whether the countdown is ticking.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Countdown) stopLocked() {
	c.gen++
	c.running = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Countdown) scheduleLocked(gen uint64) {
	c.timer = c.clock.AfterFunc(TickInterval, func() { c.tick(gen) })
}

func (c *Countdown) tick(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || !c.running {
		c.mu.Unlock()
		return
	}
	elapsed := c.clock.Now().Sub(c.startedAt).Seconds()
	c.remaining = max(0, int(math.Ceil(float64(c.startRemaining)-elapsed)))
	remaining, total := c.remaining, c.total
	changed := remaining != c.reported
	c.reported = remaining
	expired := remaining <= 0
	if expired {
		c.stopLocked()
	} else {
		c.scheduleLocked(gen)
	}
	c.mu.Unlock()

	if changed && c.cb.OnTick != nil {
		c.cb.OnTick(remaining, total)
	}
	if expired && c.cb.OnExpire != nil {
		c.cb.OnExpire()
	}
}

// FormatTime renders seconds as mm:ss. Negative input renders as 00:00.
func FormatTime(seconds int) string {
	s := max(0, seconds)
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}
