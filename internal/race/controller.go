// Package race tracks the local player's elapsed time and the race-level
// grace period that forces non-finishers to the results view. Everything
// time-dependent derives from captured timestamps rather than counting
// ticks, so backgrounded tabs and coalesced timers cannot drift the
// countdown.
package race

import (
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// LocalState is the local player's progression.
type LocalState int

const (
	Idle LocalState = iota
	Running
	Finished
)

// Phase is the race-level progression shared by all players.
type Phase int

const (
	// InProgress: nobody has finished yet.
	InProgress Phase = iota
	// GracePeriod: the first finisher has been observed; the countdown for
	// everyone else is running.
	GracePeriod
	// Closed: the grace period elapsed. Still-running players are forced
	// to results as "did not finish".
	Closed
)

const (
	// DefaultGracePeriod is how long non-finishers may keep racing after
	// the first finish.
	DefaultGracePeriod = 30 * time.Second
	// DefaultNotificationDelay holds the countdown back briefly so the
	// finish notification can animate first.
	DefaultNotificationDelay = 2 * time.Second

	// deltaThreshold is the cosmetic ahead/behind cutoff for segment time
	// deltas on the scoreboard. A display heuristic, nothing depends on it.
	deltaThreshold = 60 * time.Second
)

// Config configures a Controller. Zero durations take the defaults; a nil
// clock means the real clock.
type Config struct {
	Clock             clockwork.Clock
	GracePeriod       time.Duration
	NotificationDelay time.Duration
}

// Controller is the per-race state machine. All methods are safe for
// concurrent use.
type Controller struct {
	clock clockwork.Clock
	grace time.Duration
	delay time.Duration

	mu          sync.Mutex
	destination string
	startedAt   time.Time // zero until the local content first loaded
	finishedAt  time.Time // zero until the local player finished
	endedAt     time.Time // zero until any player's finish was observed
}

// New creates a Controller in the idle state.
func New(cfg Config) *Controller {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	delay := cfg.NotificationDelay
	if delay <= 0 {
		delay = DefaultNotificationDelay
	}
	return &Controller{clock: clock, grace: grace, delay: delay}
}

// SetDestination records the target article, normalized for matching.
func (c *Controller) SetDestination(article string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destination = Normalize(article)
}

// StartLocal transitions idle to running, capturing the wall-clock start
// exactly once. Called when the local article content has finished loading
// for the first time; later calls are no-ops.
func (c *Controller) StartLocal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startedAt.IsZero() {
		c.startedAt = c.clock.Now()
	}
}

// LocalState returns the local player's state.
func (c *Controller) LocalState() LocalState {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case !c.finishedAt.IsZero():
		return Finished
	case !c.startedAt.IsZero():
		return Running
	default:
		return Idle
	}
}

// Elapsed returns the local player's running time: up to now while running,
// frozen at the finish once finished, zero while idle.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.startedAt.IsZero():
		return 0
	case c.finishedAt.IsZero():
		return c.clock.Now().Sub(c.startedAt)
	default:
		return c.finishedAt.Sub(c.startedAt)
	}
}

// ObserveArticle checks a navigation against the destination. When the
// article normalizes to the destination it transitions running to finished
// and returns the elapsed milliseconds with ok=true, exactly once, however
// often the destination condition is re-evaluated afterwards.
func (c *Controller) ObserveArticle(article string) (elapsedMs int64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.startedAt.IsZero() || !c.finishedAt.IsZero() {
		return 0, false
	}
	if c.destination == "" || Normalize(article) != c.destination {
		return 0, false
	}

	c.finishedAt = c.clock.Now()
	return c.finishedAt.Sub(c.startedAt).Milliseconds(), true
}

// ObserveAnyFinish records the first observed finish of any player,
// including possibly the local one. The timestamp is captured once and
// never overwritten by later finishers.
func (c *Controller) ObserveAnyFinish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.endedAt.IsZero() {
		c.endedAt = c.clock.Now()
	}
}

// Phase returns the race-level phase, derived from the first-finish
// timestamp and the clock.
func (c *Controller) Phase() Phase {
	remaining, active := c.CountdownRemaining()
	switch {
	case !active:
		return InProgress
	case remaining > 0:
		return GracePeriod
	default:
		return Closed
	}
}

// CountdownRemaining derives the grace countdown from
// now - (endedAt + notificationDelay). It returns active=false while no
// finish has been observed. Before the notification delay has passed the
// full grace period is reported; after the period it is clamped at zero.
func (c *Controller) CountdownRemaining() (remaining time.Duration, active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.endedAt.IsZero() {
		return 0, false
	}

	sinceStart := c.clock.Now().Sub(c.endedAt.Add(c.delay))
	if sinceStart < 0 {
		return c.grace, true
	}
	remaining = c.grace - sinceStart
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// Normalize canonicalizes an article title for destination matching:
// case-insensitive, underscore- and whitespace-insensitive.
func Normalize(title string) string {
	title = strings.ToLower(strings.ReplaceAll(title, "_", " "))
	return strings.Join(strings.Fields(title), " ")
}

// DeltaClass classifies a segment time delta for scoreboard coloring:
// "ahead" under the fixed 60-second cutoff, "behind" at or above it. Purely
// cosmetic.
func DeltaClass(delta time.Duration) string {
	if delta < deltaThreshold {
		return "ahead"
	}
	return "behind"
}
