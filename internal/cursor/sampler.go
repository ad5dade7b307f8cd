package cursor

import (
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// Adaptive outgoing sample pacing: fast gestures get the shortest minimum
// gap so they stay visually smooth, slow drift is cheap to send rarely.
const (
	fastInterval   = 16 * time.Millisecond
	mediumInterval = 25 * time.Millisecond
	slowInterval   = 50 * time.Millisecond

	fastTravelPx   = 40.0
	mediumTravelPx = 12.0
)

// scrollRate throttles the scroll-driven resend path to roughly 30 Hz.
const scrollRate rate.Limit = 30

// Sampler decides when a local pointer move is worth an outgoing cursor
// frame. It keeps the minimum gap between samples at 16/25/50 ms depending
// on how far the pointer travelled since the last accepted sample.
type Sampler struct {
	clock    clockwork.Clock
	lastSent time.Time
	lastX    float64
	lastY    float64
	primed   bool
}

// NewSampler creates a sampler on the given clock. A nil clock means the
// real clock.
func NewSampler(clock clockwork.Clock) *Sampler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Sampler{clock: clock}
}

// Offer reports whether a pointer sample at (x, y) should be sent now, and
// records it if so. The first offer is always accepted.
func (s *Sampler) Offer(x, y float64) bool {
	now := s.clock.Now()
	if !s.primed {
		s.accept(now, x, y)
		return true
	}

	travel := math.Hypot(x-s.lastX, y-s.lastY)
	interval := slowInterval
	switch {
	case travel >= fastTravelPx:
		interval = fastInterval
	case travel >= mediumTravelPx:
		interval = mediumInterval
	}

	if now.Sub(s.lastSent) < interval {
		return false
	}
	s.accept(now, x, y)
	return true
}

// Reset forgets pacing state, e.g. when navigating to a new article.
func (s *Sampler) Reset() {
	s.primed = false
}

func (s *Sampler) accept(now time.Time, x, y float64) {
	s.lastSent = now
	s.lastX, s.lastY = x, y
	s.primed = true
}

// NewScrollLimiter returns the throttle for scroll-driven resends: the
// pointer is stationary but scrolling changed the visible mapping, so a
// fresh sample goes out at most ~30 times a second.
func NewScrollLimiter() *rate.Limiter {
	return rate.NewLimiter(scrollRate, 1)
}
