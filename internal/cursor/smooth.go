package cursor

// smoothFactor is the fraction of the remaining distance covered per
// animation tick. Periodic network samples arrive with visible jitter;
// moving a fixed fraction toward the latest target each tick hides it
// without ever lagging unboundedly.
const smoothFactor = 0.3

// Smoother exponentially interpolates a displayed position toward the most
// recent decoded target.
type Smoother struct {
	x, y             float64
	targetX, targetY float64
	primed           bool
}

// SetTarget records the latest decoded position. The first target snaps the
// displayed position so a newly appeared cursor does not travel in from the
// origin.
func (s *Smoother) SetTarget(x, y float64) {
	s.targetX, s.targetY = x, y
	if !s.primed {
		s.x, s.y = x, y
		s.primed = true
	}
}

// Step advances the displayed position one tick and returns it.
func (s *Smoother) Step() (float64, float64) {
	s.x += (s.targetX - s.x) * smoothFactor
	s.y += (s.targetY - s.y) * smoothFactor
	return s.x, s.y
}

// Snap jumps straight to the current target. Called on viewport resize:
// interpolating across a resize produces a visible travel artifact, since
// both the old and new positions are "correct" in different geometries.
func (s *Smoother) Snap() {
	s.x, s.y = s.targetX, s.targetY
}

// Position returns the displayed position without advancing it.
func (s *Smoother) Position() (float64, float64) {
	return s.x, s.y
}
