package cursor

import (
	"sync"

	"github.com/pageracer/pageracer"
)

// Pool owns one visual per remote player, created on join and destroyed on
// leave, updated by direct mutation each render tick. It lives entirely
// outside the declarative state of the rest of the UI: per-frame updates
// for many players must never churn the view tree.
type Pool struct {
	mu      sync.Mutex
	visuals map[string]*visual
}

type visual struct {
	name     string
	color    string
	shape    pageracer.CursorShape
	smoother Smoother
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{visuals: make(map[string]*visual)}
}

// Upsert records the latest decoded target for a player, creating the
// visual on first sight. Samples are last-value-wins per player.
func (p *Pool) Upsert(playerID, name, color string, shape pageracer.CursorShape, x, y float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	v, ok := p.visuals[playerID]
	if !ok {
		v = &visual{}
		p.visuals[playerID] = v
	}
	v.name = name
	v.color = color
	v.shape = shape
	v.smoother.SetTarget(x, y)
}

// Remove destroys a player's visual, e.g. on player_left.
func (p *Pool) Remove(playerID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.visuals, playerID)
}

// Clear destroys every visual, e.g. when the local article changes.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.visuals = make(map[string]*visual)
}

// SnapAll resets smoothing state after a viewport resize so no cursor
// travels between the old and new geometry.
func (p *Pool) SnapAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, v := range p.visuals {
		v.smoother.Snap()
	}
}

// Tick advances every visual one animation frame and emits a render
// instruction per player. Bounded work per call; the caller owns the frame
// cadence.
func (p *Pool) Tick(render func(pageracer.CursorRender)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, v := range p.visuals {
		x, y := v.smoother.Step()
		render(pageracer.CursorRender{
			PlayerID: id,
			Name:     v.name,
			Color:    v.color,
			Shape:    v.shape,
			X:        x,
			Y:        y,
		})
	}
}
