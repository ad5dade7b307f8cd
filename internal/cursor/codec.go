// Package cursor shares pointer positions between clients whose renderings
// of the same article differ in pixel height (viewport width reflows
// paragraph wrapping). A plain fraction-of-total-height encoding makes a
// remote cursor drift away from the heading the sender is pointing at; the
// codec instead anchors the vertical position to the nearest headings,
// which are structurally identical across renderings of the same content.
package cursor

import (
	"github.com/pageracer/pageracer"
	"github.com/pageracer/pageracer/internal/protocol"
)

// Tier is the precision level a decode achieved. Decode always picks the
// highest tier the local layout can satisfy; this priority order is part of
// the protocol contract, not an optimization.
type Tier int

const (
	// TierBothAnchors interpolates between two locally resolved headings.
	TierBothAnchors Tier = iota
	// TierPrevAnchor interpolates from the previous heading to the
	// document bottom.
	TierPrevAnchor
	// TierNextAnchor interpolates from the document top to the next
	// heading.
	TierNextAnchor
	// TierFallback scales the plain height fraction. Always satisfiable.
	TierFallback
)

// Encode converts a raw pointer position, in pixels relative to the local
// article container, into the layout-independent wire form. The plain
// fallback fraction is always included so a receiver that resolves neither
// anchor still gets an approximate position.
func Encode(layout pageracer.Layout, x, y float64, article string, shape pageracer.CursorShape) protocol.CursorPayload {
	width := layout.ContentWidth()
	height := layout.ContentHeight()

	sample := protocol.CursorPayload{
		X:          fraction(x, width),
		Y:          fraction(y, height),
		Article:    article,
		CursorType: shape,
	}

	// Bracket the pointer with the nearest headings above and below. The
	// document top and bottom stand in as virtual boundaries when either
	// side is absent.
	prevTop, nextTop := 0.0, height
	for _, h := range layout.Headings() {
		if h.Top <= y {
			sample.AnchorID = h.AnchorID
			prevTop = h.Top
		} else {
			sample.NextAnchorID = h.AnchorID
			nextTop = h.Top
			break
		}
	}

	ratio := 0.0
	if span := nextTop - prevTop; span > 0 {
		ratio = clamp01((y - prevTop) / span)
	}
	sample.SectionRatio = &ratio

	return sample
}

// Decode resolves a received sample against the local rendering of the same
// article, returning container-relative pixels and the precision tier used.
// Anchors are matched by identifier, never by position. Resolution failure
// is never fatal: the fallback tier always produces a renderable position.
func Decode(layout pageracer.Layout, sample protocol.CursorUpdatePayload) (x, y float64, tier Tier) {
	width := layout.ContentWidth()
	height := layout.ContentHeight()

	x = clamp01(sample.X) * width

	prevTop, prevOK := headingTop(layout, sample.AnchorID)
	nextTop, nextOK := headingTop(layout, sample.NextAnchorID)

	hasRatio := sample.SectionRatio != nil
	ratio := 0.0
	if hasRatio {
		ratio = clamp01(*sample.SectionRatio)
	}

	switch {
	case prevOK && nextOK && hasRatio:
		tier = TierBothAnchors
		y = prevTop + (nextTop-prevTop)*ratio
	case prevOK && hasRatio:
		tier = TierPrevAnchor
		y = prevTop + (height-prevTop)*ratio
	case nextOK && hasRatio:
		tier = TierNextAnchor
		y = nextTop * ratio
	default:
		tier = TierFallback
		y = clamp01(sample.Y) * height
	}

	if y < 0 {
		y = 0
	}
	if y > height {
		y = height
	}
	return x, y, tier
}

func headingTop(layout pageracer.Layout, anchorID string) (float64, bool) {
	if anchorID == "" {
		return 0, false
	}
	for _, h := range layout.Headings() {
		if h.AnchorID == anchorID {
			return h.Top, true
		}
	}
	return 0, false
}

func fraction(v, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return clamp01(v / total)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
