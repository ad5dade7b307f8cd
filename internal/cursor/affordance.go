package cursor

import "github.com/pageracer/pageracer"

// InferShape derives the pointer affordance from the element under the
// local cursor. It is transmitted as a hint so receivers never re-run
// hit-testing against content they may not have rendered identically.
func InferShape(elem pageracer.ElementInfo) pageracer.CursorShape {
	if elem.Kind == pageracer.ElementLink {
		return pageracer.CursorHand
	}
	if elem.Editable || elem.Kind == pageracer.ElementTextInput {
		return pageracer.CursorText
	}
	switch elem.CSSCursor {
	case "pointer":
		return pageracer.CursorHand
	case "text":
		return pageracer.CursorText
	}
	return pageracer.CursorPointer
}
