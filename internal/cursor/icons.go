package cursor

import (
	"fmt"
	"sync"

	"github.com/pageracer/pageracer"
)

var (
	iconsOnce sync.Once
	icons     map[pageracer.CursorShape]string
)

// Icons returns the SVG markup for each cursor affordance, keyed by shape.
// Built once for the process lifetime; the icons are static so the cache is
// never invalidated. The markup uses currentColor so the presentation layer
// can tint it per player.
func Icons() map[pageracer.CursorShape]string {
	iconsOnce.Do(func() {
		icons = map[pageracer.CursorShape]string{
			pageracer.CursorPointer: buildIcon("M3 1 L3 17 L7.5 13 L10 19 L12.5 18 L10 12 L15 12 Z"),
			pageracer.CursorHand:    buildIcon("M8 2 C8 2 8 8 8 9 L5 8 C4 8 3 9 4 10 L8 15 L14 15 L16 9 L16 5 L14 5 L14 8 L13 8 L13 3 L11 3 L11 8 L10 8 L10 2 Z"),
			pageracer.CursorText:    buildIcon("M7 2 L9 2 L9 3 L8.5 3 L8.5 17 L9 17 L9 18 L7 18 L7 17 L7.5 17 L7.5 3 L7 3 Z"),
		}
	})
	return icons
}

func buildIcon(path string) string {
	return fmt.Sprintf(
		`<svg xmlns="http://www.w3.org/2000/svg" width="20" height="20" viewBox="0 0 20 20"><path d="%s" fill="currentColor" stroke="white" stroke-width="1"/></svg>`,
		path,
	)
}
