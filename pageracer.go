package pageracer

import "time"

// ConnState is the lifecycle state of the engine's WebSocket connection.
type ConnState int32

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

// String returns the lowercase name of the state.
func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Player is one racer as mirrored from the server.
//
// Invariants maintained by the room store: len(Path) == Clicks, Finished
// never reverts to false, and FinishTime is a final value set at most once.
type Player struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	CurrentArticle string   `json:"currentArticle"`
	Clicks         int      `json:"clicks"`
	Path           []string `json:"path"`
	Finished       bool     `json:"finished"`
	FinishTime     *int64   `json:"finishTime,omitempty"` // ms since race start
}

// Room is the server-owned room the local client mirrors. Players is keyed
// by player id; ids are the only identity, display names may collide.
type Room struct {
	ID           string            `json:"id"`
	Players      map[string]Player `json:"players"`
	StartArticle string            `json:"startArticle"`
	EndArticle   string            `json:"endArticle"`
	Started      bool              `json:"started"`
	HostID       string            `json:"hostId"`
}

// Heading is a structural heading element of a rendered article: a stable
// anchor identifier plus its layout-relative top offset in pixels. Anchor
// identifiers are identical across renderings of the same article content;
// offsets are not.
type Heading struct {
	AnchorID string
	Top      float64
}

// Layout describes the local rendering of one article. It is the only
// property of the content provider the engine depends on.
type Layout interface {
	// ContentWidth returns the article container width in pixels.
	ContentWidth() float64
	// ContentHeight returns the full rendered document height in pixels.
	ContentHeight() float64
	// Headings returns the rendered headings ordered by top offset.
	Headings() []Heading
}

// CursorShape is the pointer affordance transmitted with a cursor sample so
// receivers do not need to hit-test content they may have rendered
// differently.
type CursorShape string

const (
	CursorPointer CursorShape = "pointer"
	CursorText    CursorShape = "text"
	CursorHand    CursorShape = "hand"
)

// ElementKind classifies the element under the local pointer, reported by
// the presentation layer on each pointer move.
type ElementKind int

const (
	ElementOther ElementKind = iota
	ElementLink
	ElementImage
	ElementTextInput
)

// ElementInfo is the hit-test result for the element under the pointer.
// CSSCursor carries the computed cursor style when the kind alone is not
// conclusive.
type ElementInfo struct {
	Kind      ElementKind
	Editable  bool
	CSSCursor string
}

// CursorRender is one render instruction for a remote player's cursor,
// produced by the smoothing loop each tick. X and Y are pixels in the local
// article container.
type CursorRender struct {
	PlayerID string
	Name     string
	Color    string
	Shape    CursorShape
	X        float64
	Y        float64
}

// NotificationKind distinguishes meeting toasts from finish toasts. Finish
// notifications bypass meeting deduplication: a finish is always announced.
type NotificationKind string

const (
	NotifyMeeting NotificationKind = "meeting"
	NotifyFinish  NotificationKind = "finish"
)

// Notification is a presentation-ready toast: who, which kind, and the
// player's derived color. Dismiss is how long the presentation layer should
// keep it on screen.
type Notification struct {
	Kind       NotificationKind
	PlayerID   string
	PlayerName string
	Color      string
	Article    string
	Dismiss    time.Duration
}
