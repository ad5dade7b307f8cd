// Package pageracer is the real-time synchronization engine for a
// browser-based multiplayer wiki-racing game: players navigate hyperlinked
// encyclopedia articles from a shared start topic to a shared target topic,
// racing to arrive first.
//
// The engine keeps each client's view of room membership, race progress,
// remote pointer positions and race-completion state consistent despite
// independent page content, independent viewport geometry, network jitter
// and mid-race disconnects. It owns:
//
//   - the JSON wire protocol shared with the game server
//   - a single WebSocket connection's lifecycle
//   - a server-reconciled mirror of the current room
//   - a layout-independent cursor position codec, so a pointer shared
//     between two clients whose renderings of the same article differ in
//     height still lands on the same paragraph
//   - the race timer and the grace-period countdown that forces
//     non-finishers to the results view
//   - deduplicated "player X is on your article" notifications
//
// Rendering, article fetching, routing and authentication are external
// collaborators. The engine reaches them only through the narrow types in
// this package: a Layout describing the local rendering of an article
// (content size plus heading anchors), and callback hooks consuming room
// snapshots, cursor render instructions, countdown values and
// notifications.
//
// Typical usage:
//
//	sess := client.New(client.Config{
//	    URL:        "wss://example.net/ws",
//	    PlayerName: "ada",
//	    LayoutFor:  provider.Layout,
//	    OnRoom:     view.ShowRoom,
//	    OnCursor:   view.MoveCursor,
//	})
//	if err := sess.Connect(ctx); err != nil {
//	    // ...
//	}
//	sess.JoinRoom("r1", "Cat", "Dog")
//
// The presentation layer drives the engine with pointer, scroll, resize,
// navigation and content-load events; the engine drives the presentation
// layer back through the configured callbacks. All callbacks are invoked
// from the session's dispatch goroutine, one event at a time.
package pageracer
