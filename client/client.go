// Package client assembles the engine into one race session: a single
// connection, the room mirror, the cursor codec, the race timer and the
// meeting notifier, wired to the presentation layer through callbacks.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/pageracer/pageracer"
	"github.com/pageracer/pageracer/internal/cursor"
	"github.com/pageracer/pageracer/internal/meet"
	"github.com/pageracer/pageracer/internal/protocol"
	"github.com/pageracer/pageracer/internal/race"
	"github.com/pageracer/pageracer/internal/room"
	"github.com/pageracer/pageracer/internal/wsconn"
)

// countdownTick is the cadence of countdown callbacks. The countdown value
// itself is derived from timestamps, so the cadence only affects display
// smoothness, never correctness.
const countdownTick = 200 * time.Millisecond

// Config wires a Session to its collaborators. All callbacks are optional;
// they are invoked from the session's dispatch goroutine or its countdown
// loop, never concurrently with themselves.
type Config struct {
	// URL is the WebSocket endpoint of the game server.
	URL string
	// PlayerName is the display name sent on join. Empty generates one.
	PlayerName string

	// LayoutFor resolves the local rendering of an article: the content
	// provider boundary. Returning false means the article is not (yet)
	// rendered locally.
	LayoutFor func(article string) (pageracer.Layout, bool)

	// Clock drives every timer; nil means the real clock.
	Clock clockwork.Clock
	// GracePeriod and NotificationDelay override the race defaults when
	// positive. Mainly for tests.
	GracePeriod       time.Duration
	NotificationDelay time.Duration

	OnConnState    func(pageracer.ConnState)
	OnRoom         func(pageracer.Room)
	OnCursor       func(pageracer.CursorRender)
	OnCursorGone   func(playerID string)
	OnNotification func(pageracer.Notification)
	OnCountdown    func(remaining time.Duration)
	// OnForcedResults fires once when the grace period closes while the
	// local player is still running: results view, did not finish.
	OnForcedResults func()
	OnError         func(message string)
}

// Session is one client's race session. Create it with New, connect, join a
// room, and feed it pointer/scroll/navigation events; it feeds the
// presentation layer back through the configured callbacks.
type Session struct {
	cfg   Config
	clock clockwork.Clock

	conn    *wsconn.Conn
	store   *room.Store
	race    *race.Controller
	meet    *meet.Notifier
	pool    *cursor.Pool
	sampler *cursor.Sampler
	scroll  *rate.Limiter

	// Session-scoped mutable state, written from the dispatch goroutine
	// and read from UI-originated calls.
	mu             sync.Mutex
	localID        string
	bootstrapping  bool
	currentArticle string
	lastX, lastY   float64
	lastShape      pageracer.CursorShape
	hasPointer     bool
	forced         bool
	countdownOn    bool
	countdownDone  chan struct{}
	toastActive    bool
	toastQueue     []pageracer.Notification
	toastTimer     clockwork.Timer
	closed         bool
}

// New creates a disconnected session.
func New(cfg Config) *Session {
	if cfg.PlayerName == "" {
		cfg.PlayerName = "player-" + uuid.New().String()[:8]
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	s := &Session{
		cfg:     cfg,
		clock:   clock,
		store:   &room.Store{},
		meet:    meet.New(),
		pool:    cursor.NewPool(),
		sampler: cursor.NewSampler(clock),
		scroll:  cursor.NewScrollLimiter(),
		race: race.New(race.Config{
			Clock:             clock,
			GracePeriod:       cfg.GracePeriod,
			NotificationDelay: cfg.NotificationDelay,
		}),
	}

	s.conn = wsconn.New(wsconn.Config{
		URL:           cfg.URL,
		OnMessage:     s.handleMessage,
		OnStateChange: s.handleConnState,
		CursorRate:    70, // backstop just above the 16ms sampler floor
		CursorBurst:   8,
	})

	if cfg.OnRoom != nil {
		s.store.Subscribe(cfg.OnRoom)
	}
	return s
}

// Connect dials the game server. Idempotent while connecting or connected.
func (s *Session) Connect(ctx context.Context) error {
	return s.conn.Connect(ctx)
}

// ConnState returns the connection state.
func (s *Session) ConnState() pageracer.ConnState {
	return s.conn.State()
}

// Close tears the session down: every timer it created is cancelled and the
// connection is closed without a leave frame. Safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.countdownOn {
		close(s.countdownDone)
		s.countdownOn = false
	}
	if s.toastTimer != nil {
		s.toastTimer.Stop()
		s.toastTimer = nil
	}
	s.mu.Unlock()

	s.conn.Disconnect(false)
}

// JoinRoom asks the server to add the local player to a room with the given
// start/end articles. The local player id is adopted from the next
// room_state snapshot.
func (s *Session) JoinRoom(roomID, startArticle, endArticle string) bool {
	s.mu.Lock()
	s.bootstrapping = true
	s.mu.Unlock()

	return s.conn.Send(protocol.TypeJoinRoom, protocol.JoinRoomPayload{
		RoomID:       roomID,
		PlayerName:   s.cfg.PlayerName,
		StartArticle: startArticle,
		EndArticle:   endArticle,
	})
}

// RejoinRoom re-enters a room after an explicit reconnect. The server's
// room_state reply replaces the local mirror wholesale, so a rejoin that
// arrives after the race progressed needs no client-side replay.
func (s *Session) RejoinRoom(roomID string) bool {
	s.mu.Lock()
	s.bootstrapping = true
	s.mu.Unlock()

	return s.conn.Send(protocol.TypeRejoinRoom, protocol.RejoinRoomPayload{
		RoomID:     roomID,
		PlayerName: s.cfg.PlayerName,
	})
}

// LeaveRoom emits leave_room, disconnects and clears all per-race state.
func (s *Session) LeaveRoom() {
	s.conn.Disconnect(true)

	s.mu.Lock()
	s.localID = ""
	s.currentArticle = ""
	s.hasPointer = false
	s.mu.Unlock()

	s.store.Reset()
	s.meet.Reset()
	s.pool.Clear()
	s.sampler.Reset()
}

// StartRace asks the server to start the race. Host only; the server
// answers non-hosts with an error frame.
func (s *Session) StartRace() bool {
	return s.conn.Send(protocol.TypeStartRace, nil)
}

// UpdateRoomSettings changes the start/end articles before the race starts.
// Host only.
func (s *Session) UpdateRoomSettings(startArticle, endArticle string) bool {
	return s.conn.Send(protocol.TypeUpdateRoom, protocol.UpdateRoomPayload{
		StartArticle: startArticle,
		EndArticle:   endArticle,
	})
}

// ContentLoaded reports that the local article content finished loading.
// The first call starts the local race clock.
func (s *Session) ContentLoaded() {
	s.race.StartLocal()
}

// Navigate reports a local link click: informs the server, re-arms the
// cursor pipeline for the new article, and fires the finish message exactly
// once if the article is the destination.
func (s *Session) Navigate(article string) {
	s.mu.Lock()
	s.currentArticle = article
	s.hasPointer = false
	s.mu.Unlock()

	s.pool.Clear()
	s.sampler.Reset()
	s.conn.Send(protocol.TypeNavigate, protocol.NavigatePayload{Article: article})

	if elapsed, ok := s.race.ObserveArticle(article); ok {
		s.conn.Send(protocol.TypeFinish, protocol.FinishPayload{Time: elapsed})
		// The local finish is also the race's first finish unless someone
		// beat us to it.
		s.race.ObserveAnyFinish()
		s.startCountdown()
	}
}

// PointerMoved reports a local pointer move in article-container pixels,
// with the hit-test result for the element under the pointer. Returns true
// when a cursor frame went out.
func (s *Session) PointerMoved(x, y float64, elem pageracer.ElementInfo) bool {
	s.mu.Lock()
	article := s.currentArticle
	shape := cursor.InferShape(elem)
	s.lastX, s.lastY = x, y
	s.lastShape = shape
	s.hasPointer = true
	s.mu.Unlock()

	if article == "" {
		return false
	}
	layout, ok := s.cfg.LayoutFor(article)
	if !ok {
		return false
	}
	if !s.sampler.Offer(x, y) {
		return false
	}
	return s.conn.Send(protocol.TypeCursor, cursor.Encode(layout, x, y, article, shape))
}

// Scrolled reports a scroll without pointer movement: the raw pointer is
// stationary but its content-relative position changed, so the sample is
// re-sent at the new coordinates, throttled to ~30 Hz.
func (s *Session) Scrolled(x, y float64) {
	s.mu.Lock()
	article := s.currentArticle
	shape := s.lastShape
	has := s.hasPointer
	s.lastX, s.lastY = x, y
	s.mu.Unlock()

	if !has || article == "" || !s.scroll.Allow() {
		return
	}
	layout, ok := s.cfg.LayoutFor(article)
	if !ok {
		return
	}
	s.conn.Send(protocol.TypeCursor, cursor.Encode(layout, x, y, article, shape))
}

// ViewportResized resets cursor smoothing so no remote cursor animates
// between the old and new geometry.
func (s *Session) ViewportResized() {
	s.pool.SnapAll()
}

// RenderTick advances remote cursor smoothing one animation frame, emitting
// one render instruction per visible remote cursor through OnCursor. The
// presentation layer owns the frame cadence.
func (s *Session) RenderTick() {
	if s.cfg.OnCursor == nil {
		return
	}
	s.pool.Tick(s.cfg.OnCursor)
}

// Room returns the current room mirror.
func (s *Session) Room() (pageracer.Room, bool) {
	return s.store.Snapshot()
}

// LocalPlayerID returns the adopted local player id, empty before the first
// room snapshot after a join.
func (s *Session) LocalPlayerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localID
}

// Elapsed returns the local race clock.
func (s *Session) Elapsed() time.Duration {
	return s.race.Elapsed()
}

// CountdownRemaining derives the grace countdown; active is false while
// nobody has finished.
func (s *Session) CountdownRemaining() (remaining time.Duration, active bool) {
	return s.race.CountdownRemaining()
}

// handleConnState relays connection state changes.
func (s *Session) handleConnState(state pageracer.ConnState) {
	if s.cfg.OnConnState != nil {
		s.cfg.OnConnState(state)
	}
}

// handleMessage is the single dispatch point for every received frame,
// invoked from the connection's read goroutine in arrival order.
func (s *Session) handleMessage(msg protocol.Message) {
	s.store.Apply(msg)

	payload, err := protocol.ParsePayload(msg)
	if err != nil || payload == nil {
		// Bad payloads were already logged by the store; unknown types
		// are ignored for forward compatibility.
		return
	}

	switch p := payload.(type) {
	case protocol.RoomStatePayload:
		s.adoptIdentity(p)
		s.race.SetDestination(p.EndArticle)
		s.checkMeetings()

	case protocol.PlayerJoinedPayload:
		s.checkMeetings()

	case protocol.PlayerLeftPayload:
		s.pool.Remove(p.PlayerID)
		if s.cfg.OnCursorGone != nil {
			s.cfg.OnCursorGone(p.PlayerID)
		}

	case protocol.RaceStartedPayload:
		s.race.SetDestination(p.EndArticle)
		s.mu.Lock()
		s.currentArticle = p.StartArticle
		s.mu.Unlock()

	case protocol.PlayerUpdatePayload:
		s.checkMeetings()

	case protocol.PlayerFinishPayload:
		s.race.ObserveAnyFinish()
		s.startCountdown()
		if p.PlayerID != s.LocalPlayerID() {
			s.enqueueToast(s.meet.Finish(p.PlayerID, p.PlayerName))
		}

	case protocol.CursorUpdatePayload:
		s.handleCursorUpdate(p)

	case protocol.ErrorPayload:
		log.Warn().Str("error", p.Error).Msg("server error")
		if s.cfg.OnError != nil {
			s.cfg.OnError(p.Error)
		}
	}
}

// adoptIdentity learns the local player id from the first room snapshot
// after a join or rejoin. The server keys the snapshot by id; the joiner
// recognizes itself by the display name it just sent, once, and uses only
// the id from then on.
func (s *Session) adoptIdentity(snapshot protocol.RoomStatePayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.bootstrapping {
		return
	}
	for id, p := range snapshot.Players {
		if p.Name == s.cfg.PlayerName {
			s.localID = id
			s.bootstrapping = false
			return
		}
	}
}

func (s *Session) checkMeetings() {
	localID := s.LocalPlayerID()
	if localID == "" {
		return
	}
	snapshot, ok := s.store.Snapshot()
	if !ok {
		return
	}
	for _, n := range s.meet.Observe(snapshot, localID) {
		s.enqueueToast(n)
	}
}

// handleCursorUpdate decodes a remote sample against the local rendering
// and retargets that player's visual. Samples for other articles than the
// local one are not renderable and are skipped.
func (s *Session) handleCursorUpdate(p protocol.CursorUpdatePayload) {
	s.mu.Lock()
	article := s.currentArticle
	localID := s.localID
	s.mu.Unlock()

	if p.PlayerID == localID {
		return
	}
	if race.Normalize(p.Article) != race.Normalize(article) {
		return
	}
	layout, ok := s.cfg.LayoutFor(p.Article)
	if !ok {
		return
	}

	x, y, _ := cursor.Decode(layout, p)
	shape := p.CursorType
	if shape == "" {
		shape = pageracer.CursorPointer
	}
	s.pool.Upsert(p.PlayerID, p.PlayerName, meet.ColorFor(p.PlayerID), shape, x, y)
}

// enqueueToast surfaces notifications one at a time: the next one appears
// after the previous one's dismiss interval, however many meetings occur in
// between.
func (s *Session) enqueueToast(n pageracer.Notification) {
	if s.cfg.OnNotification == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.toastQueue = append(s.toastQueue, n)
	s.mu.Unlock()
	s.surfaceNextToast()
}

func (s *Session) surfaceNextToast() {
	s.mu.Lock()
	if s.toastActive || len(s.toastQueue) == 0 || s.closed {
		s.mu.Unlock()
		return
	}
	next := s.toastQueue[0]
	s.toastQueue = s.toastQueue[1:]
	s.toastActive = true
	s.toastTimer = s.clock.AfterFunc(next.Dismiss, func() {
		s.mu.Lock()
		s.toastActive = false
		s.mu.Unlock()
		s.surfaceNextToast()
	})
	s.mu.Unlock()

	s.cfg.OnNotification(next)
}

// startCountdown launches the grace-period loop once. Each tick derives the
// remaining time from the first-finish timestamp; when the period closes it
// forces a still-running local player to the results view and stops.
func (s *Session) startCountdown() {
	s.mu.Lock()
	if s.countdownOn || s.closed {
		s.mu.Unlock()
		return
	}
	s.countdownOn = true
	s.countdownDone = make(chan struct{})
	done := s.countdownDone
	s.mu.Unlock()

	go func() {
		ticker := s.clock.NewTicker(countdownTick)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.Chan():
				remaining, active := s.race.CountdownRemaining()
				if !active {
					continue
				}
				if s.cfg.OnCountdown != nil {
					s.cfg.OnCountdown(remaining)
				}
				if s.race.Phase() == race.Closed {
					s.forceResults()
					return
				}
			}
		}
	}()
}

// forceResults fires OnForcedResults at most once, and only for a local
// player that never finished.
func (s *Session) forceResults() {
	s.mu.Lock()
	if s.forced {
		s.mu.Unlock()
		return
	}
	s.forced = true
	s.mu.Unlock()

	if s.race.LocalState() != race.Finished && s.cfg.OnForcedResults != nil {
		s.cfg.OnForcedResults()
	}
}
