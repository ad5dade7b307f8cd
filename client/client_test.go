package client

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pageracer/pageracer"
	"github.com/pageracer/pageracer/internal/protocol"
)

// pageLayout is a fixed article rendering used by every test session.
type pageLayout struct {
	width    float64
	height   float64
	headings []pageracer.Heading
}

func (l pageLayout) ContentWidth() float64         { return l.width }
func (l pageLayout) ContentHeight() float64        { return l.height }
func (l pageLayout) Headings() []pageracer.Heading { return l.headings }

func testLayoutFor(string) (pageracer.Layout, bool) {
	return pageLayout{
		width:  800,
		height: 2000,
		headings: []pageracer.Heading{
			{AnchorID: "intro", Top: 120},
			{AnchorID: "history", Top: 900},
		},
	}, true
}

// gameServer is a minimal in-process game server: one room, server-side
// click and path accounting, broadcast on every room mutation.
type gameServer struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	start    string
	end      string
	started  bool
	hostID   string
	players  map[string]*serverPlayer
	clients  map[string]*serverClient
	finishes map[string]protocol.PlayerFinishPayload // by player name
}

type serverPlayer struct {
	id       string
	name     string
	article  string
	clicks   int
	path     []string
	finished bool
	time     int64
}

// serverClient serializes writes to one socket across handler goroutines.
type serverClient struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *serverClient) send(t *testing.T, typ protocol.Type, payload any) {
	data, err := protocol.Encode(typ, payload)
	if err != nil {
		t.Errorf("server encode %s: %v", typ, err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.WriteMessage(websocket.TextMessage, data)
}

func newGameServer(t *testing.T) *gameServer {
	t.Helper()

	s := &gameServer{
		t:        t,
		players:  make(map[string]*serverPlayer),
		clients:  make(map[string]*serverClient),
		finishes: make(map[string]protocol.PlayerFinishPayload),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		go s.serve(ws)
	}))
	t.Cleanup(s.srv.Close)

	return s
}

func (s *gameServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *gameServer) serve(ws *websocket.Conn) {
	client := &serverClient{ws: ws}
	var playerID string

	defer func() {
		ws.Close()
		if playerID != "" {
			s.dropPlayer(playerID)
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			continue
		}
		payload, err := protocol.ParsePayload(msg)
		if err != nil {
			continue
		}

		switch p := payload.(type) {
		case protocol.JoinRoomPayload:
			playerID = s.join(client, p)

		case struct{}: // leave_room and start_race carry no payload
			switch msg.Type {
			case protocol.TypeStartRace:
				s.startRace(client, playerID)
			case protocol.TypeLeaveRoom:
				return
			}

		case protocol.NavigatePayload:
			s.navigate(playerID, p.Article)

		case protocol.FinishPayload:
			s.finish(playerID, p.Time)

		case protocol.CursorPayload:
			s.relayCursor(playerID, p)
		}
	}
}

func (s *gameServer) join(client *serverClient, p protocol.JoinRoomPayload) string {
	s.mu.Lock()
	id := uuid.New().String()
	if s.hostID == "" {
		s.hostID = id
		s.start = p.StartArticle
		s.end = p.EndArticle
	}
	s.players[id] = &serverPlayer{id: id, name: p.PlayerName}
	s.clients[id] = client
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.broadcast(protocol.TypeRoomState, snapshot)
	return id
}

func (s *gameServer) dropPlayer(id string) {
	s.mu.Lock()
	delete(s.players, id)
	delete(s.clients, id)
	s.mu.Unlock()

	s.broadcast(protocol.TypePlayerLeft, protocol.PlayerLeftPayload{PlayerID: id})
}

func (s *gameServer) startRace(client *serverClient, id string) {
	s.mu.Lock()
	if id != s.hostID {
		s.mu.Unlock()
		client.send(s.t, protocol.TypeError, protocol.ErrorPayload{Error: "only the host can start the race"})
		return
	}
	s.started = true
	start, end := s.start, s.end
	s.mu.Unlock()

	s.broadcast(protocol.TypeRaceStarted, protocol.RaceStartedPayload{StartArticle: start, EndArticle: end})
}

func (s *gameServer) navigate(id, article string) {
	s.mu.Lock()
	p, ok := s.players[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	p.article = article
	p.clicks++
	p.path = append(p.path, article)
	update := protocol.PlayerUpdatePayload{PlayerID: id, CurrentArticle: article, Clicks: p.clicks}
	s.mu.Unlock()

	s.broadcast(protocol.TypePlayerUpdate, update)
}

func (s *gameServer) finish(id string, elapsed int64) {
	s.mu.Lock()
	p, ok := s.players[id]
	if !ok || p.finished {
		s.mu.Unlock()
		return
	}
	p.finished = true
	p.time = elapsed
	msg := protocol.PlayerFinishPayload{
		PlayerID:   id,
		PlayerName: p.name,
		Time:       elapsed,
		Clicks:     p.clicks,
		Path:       append([]string(nil), p.path...),
	}
	s.finishes[p.name] = msg
	s.mu.Unlock()

	s.broadcast(protocol.TypePlayerFinish, msg)
}

func (s *gameServer) relayCursor(id string, p protocol.CursorPayload) {
	s.mu.Lock()
	player, ok := s.players[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	update := protocol.CursorUpdatePayload{
		PlayerID:     id,
		PlayerName:   player.name,
		X:            p.X,
		Y:            p.Y,
		Article:      p.Article,
		CursorType:   p.CursorType,
		AnchorID:     p.AnchorID,
		NextAnchorID: p.NextAnchorID,
		SectionRatio: p.SectionRatio,
	}
	targets := make([]*serverClient, 0, len(s.clients))
	for cid, c := range s.clients {
		if cid != id {
			targets = append(targets, c)
		}
	}
	s.mu.Unlock()

	for _, c := range targets {
		c.send(s.t, protocol.TypeCursorUpdate, update)
	}
}

func (s *gameServer) snapshotLocked() pageracer.Room {
	players := make(map[string]pageracer.Player, len(s.players))
	for id, p := range s.players {
		players[id] = pageracer.Player{
			ID:             id,
			Name:           p.name,
			CurrentArticle: p.article,
			Clicks:         p.clicks,
			Path:           append([]string(nil), p.path...),
			Finished:       p.finished,
		}
	}
	return pageracer.Room{
		ID:           "r1",
		Players:      players,
		StartArticle: s.start,
		EndArticle:   s.end,
		Started:      s.started,
		HostID:       s.hostID,
	}
}

func (s *gameServer) broadcast(typ protocol.Type, payload any) {
	s.mu.Lock()
	targets := make([]*serverClient, 0, len(s.clients))
	for _, c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	for _, c := range targets {
		c.send(s.t, typ, payload)
	}
}

func (s *gameServer) finishOf(name string) (protocol.PlayerFinishPayload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.finishes[name]
	return f, ok
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

// TestRaceScenario tests one full race: two players join, the host starts,
// the winner navigates to the destination in one click, and the grace
// period forces the other player to the results view as a non-finisher.
func TestRaceScenario(t *testing.T) {
	t.Parallel()

	server := newGameServer(t)
	ctx := context.Background()

	aForced := make(chan struct{}, 1)
	a := New(Config{
		URL:               server.url(),
		PlayerName:        "ada",
		LayoutFor:         testLayoutFor,
		GracePeriod:       400 * time.Millisecond,
		NotificationDelay: 20 * time.Millisecond,
		OnForcedResults:   func() { aForced <- struct{}{} },
	})
	defer a.Close()

	bForced := make(chan struct{}, 1)
	bToasts := make(chan pageracer.Notification, 8)
	var bCountdownMu sync.Mutex
	bCountdownSeen := false
	b := New(Config{
		URL:               server.url(),
		PlayerName:        "bob",
		LayoutFor:         testLayoutFor,
		GracePeriod:       400 * time.Millisecond,
		NotificationDelay: 20 * time.Millisecond,
		OnForcedResults:   func() { bForced <- struct{}{} },
		OnNotification:    func(n pageracer.Notification) { bToasts <- n },
		OnCountdown: func(time.Duration) {
			bCountdownMu.Lock()
			bCountdownSeen = true
			bCountdownMu.Unlock()
		},
	})
	defer b.Close()

	if err := a.Connect(ctx); err != nil {
		t.Fatalf("a.Connect() error = %v", err)
	}
	if !a.JoinRoom("r1", "Cat", "Dog") {
		t.Fatal("a.JoinRoom() = false, want true")
	}
	waitFor(t, 2*time.Second, func() bool { return a.LocalPlayerID() != "" }, "a never adopted an identity")

	if err := b.Connect(ctx); err != nil {
		t.Fatalf("b.Connect() error = %v", err)
	}
	if !b.JoinRoom("r1", "Cat", "Dog") {
		t.Fatal("b.JoinRoom() = false, want true")
	}
	waitFor(t, 2*time.Second, func() bool { return b.LocalPlayerID() != "" }, "b never adopted an identity")

	if a.LocalPlayerID() == b.LocalPlayerID() {
		t.Fatalf("both sessions adopted the same id %q", a.LocalPlayerID())
	}
	waitFor(t, 2*time.Second, func() bool {
		room, ok := a.Room()
		return ok && len(room.Players) == 2
	}, "a's mirror never saw both players")

	// Only the host may start.
	if !a.StartRace() {
		t.Fatal("a.StartRace() = false, want true")
	}
	waitFor(t, 2*time.Second, func() bool {
		roomA, okA := a.Room()
		roomB, okB := b.Room()
		return okA && okB && roomA.Started && roomB.Started
	}, "race never started on both mirrors")

	a.ContentLoaded()
	b.ContentLoaded()

	// Let the local race clock accumulate a measurable elapsed time.
	time.Sleep(30 * time.Millisecond)
	a.Navigate("Dog")

	waitFor(t, 2*time.Second, func() bool {
		_, ok := server.finishOf("ada")
		return ok
	}, "server never received ada's finish")

	finish, _ := server.finishOf("ada")
	if finish.Clicks != 1 {
		t.Errorf("finish clicks = %d, want 1", finish.Clicks)
	}
	if len(finish.Path) != 1 || finish.Path[0] != "Dog" {
		t.Errorf("finish path = %v, want [Dog]", finish.Path)
	}
	if finish.Time <= 0 {
		t.Errorf("finish time = %d ms, want > 0", finish.Time)
	}

	// The other player's mirror converges on the winner's final record.
	waitFor(t, 2*time.Second, func() bool {
		room, ok := b.Room()
		if !ok {
			return false
		}
		p, ok := room.Players[a.LocalPlayerID()]
		return ok && p.Finished && p.Clicks == 1
	}, "b's mirror never marked ada finished")

	// The winner's finish is announced to everyone else.
	select {
	case n := <-bToasts:
		if n.Kind != pageracer.NotifyFinish {
			t.Errorf("notification kind = %v, want NotifyFinish", n.Kind)
		}
		if n.PlayerName != "ada" {
			t.Errorf("notification player = %q, want ada", n.PlayerName)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("b never saw the finish notification")
	}

	// After the grace period b is forced to the results view; a finished and
	// is never forced.
	select {
	case <-bForced:
	case <-time.After(3 * time.Second):
		t.Fatal("b was never forced to results")
	}
	bCountdownMu.Lock()
	seen := bCountdownSeen
	bCountdownMu.Unlock()
	if !seen {
		t.Error("b never received a countdown tick")
	}
	select {
	case <-aForced:
		t.Error("a was forced to results despite finishing")
	default:
	}

	if got := a.Elapsed(); got <= 0 {
		t.Errorf("a.Elapsed() = %v, want > 0 after finishing", got)
	}
}

// TestCursorRelay tests that a pointer move on one session shows up as a
// smoothed render instruction on the other
func TestCursorRelay(t *testing.T) {
	t.Parallel()

	server := newGameServer(t)
	ctx := context.Background()

	a := New(Config{URL: server.url(), PlayerName: "ada", LayoutFor: testLayoutFor})
	defer a.Close()

	var renderMu sync.Mutex
	var renders []pageracer.CursorRender
	b := New(Config{
		URL:        server.url(),
		PlayerName: "bob",
		LayoutFor:  testLayoutFor,
		OnCursor: func(r pageracer.CursorRender) {
			renderMu.Lock()
			renders = append(renders, r)
			renderMu.Unlock()
		},
	})
	defer b.Close()

	if err := a.Connect(ctx); err != nil {
		t.Fatalf("a.Connect() error = %v", err)
	}
	a.JoinRoom("r1", "Cat", "Dog")
	waitFor(t, 2*time.Second, func() bool { return a.LocalPlayerID() != "" }, "a never adopted an identity")

	if err := b.Connect(ctx); err != nil {
		t.Fatalf("b.Connect() error = %v", err)
	}
	b.JoinRoom("r1", "Cat", "Dog")
	waitFor(t, 2*time.Second, func() bool { return b.LocalPlayerID() != "" }, "b never adopted an identity")

	// Both sessions need a current article before cursor traffic flows.
	a.StartRace()
	waitFor(t, 2*time.Second, func() bool {
		roomB, ok := b.Room()
		return ok && roomB.Started
	}, "race never started")

	// Retry until a's own race_started dispatch has set its current article.
	waitFor(t, 2*time.Second, func() bool {
		return a.PointerMoved(400, 500, pageracer.ElementInfo{Kind: pageracer.ElementLink})
	}, "a never sent a cursor frame")

	waitFor(t, 2*time.Second, func() bool {
		b.RenderTick()
		renderMu.Lock()
		defer renderMu.Unlock()
		return len(renders) > 0
	}, "b never rendered a remote cursor")

	renderMu.Lock()
	got := renders[len(renders)-1]
	renderMu.Unlock()

	if got.PlayerID != a.LocalPlayerID() {
		t.Errorf("render player = %q, want %q", got.PlayerID, a.LocalPlayerID())
	}
	if got.Name != "ada" {
		t.Errorf("render name = %q, want ada", got.Name)
	}
	if got.Shape != pageracer.CursorHand {
		t.Errorf("render shape = %v, want hand for a link", got.Shape)
	}
	if got.Color == "" {
		t.Error("render color is empty")
	}
	// Identical layouts on both ends: the first render snaps to the sample.
	if math.Abs(got.X-400) > 0.5 || math.Abs(got.Y-500) > 0.5 {
		t.Errorf("render position = (%v, %v), want (400, 500)", got.X, got.Y)
	}
}

// TestStartRaceRejectedForNonHost tests the server error path through the
// session's error callback
func TestStartRaceRejectedForNonHost(t *testing.T) {
	t.Parallel()

	server := newGameServer(t)
	ctx := context.Background()

	a := New(Config{URL: server.url(), PlayerName: "ada", LayoutFor: testLayoutFor})
	defer a.Close()

	errs := make(chan string, 1)
	b := New(Config{
		URL:        server.url(),
		PlayerName: "bob",
		LayoutFor:  testLayoutFor,
		OnError:    func(msg string) { errs <- msg },
	})
	defer b.Close()

	if err := a.Connect(ctx); err != nil {
		t.Fatalf("a.Connect() error = %v", err)
	}
	a.JoinRoom("r1", "Cat", "Dog")
	waitFor(t, 2*time.Second, func() bool { return a.LocalPlayerID() != "" }, "a never adopted an identity")

	if err := b.Connect(ctx); err != nil {
		t.Fatalf("b.Connect() error = %v", err)
	}
	b.JoinRoom("r1", "Cat", "Dog")
	waitFor(t, 2*time.Second, func() bool { return b.LocalPlayerID() != "" }, "b never adopted an identity")

	b.StartRace()

	select {
	case msg := <-errs:
		if msg == "" {
			t.Error("error callback fired with an empty message")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("b never received the host-only error")
	}

	if room, ok := b.Room(); ok && room.Started {
		t.Error("room started despite the rejected start")
	}
}

// TestLeaveRoomClearsSession tests that leaving tears down the mirror and
// informs the remaining player
func TestLeaveRoomClearsSession(t *testing.T) {
	t.Parallel()

	server := newGameServer(t)
	ctx := context.Background()

	a := New(Config{URL: server.url(), PlayerName: "ada", LayoutFor: testLayoutFor})
	defer a.Close()
	b := New(Config{URL: server.url(), PlayerName: "bob", LayoutFor: testLayoutFor})
	defer b.Close()

	if err := a.Connect(ctx); err != nil {
		t.Fatalf("a.Connect() error = %v", err)
	}
	a.JoinRoom("r1", "Cat", "Dog")
	waitFor(t, 2*time.Second, func() bool { return a.LocalPlayerID() != "" }, "a never adopted an identity")

	if err := b.Connect(ctx); err != nil {
		t.Fatalf("b.Connect() error = %v", err)
	}
	b.JoinRoom("r1", "Cat", "Dog")
	waitFor(t, 2*time.Second, func() bool { return b.LocalPlayerID() != "" }, "b never adopted an identity")

	bID := b.LocalPlayerID()
	waitFor(t, 2*time.Second, func() bool {
		room, ok := a.Room()
		return ok && len(room.Players) == 2
	}, "a's mirror never saw both players")

	b.LeaveRoom()

	if _, ok := b.Room(); ok {
		t.Error("b's mirror still present after LeaveRoom")
	}
	if got := b.LocalPlayerID(); got != "" {
		t.Errorf("b.LocalPlayerID() = %q after leave, want empty", got)
	}
	if got := b.ConnState(); got != pageracer.Disconnected {
		t.Errorf("b.ConnState() = %v, want Disconnected", got)
	}

	waitFor(t, 2*time.Second, func() bool {
		room, ok := a.Room()
		if !ok {
			return false
		}
		_, present := room.Players[bID]
		return !present
	}, "a's mirror never dropped the departed player")
}
