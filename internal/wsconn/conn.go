// Package wsconn owns the lifecycle of the engine's single WebSocket
// connection: dial, send, receive-dispatch, close. It performs no game
// logic and no automatic reconnection; a fresh Connect plus rejoin_room is
// always an explicit decision of the owning screen, so two reconnect
// policies can never race each other.
package wsconn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/pageracer/pageracer"
	"github.com/pageracer/pageracer/internal/protocol"
)

const (
	writeTimeout = 10 * time.Second
	readTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 256
)

// Config configures a Conn. OnMessage is invoked from the read goroutine
// for every well-formed frame, in arrival order.
type Config struct {
	URL           string
	Dialer        *websocket.Dialer
	OnMessage     func(protocol.Message)
	OnStateChange func(pageracer.ConnState)

	// CursorRate bounds outgoing cursor frames as a transport-level
	// backstop behind the sampler's adaptive pacing. Zero disables it.
	CursorRate  rate.Limit
	CursorBurst int
}

// Conn is one client connection to the game server.
type Conn struct {
	cfg           Config
	dialer        *websocket.Dialer
	cursorLimiter *rate.Limiter

	mu     sync.RWMutex
	state  pageracer.ConnState
	ws     *websocket.Conn
	sendCh chan []byte
}

// New creates a disconnected Conn.
func New(cfg Config) *Conn {
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	var limiter *rate.Limiter
	if cfg.CursorRate > 0 {
		burst := cfg.CursorBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(cfg.CursorRate, burst)
	}

	return &Conn{
		cfg:           cfg,
		dialer:        dialer,
		cursorLimiter: limiter,
	}
}

// State returns the current connection state.
func (c *Conn) State() pageracer.ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Connect dials the configured endpoint. It is idempotent: while the
// connection is connecting or connected it returns nil without opening a
// second socket.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != pageracer.Disconnected {
		c.mu.Unlock()
		return nil
	}
	c.state = pageracer.Connecting
	c.mu.Unlock()
	c.notify(pageracer.Connecting)

	ws, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		c.mu.Lock()
		c.state = pageracer.Disconnected
		c.mu.Unlock()
		c.notify(pageracer.Disconnected)
		return fmt.Errorf("%s %s: %w", pageracer.ErrDialFailed, c.cfg.URL, err)
	}

	c.mu.Lock()
	c.ws = ws
	c.sendCh = make(chan []byte, sendBuffer)
	c.state = pageracer.Connected
	sendCh := c.sendCh
	c.mu.Unlock()

	go c.writePump(ws, sendCh)
	go c.readLoop(ws)

	c.notify(pageracer.Connected)
	return nil
}

// Send serializes and transmits one frame. It returns false without
// queueing or blocking when the connection is not connected, when the send
// buffer is full, or when an outgoing cursor frame exceeds the rate
// backstop; the caller decides what a failed send means.
func (c *Conn) Send(t protocol.Type, payload any) bool {
	data, err := protocol.Encode(t, payload)
	if err != nil {
		log.Error().Err(err).Str("type", string(t)).Msg(pageracer.ErrFailedToEncode)
		return false
	}

	if t == protocol.TypeCursor && c.cursorLimiter != nil && !c.cursorLimiter.Allow() {
		// Cursor samples are last-value-wins; dropping one is harmless.
		return false
	}

	// Hold the read lock across the channel send so Disconnect cannot
	// close the channel underneath us.
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != pageracer.Connected {
		return false
	}

	select {
	case c.sendCh <- data:
		return true
	default:
		log.Warn().Str("type", string(t)).Msg("send buffer full, dropping frame")
		return false
	}
}

// Disconnect tears the connection down, optionally emitting a leave_room
// frame first. It is idempotent and always ends in the disconnected state.
func (c *Conn) Disconnect(sendLeave bool) {
	c.mu.Lock()
	if c.state == pageracer.Disconnected {
		c.mu.Unlock()
		return
	}
	if sendLeave && c.state == pageracer.Connected {
		if data, err := protocol.Encode(protocol.TypeLeaveRoom, nil); err == nil {
			select {
			case c.sendCh <- data:
			default:
			}
		}
	}
	if c.sendCh != nil {
		close(c.sendCh)
		c.sendCh = nil
	}
	c.state = pageracer.Disconnected
	c.ws = nil
	c.mu.Unlock()

	c.notify(pageracer.Disconnected)
}

// markDropped records a transport-initiated disconnect observed by the read
// loop. A no-op when Disconnect already ran.
func (c *Conn) markDropped() {
	c.mu.Lock()
	if c.state != pageracer.Connected {
		c.mu.Unlock()
		return
	}
	if c.sendCh != nil {
		close(c.sendCh)
		c.sendCh = nil
	}
	c.state = pageracer.Disconnected
	c.ws = nil
	c.mu.Unlock()

	c.notify(pageracer.Disconnected)
}

func (c *Conn) notify(s pageracer.ConnState) {
	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(s)
	}
}

// writePump pumps frames from the send channel to the socket and keeps the
// connection alive with pings. It drains remaining frames after the channel
// closes, then emits a close frame and closes the socket.
func (c *Conn) writePump(ws *websocket.Conn, sendCh chan []byte) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-sendCh:
			ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Msg("failed to write frame")
				return
			}

		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readLoop reads frames until the socket errors, decoding each and handing
// it to the dispatch callback. Malformed frames are logged and dropped;
// they never kill the loop.
func (c *Conn) readLoop(ws *websocket.Conn) {
	defer c.markDropped()

	ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("connection dropped")
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(readTimeout))

		msg, err := protocol.Decode(data)
		if err != nil {
			log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}
		if c.cfg.OnMessage != nil {
			c.cfg.OnMessage(msg)
		}
	}
}
