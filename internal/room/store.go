// Package room holds the client's eventually-consistent mirror of the
// server-owned room: a reducer over protocol messages. The connection's
// dispatch goroutine is the only writer; everything else reads snapshots.
package room

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pageracer/pageracer"
	"github.com/pageracer/pageracer/internal/protocol"
)

// Store mirrors the current room. Zero value is ready to use.
type Store struct {
	mu      sync.RWMutex
	room    pageracer.Room
	present bool
	lastErr string
	subs    []func(pageracer.Room)
}

// Subscribe registers a callback invoked with a fresh snapshot after every
// message that mutated the room. Callbacks run on the dispatch goroutine.
func (s *Store) Subscribe(fn func(pageracer.Room)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Snapshot returns a deep copy of the current room and whether one has been
// received yet.
func (s *Store) Snapshot() (pageracer.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyRoom(s.room), s.present
}

// Player returns a copy of one player by id.
func (s *Store) Player(id string) (pageracer.Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.room.Players[id]
	if !ok {
		return pageracer.Player{}, false
	}
	return copyPlayer(p), true
}

// LastError returns the most recent server-sent error, if any.
func (s *Store) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Reset drops the mirror, e.g. when leaving a room.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room = pageracer.Room{}
	s.present = false
	s.lastErr = ""
}

// Apply reduces one server message into the mirror and reports whether the
// room changed. Identity is always the player id; display names may
// collide and are never used for lookup. Duplicate and replayed messages
// are expected and reduce idempotently.
func (s *Store) Apply(msg protocol.Message) bool {
	payload, err := protocol.ParsePayload(msg)
	if err != nil {
		log.Warn().Err(err).Str("type", string(msg.Type)).Msg("dropping message with bad payload")
		return false
	}

	s.mu.Lock()
	changed := s.reduce(msg.Type, payload)
	var snapshot pageracer.Room
	var subs []func(pageracer.Room)
	if changed {
		snapshot = copyRoom(s.room)
		subs = s.subs
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snapshot)
	}
	return changed
}

func (s *Store) reduce(t protocol.Type, payload any) bool {
	switch t {
	case protocol.TypeRoomState:
		state := payload.(protocol.RoomStatePayload)
		if state.Players == nil {
			state.Players = make(map[string]pageracer.Player)
		}
		s.room = copyRoom(state)
		s.present = true
		return true

	case protocol.TypePlayerJoined:
		p := payload.(protocol.PlayerJoinedPayload)
		if s.room.Players == nil {
			s.room.Players = make(map[string]pageracer.Player)
		}
		// Upsert: a duplicate id replaces in place, never a second entry.
		s.room.Players[p.ID] = copyPlayer(p)
		return true

	case protocol.TypePlayerLeft:
		p := payload.(protocol.PlayerLeftPayload)
		if _, ok := s.room.Players[p.PlayerID]; !ok {
			return false
		}
		delete(s.room.Players, p.PlayerID)
		return true

	case protocol.TypeRaceStarted:
		p := payload.(protocol.RaceStartedPayload)
		s.room.Started = true
		if p.StartArticle != "" {
			s.room.StartArticle = p.StartArticle
		}
		if p.EndArticle != "" {
			s.room.EndArticle = p.EndArticle
		}
		return true

	case protocol.TypePlayerUpdate:
		p := payload.(protocol.PlayerUpdatePayload)
		player, ok := s.room.Players[p.PlayerID]
		if !ok {
			return false
		}
		// Patch position and click count only; Path is carried by
		// player_finish, not by incremental updates.
		player.CurrentArticle = p.CurrentArticle
		player.Clicks = p.Clicks
		s.room.Players[p.PlayerID] = player
		return true

	case protocol.TypePlayerFinish:
		p := payload.(protocol.PlayerFinishPayload)
		player, ok := s.room.Players[p.PlayerID]
		if !ok {
			return false
		}
		player.Finished = true
		finishTime := p.Time
		player.FinishTime = &finishTime
		player.Clicks = p.Clicks
		if p.Path != nil {
			player.Path = append([]string(nil), p.Path...)
		}
		s.room.Players[p.PlayerID] = player
		return true

	case protocol.TypeError:
		p := payload.(protocol.ErrorPayload)
		s.lastErr = p.Error
		return false

	default:
		return false
	}
}

func copyRoom(r pageracer.Room) pageracer.Room {
	out := r
	out.Players = make(map[string]pageracer.Player, len(r.Players))
	for id, p := range r.Players {
		out.Players[id] = copyPlayer(p)
	}
	return out
}

func copyPlayer(p pageracer.Player) pageracer.Player {
	out := p
	if p.Path != nil {
		out.Path = append([]string(nil), p.Path...)
	}
	if p.FinishTime != nil {
		t := *p.FinishTime
		out.FinishTime = &t
	}
	return out
}
