// Package meet surfaces "player X is on your article" notifications,
// deduplicated per (player, article) for the lifetime of a race so two
// players lingering on the same page are announced once, not on every room
// update.
package meet

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/pageracer/pageracer"
	"github.com/pageracer/pageracer/internal/race"
)

// DismissAfter is how long a notification stays on screen, independent of
// whether new meetings occur.
const DismissAfter = 4 * time.Second

// palette is the set of stable per-player colors; the same id always maps
// to the same entry on every client.
var palette = []string{
	"#e6194b", "#3cb44b", "#ffe119", "#4363d8",
	"#f58231", "#911eb4", "#46f0f0", "#f032e6",
}

// Notifier tracks which meetings were already announced. The record only
// grows during a race: navigating away from an article and back does not
// re-announce the same player there.
type Notifier struct {
	mu   sync.Mutex
	seen map[string]map[string]struct{} // player id -> articles announced
}

// New creates an empty Notifier.
func New() *Notifier {
	return &Notifier{seen: make(map[string]map[string]struct{})}
}

// Observe compares the local player's article against every other player in
// the snapshot and returns one notification per newly met player, recording
// each so it never fires again for that (player, article) pair.
func (n *Notifier) Observe(snapshot pageracer.Room, localID string) []pageracer.Notification {
	local, ok := snapshot.Players[localID]
	if !ok || local.CurrentArticle == "" {
		return nil
	}
	here := race.Normalize(local.CurrentArticle)

	n.mu.Lock()
	defer n.mu.Unlock()

	var out []pageracer.Notification
	for id, p := range snapshot.Players {
		if id == localID || race.Normalize(p.CurrentArticle) != here {
			continue
		}
		articles, ok := n.seen[id]
		if !ok {
			articles = make(map[string]struct{})
			n.seen[id] = articles
		}
		if _, dup := articles[here]; dup {
			continue
		}
		articles[here] = struct{}{}

		out = append(out, pageracer.Notification{
			Kind:       pageracer.NotifyMeeting,
			PlayerID:   id,
			PlayerName: p.Name,
			Color:      ColorFor(id),
			Article:    local.CurrentArticle,
			Dismiss:    DismissAfter,
		})
	}
	return out
}

// Finish builds a "reached destination" notification. Finishes bypass the
// meeting dedup entirely: a finish is always worth announcing.
func (n *Notifier) Finish(playerID, playerName string) pageracer.Notification {
	return pageracer.Notification{
		Kind:       pageracer.NotifyFinish,
		PlayerID:   playerID,
		PlayerName: playerName,
		Color:      ColorFor(playerID),
		Dismiss:    DismissAfter,
	}
}

// Reset clears the meeting record when a race instance ends.
func (n *Notifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seen = make(map[string]map[string]struct{})
}

// ColorFor deterministically derives a player's display color from their
// id.
func ColorFor(playerID string) string {
	h := fnv.New32a()
	h.Write([]byte(playerID))
	return palette[h.Sum32()%uint32(len(palette))]
}
