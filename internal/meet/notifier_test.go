package meet

import (
	"testing"

	"github.com/pageracer/pageracer"
)

func snapshot(articles map[string]string) pageracer.Room {
	players := make(map[string]pageracer.Player, len(articles))
	for id, article := range articles {
		players[id] = pageracer.Player{ID: id, Name: "name-" + id, CurrentArticle: article}
	}
	return pageracer.Room{ID: "r1", Players: players}
}

// TestMeetingFiresOncePerArticle tests dedup across repeated room updates
// and across navigating away and back
func TestMeetingFiresOncePerArticle(t *testing.T) {
	t.Parallel()

	n := New()

	// Both players on Dog: one notification.
	got := n.Observe(snapshot(map[string]string{"me": "Dog", "x": "Dog"}), "me")
	if len(got) != 1 {
		t.Fatalf("first observe = %d notifications, want 1", len(got))
	}
	if got[0].Kind != pageracer.NotifyMeeting || got[0].PlayerID != "x" {
		t.Errorf("notification = %+v, want meeting with player x", got[0])
	}

	// Room updates again while both linger on Dog: nothing new.
	if got := n.Observe(snapshot(map[string]string{"me": "Dog", "x": "Dog"}), "me"); len(got) != 0 {
		t.Errorf("second observe = %d notifications, want 0", len(got))
	}

	// X leaves Dog and comes back: still nothing, the record is permanent
	// for the race.
	n.Observe(snapshot(map[string]string{"me": "Dog", "x": "Cat"}), "me")
	if got := n.Observe(snapshot(map[string]string{"me": "Dog", "x": "Dog"}), "me"); len(got) != 0 {
		t.Errorf("observe after revisit = %d notifications, want 0", len(got))
	}

	// A different article is a new meeting.
	if got := n.Observe(snapshot(map[string]string{"me": "Wolf", "x": "Wolf"}), "me"); len(got) != 1 {
		t.Errorf("observe on new article = %d notifications, want 1", len(got))
	}
}

// TestMeetingMatchesNormalizedTitles tests that title variants of the same
// article meet
func TestMeetingMatchesNormalizedTitles(t *testing.T) {
	t.Parallel()

	n := New()
	got := n.Observe(snapshot(map[string]string{"me": "Domestic_dog", "x": "domestic dog"}), "me")
	if len(got) != 1 {
		t.Errorf("observe = %d notifications, want 1 for normalized match", len(got))
	}
}

// TestNoMeetingCases tests the non-firing paths
func TestNoMeetingCases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		articles map[string]string
		localID  string
	}{
		{name: "different articles", articles: map[string]string{"me": "Dog", "x": "Cat"}, localID: "me"},
		{name: "alone in the room", articles: map[string]string{"me": "Dog"}, localID: "me"},
		{name: "local player unknown", articles: map[string]string{"x": "Dog"}, localID: "me"},
		{name: "local article empty", articles: map[string]string{"me": "", "x": ""}, localID: "me"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			n := New()
			if got := n.Observe(snapshot(tt.articles), tt.localID); len(got) != 0 {
				t.Errorf("observe = %d notifications, want 0", len(got))
			}
		})
	}
}

// TestFinishBypassesDedup tests that finish notifications always fire
func TestFinishBypassesDedup(t *testing.T) {
	t.Parallel()

	n := New()
	n.Observe(snapshot(map[string]string{"me": "Dog", "x": "Dog"}), "me")

	got := n.Finish("x", "name-x")
	if got.Kind != pageracer.NotifyFinish {
		t.Errorf("Kind = %v, want NotifyFinish", got.Kind)
	}
	if got.PlayerName != "name-x" {
		t.Errorf("PlayerName = %q, want name-x", got.PlayerName)
	}
	if got.Dismiss != DismissAfter {
		t.Errorf("Dismiss = %v, want %v", got.Dismiss, DismissAfter)
	}
}

// TestResetClearsRecord tests that a new race instance starts clean
func TestResetClearsRecord(t *testing.T) {
	t.Parallel()

	n := New()
	n.Observe(snapshot(map[string]string{"me": "Dog", "x": "Dog"}), "me")
	n.Reset()

	if got := n.Observe(snapshot(map[string]string{"me": "Dog", "x": "Dog"}), "me"); len(got) != 1 {
		t.Errorf("observe after Reset = %d notifications, want 1", len(got))
	}
}

// TestColorForStable tests deterministic per-id colors
func TestColorForStable(t *testing.T) {
	t.Parallel()

	if ColorFor("p1") != ColorFor("p1") {
		t.Error("ColorFor is not deterministic")
	}
	if ColorFor("p1") == "" {
		t.Error("ColorFor returned an empty color")
	}
}
