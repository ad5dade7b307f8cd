package main

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pageracer/pageracer"
	"github.com/pageracer/pageracer/client"
)

// flatLayout is the bot's stand-in for a rendered article: fixed geometry,
// no headings, so any decoded cursor falls back to plain fractions. The bot
// never renders anything; it only needs the codec to stay satisfied.
type flatLayout struct{}

func (flatLayout) ContentWidth() float64         { return 800 }
func (flatLayout) ContentHeight() float64        { return 4000 }
func (flatLayout) Headings() []pageracer.Heading { return nil }

func run(ctx context.Context, cfg *Config) error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	if cfg.verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	var startOnce, doneOnce sync.Once
	started := make(chan struct{})
	done := make(chan struct{})

	var sess *client.Session
	sess = client.New(client.Config{
		URL:        cfg.url,
		PlayerName: cfg.name,
		LayoutFor: func(string) (pageracer.Layout, bool) {
			return flatLayout{}, true
		},
		OnConnState: func(s pageracer.ConnState) {
			log.Info().Stringer("state", s).Msg("connection")
		},
		OnRoom: func(r pageracer.Room) {
			log.Debug().Int("players", len(r.Players)).Bool("started", r.Started).Msg("room update")
			if r.Started {
				startOnce.Do(func() { close(started) })
			}
			if p, ok := r.Players[sess.LocalPlayerID()]; ok && p.Finished {
				log.Info().Int("clicks", p.Clicks).Msg("finished")
				doneOnce.Do(func() { close(done) })
			}
		},
		OnNotification: func(n pageracer.Notification) {
			log.Info().Str("kind", string(n.Kind)).Str("player", n.PlayerName).Msg("notification")
		},
		OnCountdown: func(remaining time.Duration) {
			log.Debug().Dur("remaining", remaining).Msg("grace countdown")
		},
		OnForcedResults: func() {
			log.Info().Msg("grace period elapsed, did not finish")
			doneOnce.Do(func() { close(done) })
		},
		OnError: func(msg string) {
			log.Warn().Str("error", msg).Msg("server error")
		},
	})
	defer sess.Close()

	if err := sess.Connect(ctx); err != nil {
		return err
	}
	if !sess.JoinRoom(cfg.room, cfg.startArticle, cfg.endArticle) {
		log.Warn().Msg("join_room send failed")
	}

	if cfg.host {
		// Give other players a moment to join before starting.
		select {
		case <-time.After(cfg.stepInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
		sess.StartRace()
	}

	select {
	case <-started:
	case <-ctx.Done():
		return ctx.Err()
	}

	log.Info().Strs("path", cfg.path).Msg("race started, walking path")
	sess.ContentLoaded()

	for _, article := range cfg.path {
		select {
		case <-time.After(cfg.stepInterval):
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
		log.Info().Str("article", article).Dur("elapsed", sess.Elapsed()).Msg("navigate")
		sess.Navigate(article)
	}

	// Path exhausted: hang around until the race resolves either way.
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	sess.LeaveRoom()
	return nil
}
