package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/arcade-sessions/internal/engine"
	"github.com/DoyleJ11/arcade-sessions/internal/session"
	"github.com/DoyleJ11/arcade-sessions/pkg/types"
)

// StartSpin opens a spin-round session for owner with a fixed bet.
func (d *Dispatcher) StartSpin(ctx context.Context, owner string, bet int64) (session.Session, error) {
	state, payload, err := engine.NewSpinRound(owner, bet)
	if err != nil {
		return session.Session{}, err
	}
	text := fmt.Sprintf("Bet %d per spin. Press spin!", bet)
	return d.start(ctx, session.Solo(owner), engine.KindSpin, state, payload, text, engine.EvtSpin)
}

// StartWord opens a word-guess session. An empty word is drawn from the word
// source.
func (d *Dispatcher) StartWord(ctx context.Context, owner, word string) (session.Session, error) {
	if word == "" {
		if d.words == nil {
			return session.Session{}, fmt.Errorf("%w: no word source", engine.ErrInvalidWord)
		}
		word = d.words.RandomWord()
	}
	state, payload, err := engine.NewWordGame(owner, word, d.cfg.WordMaxWrong)
	if err != nil {
		return session.Session{}, err
	}
	text := fmt.Sprintf("Guess the %d-letter word. %d wrong guesses allowed.", len(payload.Solved), payload.MaxWrong-1)
	return d.start(ctx, session.Solo(owner), engine.KindWord, state, payload, text, engine.EvtGuessLetter, engine.EvtGuessWord)
}

// Challenge opens a board-duel session in the challenge state. The opponent
// accepts or declines it; the challenge lapses after the challenge TTL.
func (d *Dispatcher) Challenge(ctx context.Context, challenger, opponent string) (session.Session, error) {
	state, payload, err := engine.NewDuel(challenger, opponent, d.clock.Now().Add(d.cfg.ChallengeTTL))
	if err != nil {
		return session.Session{}, err
	}
	text := fmt.Sprintf("%s challenged %s to a duel.", challenger, opponent)
	return d.start(ctx, session.Pair(challenger, opponent), engine.KindDuel, state, payload, text, engine.EvtAccept, engine.EvtDecline)
}

func (d *Dispatcher) start(ctx context.Context, owner session.OwnerKey, kind engine.Kind, state engine.State, payload engine.Payload, text string, actions ...engine.EventType) (session.Session, error) {
	s, err := d.sessions.Create(owner, kind, state, payload)
	if err != nil {
		return session.Session{}, err
	}
	m := d.machines[kind]
	d.arm(m, s)

	effects := []engine.Effect{
		{Type: engine.EffectRender},
		{Type: engine.EffectPresent, Text: text, Actions: actions},
	}
	if _, err := d.runEffects(ctx, s, effects, false); err != nil {
		d.log.Warn("initial presentation failed", zap.String("session_id", s.ID), zap.Error(err))
	}
	d.log.Info("session started",
		zap.String("session_id", s.ID),
		zap.String("kind", string(kind)),
		zap.Strings("owners", owner.Participants()),
	)
	return d.sessions.Get(s.ID)
}

// Sweep removes sessions idle for longer than idle and presents a final
// update for each. It returns how many sessions were removed.
func (d *Dispatcher) Sweep(ctx context.Context, idle time.Duration) int {
	removed := 0
	for _, s := range d.sessions.Idle(idle) {
		// A session touched since the scan is no longer idle.
		if _, ok := d.sessions.RemoveIfVersion(s.ID, s.Version); !ok {
			continue
		}
		removed++
		d.log.Info("swept idle session",
			zap.String("session_id", s.ID),
			zap.String("kind", string(s.Kind)),
			zap.Int64("version", s.Version),
			zap.Time("last_activity_at", s.LastActivityAt),
		)
		err := d.presenter.Present(ctx, types.Update{
			SessionID: s.ID,
			Version:   s.Version,
			Text:      "Session expired.",
			Final:     true,
		})
		if err != nil {
			d.log.Warn("present swept session", zap.String("session_id", s.ID), zap.Error(err))
		}
	}
	return removed
}
