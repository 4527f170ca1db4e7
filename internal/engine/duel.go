package engine

import (
	"fmt"
	"time"
)

type Outcome string

const (
	OutcomeNone     Outcome = ""
	OutcomeWin      Outcome = "win"
	OutcomeLoss     Outcome = "loss"
	OutcomeTie      Outcome = "tie"
	OutcomeForfeit  Outcome = "forfeit"
	OutcomeDeclined Outcome = "declined"
	OutcomeExpired  Outcome = "expired"
)

// Challenge is the pre-game handshake between two players.
type Challenge struct {
	ChallengerID string
	OpponentID   string
	ExpiresAt    time.Time
}

type DuelPayload struct {
	Challenge Challenge
	// Players[0] is the challenger and moves first.
	Players  [2]string
	Turn     int
	Board    Board
	Moves    int
	LastMove *Cell
	Outcome  Outcome
	Winner   string
	WinAxis  string
	WinLine  []Cell
}

func (DuelPayload) Kind() Kind { return KindDuel }

// CurrentPlayer is the player whose move it is.
func (p DuelPayload) CurrentPlayer() string { return p.Players[p.Turn] }

func (p DuelPayload) seat(actor string) int {
	for i, id := range p.Players {
		if id == actor {
			return i
		}
	}
	return -1
}

type DuelConfig struct {
	TurnTimeout  time.Duration
	ChallengeTTL time.Duration
	// Reward is credited to the winner of a decided game; zero disables it.
	Reward int64
}

type DuelMachine struct {
	cfg DuelConfig
}

func NewDuelMachine(cfg DuelConfig) *DuelMachine {
	return &DuelMachine{cfg: cfg}
}

// NewDuel returns the initial state and payload of a board-duel challenge.
func NewDuel(challenger, opponent string, expiresAt time.Time) (State, DuelPayload, error) {
	if challenger == "" || opponent == "" || challenger == opponent {
		return "", DuelPayload{}, fmt.Errorf("%w: players must be two distinct ids", ErrInvalidTransition)
	}
	return StateChallenge, DuelPayload{
		Challenge: Challenge{ChallengerID: challenger, OpponentID: opponent, ExpiresAt: expiresAt},
		Players:   [2]string{challenger, opponent},
	}, nil
}

func (m *DuelMachine) Kind() Kind { return KindDuel }

func (m *DuelMachine) Terminal(s State) bool { return s == StateFinished }

func (m *DuelMachine) Timer(s State, _ Payload) (time.Duration, bool) {
	switch s {
	case StateChallenge:
		return m.cfg.ChallengeTTL, true
	case StatePlaying:
		return m.cfg.TurnTimeout, true
	}
	return 0, false
}

func (m *DuelMachine) Authorize(s State, payload Payload, actor string, evt Event) bool {
	p, ok := payload.(DuelPayload)
	if !ok || evt.Type.Internal() || p.seat(actor) < 0 {
		return false
	}
	switch {
	case s == StateChallenge && evt.Type == EvtAccept:
		return actor == p.Challenge.OpponentID
	case s == StatePlaying && evt.Type == EvtMove:
		return actor == p.CurrentPlayer()
	}
	return true
}

func (m *DuelMachine) Transition(s State, evt Event, payload Payload) (Result, error) {
	p, ok := payload.(DuelPayload)
	if !ok {
		return Result{}, fmt.Errorf("%w: payload %T", ErrUnsupportedEvt, payload)
	}
	if m.Terminal(s) {
		return Result{}, ErrSessionOver
	}

	switch s {
	case StateChallenge:
		return m.challenge(p, evt)
	case StatePlaying:
		return m.playing(p, evt)
	}
	return Result{}, fmt.Errorf("%w: state %s", ErrInvalidTransition, s)
}

func (m *DuelMachine) challenge(p DuelPayload, evt Event) (Result, error) {
	switch evt.Type {
	case EvtAccept:
		if evt.Actor != p.Challenge.OpponentID {
			return Result{}, fmt.Errorf("%w: only the challenged player can accept", ErrInvalidTransition)
		}
		next := p
		next.Turn = 0
		return Result{
			State:   StatePlaying,
			Payload: next,
			Effects: []Effect{
				{Type: EffectRender},
				{Type: EffectPresent, Text: "Challenge accepted.", Actions: []EventType{EvtMove}},
			},
		}, nil

	case EvtDecline:
		next := p
		next.Outcome = OutcomeDeclined
		return finished(next, "Challenge declined."), nil

	case EvtTimeout:
		next := p
		next.Outcome = OutcomeExpired
		return finished(next, "Challenge expired."), nil
	}
	return Result{}, fmt.Errorf("%w: %s during challenge", ErrUnsupportedEvt, evt.Type)
}

func (m *DuelMachine) playing(p DuelPayload, evt Event) (Result, error) {
	switch evt.Type {
	case EvtMove:
		if evt.Actor != p.CurrentPlayer() {
			return Result{}, ErrNotYourTurn
		}
		if evt.Column < 0 || evt.Column >= BoardCols {
			return Result{}, ErrInvalidColumn
		}
		row, ok := p.Board.Drop(evt.Column)
		if !ok {
			return Result{}, ErrColumnFull
		}

		next := p
		next.Board[row][evt.Column] = p.Turn + 1
		next.Moves++
		next.LastMove = &Cell{Row: row, Col: evt.Column}

		if ax, line, won := next.Board.WinningLine(row, evt.Column); won {
			next.Outcome = OutcomeWin
			next.Winner = evt.Actor
			next.WinAxis = ax.Name
			next.WinLine = line
			return m.decided(next, "Four in a row!"), nil
		}
		if next.Board.Full() {
			next.Outcome = OutcomeTie
			return finished(next, "Board full: it's a tie."), nil
		}

		next.Turn = nextTurn(p.Turn)
		return Result{
			State:   StatePlaying,
			Payload: next,
			Effects: []Effect{
				{Type: EffectRender},
				{Type: EffectPresent, Text: "Move played.", Actions: []EventType{EvtMove}},
			},
		}, nil

	case EvtDecline:
		// Leaving a running game concedes it.
		next := p
		next.Outcome = OutcomeForfeit
		next.Winner = p.Players[1-p.seat(evt.Actor)]
		return m.decided(next, "Game conceded."), nil

	case EvtTimeout:
		next := p
		next.Outcome = OutcomeForfeit
		next.Winner = p.Players[nextTurn(p.Turn)]
		return m.decided(next, "Turn timed out."), nil
	}
	return Result{}, fmt.Errorf("%w: %s during play", ErrUnsupportedEvt, evt.Type)
}

func (m *DuelMachine) decided(p DuelPayload, text string) Result {
	res := finished(p, text)
	if m.cfg.Reward > 0 && p.Winner != "" {
		res.Effects = append([]Effect{{Type: EffectCredit, Owner: p.Winner, Amount: m.cfg.Reward}}, res.Effects...)
	}
	return res
}

func finished(p DuelPayload, text string) Result {
	return Result{
		State:   StateFinished,
		Payload: p,
		Effects: []Effect{
			{Type: EffectRender},
			{Type: EffectPresent, Text: text},
		},
	}
}
