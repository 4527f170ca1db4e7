package engine

import (
	"fmt"
	"time"
)

type SpinPayload struct {
	Owner  string
	Bet    int64
	Rounds int
	Reels  Reels
	Match  Match
	Payout int64
	// Voided marks a round settled without a draw because the debit failed.
	Voided bool
}

func (SpinPayload) Kind() Kind { return KindSpin }

type SpinConfig struct {
	Inactivity time.Duration
	Paytable   Paytable
}

type SpinMachine struct {
	cfg SpinConfig
}

func NewSpinMachine(cfg SpinConfig) *SpinMachine {
	return &SpinMachine{cfg: cfg}
}

// NewSpinRound returns the initial state and payload of a spin-round session.
func NewSpinRound(owner string, bet int64) (State, SpinPayload, error) {
	if owner == "" || bet <= 0 {
		return "", SpinPayload{}, ErrInvalidBet
	}
	return StateAwaitingSpin, SpinPayload{Owner: owner, Bet: bet}, nil
}

func (m *SpinMachine) Kind() Kind { return KindSpin }

func (m *SpinMachine) Terminal(s State) bool { return s == StateExpired }

func (m *SpinMachine) Timer(s State, _ Payload) (time.Duration, bool) {
	switch s {
	case StateAwaitingSpin, StateRoundResult:
		return m.cfg.Inactivity, true
	}
	return 0, false
}

func (m *SpinMachine) Authorize(_ State, payload Payload, actor string, evt Event) bool {
	p, ok := payload.(SpinPayload)
	return ok && !evt.Type.Internal() && actor == p.Owner
}

func (m *SpinMachine) Transition(s State, evt Event, payload Payload) (Result, error) {
	p, ok := payload.(SpinPayload)
	if !ok {
		return Result{}, fmt.Errorf("%w: payload %T", ErrUnsupportedEvt, payload)
	}
	if m.Terminal(s) {
		return Result{}, ErrSessionOver
	}

	switch evt.Type {
	case EvtSpin:
		if s != StateAwaitingSpin && s != StateRoundResult {
			return Result{}, fmt.Errorf("%w: spin while %s", ErrInvalidTransition, s)
		}
		next := p
		next.Rounds++
		next.Reels = Reels{}
		next.Match = MatchNone
		next.Payout = 0
		next.Voided = false
		return Result{
			State:        StateSpinning,
			Payload:      next,
			RequireFunds: []FundsCheck{{Owner: p.Owner, Amount: p.Bet}},
			Effects: []Effect{
				{Type: EffectDebit, Owner: p.Owner, Amount: p.Bet},
				{Type: EffectPresent, Text: "Spinning..."},
				{Type: EffectDraw},
			},
		}, nil

	case EvtReveal:
		if s != StateSpinning {
			return Result{}, fmt.Errorf("%w: reveal while %s", ErrInvalidTransition, s)
		}
		next := p
		next.Reels = evt.Reels
		next.Match, _ = Evaluate(evt.Reels)
		next.Payout = p.Bet * m.cfg.Paytable.Multiplier(evt.Reels)

		effects := make([]Effect, 0, 3)
		if next.Payout > 0 {
			effects = append(effects, Effect{Type: EffectCredit, Owner: p.Owner, Amount: next.Payout})
		}
		effects = append(effects,
			Effect{Type: EffectRender},
			Effect{Type: EffectPresent, Text: revealText(next), Actions: []EventType{EvtSpin}},
		)
		return Result{State: StateRoundResult, Payload: next, Effects: effects}, nil

	case EvtVoid:
		if s != StateSpinning {
			return Result{}, fmt.Errorf("%w: void while %s", ErrInvalidTransition, s)
		}
		next := p
		next.Voided = true
		return Result{
			State:   StateRoundResult,
			Payload: next,
			Effects: []Effect{
				{Type: EffectPresent, Text: "Spin cancelled: insufficient balance.", Actions: []EventType{EvtSpin}},
			},
		}, nil

	case EvtTimeout:
		if s != StateAwaitingSpin && s != StateRoundResult {
			return Result{}, fmt.Errorf("%w: timeout while %s", ErrInvalidTransition, s)
		}
		return Result{
			State:   StateExpired,
			Payload: p,
			Effects: []Effect{{Type: EffectPresent, Text: "Session expired."}},
		}, nil
	}
	return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedEvt, evt.Type)
}

func revealText(p SpinPayload) string {
	switch p.Match {
	case MatchTriple:
		return "Triple match!"
	case MatchPair:
		return "Two of a kind."
	}
	return "No match."
}
