package engine

import (
	"errors"
	"time"
)

var ErrInvalidTransition = errors.New("invalid transition")

// Detail errors; all of them match ErrInvalidTransition with errors.Is.
var (
	ErrSessionOver     = wrapInvalid("session is over")
	ErrNotYourTurn     = wrapInvalid("not your turn")
	ErrInvalidColumn   = wrapInvalid("invalid column")
	ErrColumnFull      = wrapInvalid("column is full")
	ErrAlreadyGuessed  = wrapInvalid("letter already guessed")
	ErrInvalidGuess    = wrapInvalid("invalid guess")
	ErrWordGuessLocked = wrapInvalid("word guess needs two correct letters")
	ErrInvalidBet      = wrapInvalid("invalid bet")
	ErrInvalidWord     = wrapInvalid("invalid word")
	ErrUnsupportedEvt  = wrapInvalid("unsupported event")
)

type invalidError struct{ msg string }

func (e *invalidError) Error() string        { return e.msg }
func (e *invalidError) Is(target error) bool { return target == ErrInvalidTransition }

func wrapInvalid(msg string) error { return &invalidError{msg: msg} }

type Kind string

const (
	KindSpin Kind = "spin-round"
	KindDuel Kind = "board-duel"
	KindWord Kind = "word-guess"
)

type State string

const (
	// spin-round
	StateAwaitingSpin State = "awaiting_spin"
	StateSpinning     State = "spinning"
	StateRoundResult  State = "round_result"
	StateExpired      State = "expired"

	// board-duel
	StateChallenge State = "challenge"

	// board-duel and word-guess
	StatePlaying  State = "playing"
	StateFinished State = "finished"
)

type EventType string

const (
	EvtSpin        EventType = "spin"
	EvtAccept      EventType = "accept"
	EvtDecline     EventType = "decline"
	EvtMove        EventType = "move"
	EvtGuessLetter EventType = "guess_letter"
	EvtGuessWord   EventType = "guess_word"

	// Produced by the engine's own runtime, never accepted from a user.
	EvtTimeout EventType = "timeout"
	EvtReveal  EventType = "reveal"
	EvtVoid    EventType = "void"
)

// Internal reports whether the event type can only be raised by the runtime.
func (t EventType) Internal() bool {
	switch t {
	case EvtTimeout, EvtReveal, EvtVoid:
		return true
	}
	return false
}

type Event struct {
	Type   EventType
	Actor  string
	Column int
	Letter rune
	Word   string
	Reels  Reels
}

type EffectType string

const (
	EffectDebit   EffectType = "debit"
	EffectCredit  EffectType = "credit"
	EffectRender  EffectType = "render"
	EffectPresent EffectType = "present"
	// EffectDraw asks the runtime to draw reels from the spin policy and feed
	// them back as an EvtReveal once the preceding effects have run.
	EffectDraw EffectType = "draw"
)

// Effect is a declarative post-commit instruction. Machines never execute them.
type Effect struct {
	Type    EffectType
	Owner   string
	Amount  int64
	Text    string
	Actions []EventType
}

// FundsCheck is a read-only balance precondition verified before commit.
type FundsCheck struct {
	Owner  string
	Amount int64
}

type Payload interface {
	Kind() Kind
}

type Result struct {
	State        State
	Payload      Payload
	Effects      []Effect
	RequireFunds []FundsCheck
}

// Machine is the pure transition function for one game kind.
type Machine interface {
	Kind() Kind
	Transition(state State, evt Event, payload Payload) (Result, error)
	// Authorize reports whether actor may raise evt in the current state.
	Authorize(state State, payload Payload, actor string, evt Event) bool
	Terminal(state State) bool
	// Timer returns the deadline armed on entry to state, if any.
	Timer(state State, payload Payload) (time.Duration, bool)
}
