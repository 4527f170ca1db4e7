package engine

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// MinCorrectForWordGuess is how many distinct correct letters unlock guessWord.
const MinCorrectForWordGuess = 2

type WordPayload struct {
	Owner    string
	Word     string
	Guessed  []rune
	Solved   []bool
	Wrong    int
	MaxWrong int
	Outcome  Outcome
}

func (WordPayload) Kind() Kind { return KindWord }

// Masked returns the word with unsolved letters replaced by '_'.
func (p WordPayload) Masked() string {
	var b strings.Builder
	for i, r := range []rune(p.Word) {
		if p.Solved[i] {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Correct counts distinct guessed letters present in the word.
func (p WordPayload) Correct() int {
	n := 0
	for _, g := range p.Guessed {
		if strings.ContainsRune(p.Word, g) {
			n++
		}
	}
	return n
}

func (p WordPayload) solved() bool {
	for _, ok := range p.Solved {
		if !ok {
			return false
		}
	}
	return true
}

func (p WordPayload) clone() WordPayload {
	next := p
	next.Guessed = slices.Clone(p.Guessed)
	next.Solved = slices.Clone(p.Solved)
	return next
}

type WordConfig struct {
	Reward int64
}

type WordMachine struct {
	cfg WordConfig
}

func NewWordMachine(cfg WordConfig) *WordMachine {
	return &WordMachine{cfg: cfg}
}

// NewWordGame returns the initial state and payload of a word-guess session.
// The word is lowercased and must consist of letters a-z only.
func NewWordGame(owner, word string, maxWrong int) (State, WordPayload, error) {
	word = strings.ToLower(strings.TrimSpace(word))
	if owner == "" || word == "" || maxWrong <= 0 {
		return "", WordPayload{}, ErrInvalidWord
	}
	for _, r := range word {
		if !isLetter(r) {
			return "", WordPayload{}, fmt.Errorf("%w: %q", ErrInvalidWord, word)
		}
	}
	return StatePlaying, WordPayload{
		Owner:    owner,
		Word:     word,
		Solved:   make([]bool, utf8.RuneCountInString(word)),
		MaxWrong: maxWrong,
	}, nil
}

func isLetter(r rune) bool { return r >= 'a' && r <= 'z' }

func (m *WordMachine) Kind() Kind { return KindWord }

func (m *WordMachine) Terminal(s State) bool { return s == StateFinished }

func (m *WordMachine) Timer(State, Payload) (time.Duration, bool) { return 0, false }

func (m *WordMachine) Authorize(_ State, payload Payload, actor string, evt Event) bool {
	p, ok := payload.(WordPayload)
	return ok && !evt.Type.Internal() && actor == p.Owner
}

func (m *WordMachine) Transition(s State, evt Event, payload Payload) (Result, error) {
	p, ok := payload.(WordPayload)
	if !ok {
		return Result{}, fmt.Errorf("%w: payload %T", ErrUnsupportedEvt, payload)
	}
	if m.Terminal(s) {
		return Result{}, ErrSessionOver
	}
	if s != StatePlaying {
		return Result{}, fmt.Errorf("%w: state %s", ErrInvalidTransition, s)
	}

	switch evt.Type {
	case EvtGuessLetter:
		return m.guessLetter(p, evt.Letter)
	case EvtGuessWord:
		return m.guessWord(p, evt.Word)
	case EvtDecline:
		next := p.clone()
		next.Outcome = OutcomeLoss
		return m.settle(next, "You gave up.")
	}
	return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedEvt, evt.Type)
}

func (m *WordMachine) guessLetter(p WordPayload, letter rune) (Result, error) {
	if letter >= 'A' && letter <= 'Z' {
		letter += 'a' - 'A'
	}
	if !isLetter(letter) {
		return Result{}, ErrInvalidGuess
	}
	if slices.Contains(p.Guessed, letter) {
		return Result{}, ErrAlreadyGuessed
	}

	next := p.clone()
	next.Guessed = append(next.Guessed, letter)
	hit := false
	for i, r := range []rune(p.Word) {
		if r == letter {
			next.Solved[i] = true
			hit = true
		}
	}
	if !hit {
		next.Wrong++
	}
	return m.settle(next, letterText(hit, letter))
}

func (m *WordMachine) guessWord(p WordPayload, word string) (Result, error) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return Result{}, ErrInvalidGuess
	}
	if p.Correct() < MinCorrectForWordGuess {
		return Result{}, ErrWordGuessLocked
	}

	next := p.clone()
	if word == p.Word {
		for i := range next.Solved {
			next.Solved[i] = true
		}
		return m.settle(next, "You guessed the word!")
	}
	next.Wrong++
	return m.settle(next, fmt.Sprintf("%q is not the word.", word))
}

// settle decides whether the updated payload ends the game.
func (m *WordMachine) settle(next WordPayload, text string) (Result, error) {
	switch {
	case next.Outcome == OutcomeLoss:
	case next.solved():
		next.Outcome = OutcomeWin
	case next.Wrong >= next.MaxWrong:
		next.Outcome = OutcomeLoss
	default:
		return Result{
			State:   StatePlaying,
			Payload: next,
			Effects: []Effect{
				{Type: EffectRender},
				{Type: EffectPresent, Text: text, Actions: []EventType{EvtGuessLetter, EvtGuessWord}},
			},
		}, nil
	}

	effects := make([]Effect, 0, 3)
	if next.Outcome == OutcomeWin && m.cfg.Reward > 0 {
		effects = append(effects, Effect{Type: EffectCredit, Owner: next.Owner, Amount: m.cfg.Reward})
	}
	final := "Out of guesses. The word was " + next.Word + "."
	if next.Outcome == OutcomeWin {
		final = "Solved: " + next.Word + "!"
	}
	effects = append(effects,
		Effect{Type: EffectRender},
		Effect{Type: EffectPresent, Text: final},
	)
	return Result{State: StateFinished, Payload: next, Effects: effects}, nil
}

func letterText(hit bool, letter rune) string {
	if hit {
		return fmt.Sprintf("Yes, there is a %q.", letter)
	}
	return fmt.Sprintf("No %q in the word.", letter)
}
