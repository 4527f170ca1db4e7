package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func guess(t *testing.T, m *WordMachine, state State, p WordPayload, letters string) (Result, error) {
	t.Helper()
	var res Result
	var err error
	for _, r := range letters {
		res, err = m.Transition(state, Event{Type: EvtGuessLetter, Actor: p.Owner, Letter: r}, p)
		if err != nil {
			return res, err
		}
		state, p = res.State, res.Payload.(WordPayload)
	}
	return res, nil
}

func TestNewWordGameValidates(t *testing.T) {
	_, p, err := NewWordGame("u1", " Apple ", 7)
	require.NoError(t, err)
	assert.Equal(t, "apple", p.Word)
	assert.Len(t, p.Solved, 5)
	assert.Equal(t, "_____", p.Masked())

	for _, w := range []string{"", "two words", "caf3"} {
		_, _, err := NewWordGame("u1", w, 7)
		assert.ErrorIs(t, err, ErrInvalidWord, w)
	}
	_, _, err = NewWordGame("u1", "apple", 0)
	assert.ErrorIs(t, err, ErrInvalidWord)
}

func TestSevenWrongGuessesLose(t *testing.T) {
	m := NewWordMachine(WordConfig{Reward: 20})
	state, p, err := NewWordGame("u1", "apple", 7)
	require.NoError(t, err)

	res, err := guess(t, m, state, p, "bcdfgh")
	require.NoError(t, err)
	require.Equal(t, StatePlaying, res.State)
	p = res.Payload.(WordPayload)
	assert.Equal(t, 6, p.Wrong)

	res, err = m.Transition(res.State, Event{Type: EvtGuessLetter, Actor: "u1", Letter: 'i'}, p)
	require.NoError(t, err)
	assert.Equal(t, StateFinished, res.State)
	assert.Equal(t, OutcomeLoss, res.Payload.(WordPayload).Outcome)
	assert.False(t, ContainsEffect(res.Effects, EffectCredit))

	_, err = m.Transition(res.State, Event{Type: EvtGuessLetter, Actor: "u1", Letter: 'j'}, res.Payload)
	assert.ErrorIs(t, err, ErrSessionOver)
}

func TestSolvingAllLettersWins(t *testing.T) {
	cases := []struct {
		name    string
		letters string
		state   State
		outcome Outcome
	}{
		{name: "clean solve", letters: "aple", state: StateFinished, outcome: OutcomeWin},
		{name: "solve with wrong below max", letters: "xyapzle", state: StateFinished, outcome: OutcomeWin},
		{name: "max reached before solving", letters: "apbcdfghi", state: StateFinished, outcome: OutcomeLoss},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewWordMachine(WordConfig{Reward: 20})
			state, p, err := NewWordGame("u1", "apple", 7)
			require.NoError(t, err)
			res, err := guess(t, m, state, p, tc.letters)
			require.NoError(t, err)
			assert.Equal(t, tc.state, res.State)
			got := res.Payload.(WordPayload)
			assert.Equal(t, tc.outcome, got.Outcome)
			assert.Less(t, got.Wrong, 8)
			assert.Equal(t, tc.outcome == OutcomeWin, ContainsEffect(res.Effects, EffectCredit))
		})
	}
}

func TestRepeatedLetterLeavesPayloadUnchanged(t *testing.T) {
	m := NewWordMachine(WordConfig{})
	state, p, err := NewWordGame("u1", "apple", 7)
	require.NoError(t, err)

	for _, letter := range []rune{'p', 'z'} {
		res, err := m.Transition(state, Event{Type: EvtGuessLetter, Actor: "u1", Letter: letter}, p)
		require.NoError(t, err)
		p = res.Payload.(WordPayload)
	}
	solved := append([]bool(nil), p.Solved...)

	for _, letter := range []rune{'p', 'z', 'P'} {
		_, err := m.Transition(state, Event{Type: EvtGuessLetter, Actor: "u1", Letter: letter}, p)
		assert.ErrorIs(t, err, ErrAlreadyGuessed)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	}
	assert.Equal(t, 1, p.Wrong)
	assert.Equal(t, solved, p.Solved)
}

func TestTransitionDoesNotMutateInput(t *testing.T) {
	m := NewWordMachine(WordConfig{})
	state, p, err := NewWordGame("u1", "apple", 7)
	require.NoError(t, err)

	_, err = m.Transition(state, Event{Type: EvtGuessLetter, Actor: "u1", Letter: 'a'}, p)
	require.NoError(t, err)
	assert.Empty(t, p.Guessed)
	assert.Equal(t, []bool{false, false, false, false, false}, p.Solved)
}

func TestGuessWord(t *testing.T) {
	m := NewWordMachine(WordConfig{})
	state, p, err := NewWordGame("u1", "apple", 7)
	require.NoError(t, err)

	res, err := guess(t, m, state, p, "a")
	require.NoError(t, err)
	p = res.Payload.(WordPayload)

	_, err = m.Transition(state, Event{Type: EvtGuessWord, Actor: "u1", Word: "apple"}, p)
	assert.ErrorIs(t, err, ErrWordGuessLocked)

	res, err = guess(t, m, state, p, "p")
	require.NoError(t, err)
	p = res.Payload.(WordPayload)

	res, err = m.Transition(state, Event{Type: EvtGuessWord, Actor: "u1", Word: "ample"}, p)
	require.NoError(t, err)
	assert.Equal(t, StatePlaying, res.State)
	assert.Equal(t, 1, res.Payload.(WordPayload).Wrong)

	res, err = m.Transition(state, Event{Type: EvtGuessWord, Actor: "u1", Word: "APPLE"}, p)
	require.NoError(t, err)
	assert.Equal(t, StateFinished, res.State)
	got := res.Payload.(WordPayload)
	assert.Equal(t, OutcomeWin, got.Outcome)
	assert.Equal(t, "apple", got.Masked())
}

func TestWordRejectsBadInput(t *testing.T) {
	m := NewWordMachine(WordConfig{})
	state, p, err := NewWordGame("u1", "apple", 7)
	require.NoError(t, err)

	_, err = m.Transition(state, Event{Type: EvtGuessLetter, Actor: "u1", Letter: '7'}, p)
	assert.ErrorIs(t, err, ErrInvalidGuess)
	_, err = m.Transition(state, Event{Type: EvtMove, Actor: "u1"}, p)
	assert.ErrorIs(t, err, ErrUnsupportedEvt)
	assert.False(t, m.Authorize(state, p, "u2", Event{Type: EvtGuessLetter}))
	_, armed := m.Timer(state, p)
	assert.False(t, armed)
}
