package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/DoyleJ11/arcade-sessions/internal/engine"
)

func TestRenderSpin(t *testing.T) {
	r := NewText(WithGlyphs(map[engine.Symbol]string{"bell": "B"}))
	out, err := r.Render(engine.SpinPayload{
		Bet:    1500,
		Reels:  engine.Reels{"bell", "bell", "star"},
		Match:  engine.MatchPair,
		Payout: 4500,
	})
	require.NoError(t, err)
	assert.Equal(t, "[ B | B | star ]\nbet 1,500 · pair · won 4,500\n", string(out))
}

func TestRenderDuel(t *testing.T) {
	_, p, err := engine.NewDuel("U1", "U2", time.Time{})
	require.NoError(t, err)
	p.Board[5][0] = 1
	p.Board[5][1] = 2
	p.Turn = 0

	out, err := NewText().Render(p)
	require.NoError(t, err)
	assert.Equal(t, ""+
		". . . . . . .\n"+
		". . . . . . .\n"+
		". . . . . . .\n"+
		". . . . . . .\n"+
		". . . . . . .\n"+
		"X O . . . . .\n"+
		"1 2 3 4 5 6 7\n"+
		"U1 (X) to move\n", string(out))
}

func TestRenderWordIsPure(t *testing.T) {
	_, p, err := engine.NewWordGame("u1", "kite", 7)
	require.NoError(t, err)
	p.Solved[0] = true
	p.Guessed = []rune{'k', 'z'}
	p.Wrong = 1

	r := NewText()
	first, err := r.Render(p)
	require.NoError(t, err)
	second, err := r.Render(p)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "k _ _ _\nwrong 1/7 · guessed kz\n", string(first))
}

func TestAmountUsesLocale(t *testing.T) {
	assert.Equal(t, "1,234,567", NewText().Amount(1234567))
	assert.Equal(t, "1.234.567", NewText(WithLanguage(language.German)).Amount(1234567))
}

func TestRenderUnsupportedPayload(t *testing.T) {
	_, err := NewText().Render(nil)
	assert.Error(t, err)
}
