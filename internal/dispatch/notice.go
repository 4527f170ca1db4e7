package dispatch

import (
	"errors"

	"github.com/DoyleJ11/arcade-sessions/internal/engine"
	"github.com/DoyleJ11/arcade-sessions/internal/session"
)

var (
	ErrUnauthorized          = errors.New("actor not authorized")
	ErrInsufficientResources = errors.New("insufficient resources")
	ErrInternal              = errors.New("internal error")
)

// notices is ordered: detail errors come before the classes they match.
var notices = []struct {
	err    error
	notice string
}{
	{engine.ErrNotYourTurn, "not your turn"},
	{ErrBadAction, "unrecognized action"},
	{ErrUnauthorized, "you are not part of this game"},
	{session.ErrNotFound, "session expired"},
	{session.ErrStaleVersion, "already handled"},
	{session.ErrAlreadyActive, "you already have a game of this kind running"},
	{ErrInsufficientResources, "insufficient balance"},
	{engine.ErrColumnFull, "that column is full"},
	{engine.ErrInvalidColumn, "pick a column from 1 to 7"},
	{engine.ErrAlreadyGuessed, "letter already guessed"},
	{engine.ErrInvalidGuess, "guess a letter from a to z"},
	{engine.ErrWordGuessLocked, "find two letters before guessing the word"},
	{engine.ErrInvalidBet, "bet must be positive"},
	{engine.ErrInvalidWord, "that word can't be used"},
	{engine.ErrSessionOver, "game is over"},
	{engine.ErrInvalidTransition, "that action isn't available right now"},
}

// Notice maps an error from this package's operations to a short user notice.
func Notice(err error) string {
	if err == nil {
		return ""
	}
	for _, n := range notices {
		if errors.Is(err, n.err) {
			return n.notice
		}
	}
	return "something went wrong"
}
