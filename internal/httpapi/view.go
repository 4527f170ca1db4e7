package httpapi

import (
	"github.com/DoyleJ11/arcade-sessions/internal/engine"
	"github.com/DoyleJ11/arcade-sessions/internal/session"
	"github.com/DoyleJ11/arcade-sessions/pkg/types"
)

// View builds the public snapshot of s. The hidden word of a running
// word-guess game is never exposed.
func View(s session.Session) types.SessionView {
	v := types.SessionView{
		ID:             s.ID,
		Kind:           string(s.Kind),
		State:          string(s.State),
		Version:        s.Version,
		Owners:         s.Owner.Participants(),
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
		TimerPending:   s.PendingTimerID != 0,
	}

	switch p := s.Payload.(type) {
	case engine.SpinPayload:
		v.Spin = &types.SpinDetail{
			Bet:    p.Bet,
			Rounds: p.Rounds,
			Reels:  [3]string{string(p.Reels[0]), string(p.Reels[1]), string(p.Reels[2])},
			Match:  p.Match.String(),
			Payout: p.Payout,
			Voided: p.Voided,
		}

	case engine.DuelPayload:
		board := make([][]int, engine.BoardRows)
		for r := range board {
			board[r] = append([]int(nil), p.Board[r][:]...)
		}
		v.Duel = &types.DuelDetail{
			Challenger:    p.Challenge.ChallengerID,
			Opponent:      p.Challenge.OpponentID,
			ExpiresAt:     p.Challenge.ExpiresAt,
			CurrentPlayer: p.CurrentPlayer(),
			Board:         board,
			Moves:         p.Moves,
			Outcome:       string(p.Outcome),
			Winner:        p.Winner,
		}

	case engine.WordPayload:
		v.Word = &types.WordDetail{
			Masked:   p.Masked(),
			Guessed:  string(p.Guessed),
			Wrong:    p.Wrong,
			MaxWrong: p.MaxWrong,
			Outcome:  string(p.Outcome),
		}
	}
	return v
}
