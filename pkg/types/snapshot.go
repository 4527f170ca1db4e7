package types

import "time"

// ActionRequest is a user action on a session. Version is the session version
// the caller last observed.
type ActionRequest struct {
	Actor   string `json:"actor"`
	Version int64  `json:"version"`
	Type    string `json:"type"` // spin | accept | decline | move | guess_letter | guess_word
	Column  *int   `json:"column,omitempty"`
	Letter  string `json:"letter,omitempty"`
	Word    string `json:"word,omitempty"`
}

type StartSpinRequest struct {
	Owner string `json:"owner"`
	Bet   int64  `json:"bet"`
}

type StartWordRequest struct {
	Owner string `json:"owner"`
	Word  string `json:"word,omitempty"`
}

type ChallengeRequest struct {
	Challenger string `json:"challenger"`
	Opponent   string `json:"opponent"`
}

// SessionView is the public snapshot of a live session.
type SessionView struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	State          string    `json:"state"`
	Version        int64     `json:"version"`
	Owners         []string  `json:"owners"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	TimerPending   bool      `json:"timer_pending"`

	Spin *SpinDetail `json:"spin,omitempty"`
	Duel *DuelDetail `json:"duel,omitempty"`
	Word *WordDetail `json:"word,omitempty"`
}

type SpinDetail struct {
	Bet    int64     `json:"bet"`
	Rounds int       `json:"rounds"`
	Reels  [3]string `json:"reels"`
	Match  string    `json:"match"`
	Payout int64     `json:"payout"`
	Voided bool      `json:"voided,omitempty"`
}

type DuelDetail struct {
	Challenger    string    `json:"challenger"`
	Opponent      string    `json:"opponent"`
	ExpiresAt     time.Time `json:"expires_at"`
	CurrentPlayer string    `json:"current_player"`
	Board         [][]int   `json:"board"`
	Moves         int       `json:"moves"`
	Outcome       string    `json:"outcome,omitempty"`
	Winner        string    `json:"winner,omitempty"`
}

type WordDetail struct {
	Masked   string `json:"masked"`
	Guessed  string `json:"guessed"`
	Wrong    int    `json:"wrong"`
	MaxWrong int    `json:"max_wrong"`
	Outcome  string `json:"outcome,omitempty"`
}

type Balance struct {
	Owner   string        `json:"owner"`
	Balance int64         `json:"balance"`
	Recent  []LedgerEntry `json:"recent,omitempty"`
}

type LedgerEntry struct {
	Kind      string    `json:"kind"`
	Delta     int64     `json:"delta"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// ActionResponse reports the result of an action. Notice is set when the
// action was rejected or one of its effects failed after commit.
type ActionResponse struct {
	Applied bool         `json:"applied"`
	Removed bool         `json:"removed,omitempty"`
	Notice  string       `json:"notice,omitempty"`
	Session *SessionView `json:"session,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
