// Package ledger keeps chip balances. It is the only durable state of the
// service; sessions themselves live in memory.
package ledger

import (
	"context"
	"errors"
	"time"
)

var ErrInsufficient = errors.New("insufficient balance")

// ErrInvalidAmount is returned for zero or negative amounts.
var ErrInvalidAmount = errors.New("amount must be positive")

type Ledger interface {
	Balance(ctx context.Context, owner string) (int64, error)
	Credit(ctx context.Context, owner, kind string, amount int64) (int64, error)
	// Debit fails with ErrInsufficient, leaving the balance untouched, if the
	// owner cannot cover amount.
	Debit(ctx context.Context, owner, kind string, amount int64) (int64, error)
}

// Historian is implemented by ledgers that keep their balance movements.
type Historian interface {
	History(ctx context.Context, owner string, limit int) ([]Entry, error)
}

// Entry is one balance movement.
type Entry struct {
	ID        string
	Owner     string
	Kind      string
	Delta     int64
	Balance   int64
	CreatedAt time.Time
}
