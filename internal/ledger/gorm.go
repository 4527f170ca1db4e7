package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account is the persisted balance of one owner.
type Account struct {
	Owner     string `gorm:"primaryKey"`
	Balance   int64  `gorm:"not null"`
	UpdatedAt time.Time
}

// LedgerEntry is the persisted form of Entry.
type LedgerEntry struct {
	ID        string `gorm:"primaryKey;type:uuid"`
	Owner     string `gorm:"index;not null"`
	Kind      string `gorm:"not null"`
	Delta     int64  `gorm:"not null"`
	Balance   int64  `gorm:"not null"`
	CreatedAt time.Time
}

// GormLedger stores balances in PostgreSQL. Debits are a single conditional
// UPDATE so concurrent debits can never overdraw an account.
type GormLedger struct {
	db      *gorm.DB
	opening int64
	now     func() time.Time
}

func NewGorm(db *gorm.DB, opening int64) *GormLedger {
	return &GormLedger{db: db, opening: opening, now: time.Now}
}

// Migrate creates or updates the ledger tables.
func (l *GormLedger) Migrate(ctx context.Context) error {
	return l.db.WithContext(ctx).AutoMigrate(&Account{}, &LedgerEntry{})
}

func (l *GormLedger) Balance(ctx context.Context, owner string) (int64, error) {
	var acct Account
	err := l.db.WithContext(ctx).Take(&acct, "owner = ?", owner).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return l.opening, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load balance: %w", err)
	}
	return acct.Balance, nil
}

func (l *GormLedger) Credit(ctx context.Context, owner, kind string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return l.apply(ctx, owner, kind, amount)
}

func (l *GormLedger) Debit(ctx context.Context, owner, kind string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return l.apply(ctx, owner, kind, -amount)
}

func (l *GormLedger) apply(ctx context.Context, owner, kind string, delta int64) (int64, error) {
	var balance int64
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := l.now()
		if err := tx.Exec(
			`INSERT INTO accounts (owner, balance, updated_at) VALUES (?, ?, ?) ON CONFLICT (owner) DO NOTHING`,
			owner, l.opening, now,
		).Error; err != nil {
			return fmt.Errorf("open account: %w", err)
		}

		var row struct{ Balance int64 }
		res := tx.Raw(
			`UPDATE accounts SET balance = balance + ?, updated_at = ? WHERE owner = ? AND balance + ? >= 0 RETURNING balance`,
			delta, now, owner, delta,
		).Scan(&row)
		if res.Error != nil {
			return fmt.Errorf("update balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrInsufficient
		}
		balance = row.Balance

		entry := LedgerEntry{
			ID:        uuid.NewString(),
			Owner:     owner,
			Kind:      kind,
			Delta:     delta,
			Balance:   balance,
			CreatedAt: now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("record entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// History returns the most recent entries of owner, newest first.
func (l *GormLedger) History(ctx context.Context, owner string, limit int) ([]Entry, error) {
	var rows []LedgerEntry
	err := l.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	out := make([]Entry, len(rows))
	for i, r := range rows {
		out[i] = Entry(r)
	}
	return out, nil
}
