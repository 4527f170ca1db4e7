package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process ledger. Unknown owners start at the opening balance.
type Memory struct {
	opening int64

	mu       sync.RWMutex
	balances map[string]int64
	entries  []Entry
}

func NewMemory(opening int64) *Memory {
	return &Memory{opening: opening, balances: make(map[string]int64)}
}

// Set overrides an owner's balance without recording an entry.
func (m *Memory) Set(owner string, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[owner] = balance
}

func (m *Memory) Balance(_ context.Context, owner string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balanceLocked(owner), nil
}

func (m *Memory) Credit(_ context.Context, owner, kind string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(owner, kind, amount), nil
}

func (m *Memory) Debit(_ context.Context, owner, kind string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	bal := m.balanceLocked(owner)
	if bal < amount {
		return bal, ErrInsufficient
	}
	return m.applyLocked(owner, kind, -amount), nil
}

// Entries returns the movements recorded for owner, oldest first.
func (m *Memory) Entries(owner string) []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Entry
	for _, e := range m.entries {
		if e.Owner == owner {
			out = append(out, e)
		}
	}
	return out
}

// History returns up to limit entries of owner, newest first.
func (m *Memory) History(_ context.Context, owner string, limit int) ([]Entry, error) {
	all := m.Entries(owner)
	out := make([]Entry, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (m *Memory) balanceLocked(owner string) int64 {
	if bal, ok := m.balances[owner]; ok {
		return bal
	}
	return m.opening
}

func (m *Memory) applyLocked(owner, kind string, delta int64) int64 {
	bal := m.balanceLocked(owner) + delta
	m.balances[owner] = bal
	m.entries = append(m.entries, Entry{
		ID:        uuid.NewString(),
		Owner:     owner,
		Kind:      kind,
		Delta:     delta,
		Balance:   bal,
		CreatedAt: time.Now(),
	})
	return bal
}
