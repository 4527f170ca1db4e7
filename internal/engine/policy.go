package engine

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

// Documented odds for OddsPolicy.
const (
	DefaultWinRate     = 0.25
	DefaultTripleShare = 0.15
)

// MinSymbols is the smallest symbol set OddsPolicy can draw a losing spin from.
const MinSymbols = 3

type Symbol string

// Reels is one three-reel spin combination.
type Reels [3]Symbol

// Payout holds the bet multipliers for a symbol.
type Payout struct {
	Pair   int64
	Triple int64
}

// Paytable maps a matched symbol to its multipliers. Symbols keeps the
// ordering used by policies and renderers.
type Paytable struct {
	Symbols []Symbol
	Payouts map[Symbol]Payout
}

type Match int

const (
	MatchNone Match = iota
	MatchPair
	MatchTriple
)

func (m Match) String() string {
	switch m {
	case MatchPair:
		return "pair"
	case MatchTriple:
		return "triple"
	default:
		return "none"
	}
}

// Evaluate classifies reels and returns the matched symbol.
func Evaluate(r Reels) (Match, Symbol) {
	switch {
	case r[0] == r[1] && r[1] == r[2]:
		return MatchTriple, r[0]
	case r[0] == r[1] || r[0] == r[2]:
		return MatchPair, r[0]
	case r[1] == r[2]:
		return MatchPair, r[1]
	}
	return MatchNone, ""
}

// Multiplier returns the bet multiplier earned by r.
func (p Paytable) Multiplier(r Reels) int64 {
	match, sym := Evaluate(r)
	payout := p.Payouts[sym]
	switch match {
	case MatchTriple:
		return payout.Triple
	case MatchPair:
		return payout.Pair
	}
	return 0
}

// SpinPolicy draws the reels for one spin.
type SpinPolicy interface {
	Draw() Reels
}

// OddsPolicy draws a win with probability WinRate; of the wins, TripleShare
// are triple matches and the rest are pairs. Losing draws show three distinct
// symbols, so at least three symbols are required.
type OddsPolicy struct {
	WinRate     float64
	TripleShare float64

	symbols []Symbol
	mu      sync.Mutex
	rng     *rand.Rand
}

// NewOddsPolicy panics if symbols has fewer than MinSymbols entries. A nil src
// seeds from the runtime generator.
func NewOddsPolicy(symbols []Symbol, src rand.Source) *OddsPolicy {
	if len(symbols) < MinSymbols {
		panic(fmt.Sprintf("engine: odds policy needs at least %d symbols, got %d", MinSymbols, len(symbols)))
	}
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &OddsPolicy{
		WinRate:     DefaultWinRate,
		TripleShare: DefaultTripleShare,
		symbols:     append([]Symbol(nil), symbols...),
		rng:         rand.New(src),
	}
}

func (p *OddsPolicy) Draw() Reels {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.symbols)
	if p.rng.Float64() >= p.WinRate {
		perm := p.rng.Perm(n)
		return Reels{p.symbols[perm[0]], p.symbols[perm[1]], p.symbols[perm[2]]}
	}

	sym := p.symbols[p.rng.IntN(n)]
	if p.rng.Float64() < p.TripleShare {
		return Reels{sym, sym, sym}
	}
	other := p.symbols[p.rng.IntN(n-1)]
	if other == sym {
		other = p.symbols[n-1]
	}
	r := Reels{sym, sym, sym}
	r[p.rng.IntN(3)] = other
	return r
}

// FixedPolicy always draws the same reels.
type FixedPolicy Reels

func (f FixedPolicy) Draw() Reels { return Reels(f) }
