package engine

func ContainsEffect(effects []Effect, t EffectType) bool {
	for _, e := range effects {
		if e.Type == t {
			return true
		}
	}
	return false
}

// Machines returns one machine per kind keyed by Kind.
func Machines(ms ...Machine) map[Kind]Machine {
	out := make(map[Kind]Machine, len(ms))
	for _, m := range ms {
		out[m.Kind()] = m
	}
	return out
}

// DefaultPaytable is used when no catalog overrides it.
func DefaultPaytable() Paytable {
	return Paytable{
		Symbols: []Symbol{"cherry", "lemon", "bell", "star", "seven"},
		Payouts: map[Symbol]Payout{
			"cherry": {Pair: 2, Triple: 5},
			"lemon":  {Pair: 2, Triple: 6},
			"bell":   {Pair: 3, Triple: 10},
			"star":   {Pair: 4, Triple: 15},
			"seven":  {Pair: 5, Triple: 25},
		},
	}
}
