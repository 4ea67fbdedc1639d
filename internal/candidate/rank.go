package candidate

import (
	"slices"

	"github.com/FranksOps/pairscan/internal/dex"
)

// Rank sorts a copy of pairs descending by the policy key and keeps the first
// Cap entries. The sort is stable, so ties keep their input order. Pairs
// missing the key sort after every pair that has it.
func Rank(pairs []dex.Pair, rp RankPolicy) []dex.Pair {
	out := slices.Clone(pairs)

	if field, ok := rp.Key.Field(); ok {
		slices.SortStableFunc(out, func(a, b dex.Pair) int {
			va, okA := a.Number(field)
			vb, okB := b.Number(field)
			switch {
			case okA && !okB:
				return -1
			case !okA && okB:
				return 1
			case !okA && !okB:
				return 0
			case va > vb:
				return -1
			case va < vb:
				return 1
			}
			return 0
		})
	}

	if rp.Cap >= 0 && len(out) > rp.Cap {
		out = out[:rp.Cap]
	}
	return out
}
