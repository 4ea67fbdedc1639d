package candidate

import "github.com/FranksOps/pairscan/internal/dex"

// Normalize drops pairs on other chains, then removes duplicate pair
// addresses keeping the first occurrence.
func Normalize(pairs []dex.Pair, chain string) []dex.Pair {
	return Dedupe(MatchChain(pairs, chain))
}

// MatchChain keeps pairs whose chain is exactly chain. A pair with no chain
// never matches.
func MatchChain(pairs []dex.Pair, chain string) []dex.Pair {
	out := make([]dex.Pair, 0, len(pairs))
	for _, p := range pairs {
		if id, ok := p.ChainID.Get(); ok && id == chain {
			out = append(out, p)
		}
	}
	return out
}

// Dedupe removes repeated pair addresses, first occurrence wins. Pairs
// without an address cannot be matched against anything and are all kept.
// Output preserves first-seen order.
func Dedupe(pairs []dex.Pair) []dex.Pair {
	seen := make(map[string]struct{}, len(pairs))
	out := make([]dex.Pair, 0, len(pairs))

	for _, p := range pairs {
		addr, ok := p.PairAddress.Get()
		if !ok {
			out = append(out, p)
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, p)
	}
	return out
}
