package candidate

import (
	"time"

	"github.com/FranksOps/pairscan/internal/dex"
)

// Check names, reported as rejection reasons.
const (
	CheckChain            = "chain"
	CheckMaxAge           = "maxAge"
	CheckMinLiquidity     = "minLiquidityUsd"
	CheckMinVolume        = "minVolume24hUsd"
	CheckMinPriceChange1h = "minPriceChange1hPct"
	CheckMaxFDV           = "maxFdvUsd"
	CheckMinFDV           = "minFdvUsd"
)

type check struct {
	name string
	pass func(p dex.Pair, now time.Time) bool
}

// checks returns only the configured thresholds, in evaluation order.
func (fp FilterPolicy) checks() []check {
	var cs []check

	if fp.Chain != "" {
		chain := fp.Chain
		cs = append(cs, check{CheckChain, func(p dex.Pair, _ time.Time) bool {
			id, ok := p.ChainID.Get()
			return ok && id == chain
		}})
	}
	if maxAge, ok := fp.MaxAge.Get(); ok {
		cs = append(cs, check{CheckMaxAge, func(p dex.Pair, now time.Time) bool {
			age, ok := p.Age(now)
			return ok && age <= maxAge
		}})
	}
	if v, ok := fp.MinLiquidityUSD.Get(); ok {
		cs = append(cs, check{CheckMinLiquidity, above(dex.FieldLiquidityUSD, v)})
	}
	if v, ok := fp.MinVolume24hUSD.Get(); ok {
		cs = append(cs, check{CheckMinVolume, above(dex.FieldVolume24h, v)})
	}
	if v, ok := fp.MinPriceChange1hPct.Get(); ok {
		cs = append(cs, check{CheckMinPriceChange1h, above(dex.FieldPriceChange1h, v)})
	}
	if v, ok := fp.MaxFDVUSD.Get(); ok {
		cs = append(cs, check{CheckMaxFDV, below(dex.FieldFDV, v)})
	}
	if v, ok := fp.MinFDVUSD.Get(); ok {
		cs = append(cs, check{CheckMinFDV, above(dex.FieldFDV, v)})
	}
	return cs
}

// above passes only when the field is present and strictly greater than lo.
func above(f dex.Field, lo float64) func(dex.Pair, time.Time) bool {
	return func(p dex.Pair, _ time.Time) bool {
		v, ok := p.Number(f)
		return ok && v > lo
	}
}

// below passes only when the field is present and strictly less than hi.
func below(f dex.Field, hi float64) func(dex.Pair, time.Time) bool {
	return func(p dex.Pair, _ time.Time) bool {
		v, ok := p.Number(f)
		return ok && v < hi
	}
}

// Evaluate reports whether p satisfies every configured threshold. On
// rejection it returns the name of the first failing check.
func (fp FilterPolicy) Evaluate(p dex.Pair, now time.Time) (bool, string) {
	for _, c := range fp.checks() {
		if !c.pass(p, now) {
			return false, c.name
		}
	}
	return true, ""
}

// Rejections counts rejected pairs by the check that rejected them.
type Rejections map[string]int

// Filter keeps the pairs that satisfy fp, preserving their relative order.
func Filter(pairs []dex.Pair, fp FilterPolicy, now time.Time) ([]dex.Pair, Rejections) {
	cs := fp.checks()
	rejected := Rejections{}
	out := make([]dex.Pair, 0, len(pairs))

next:
	for _, p := range pairs {
		for _, c := range cs {
			if !c.pass(p, now) {
				rejected[c.name]++
				continue next
			}
		}
		out = append(out, p)
	}
	return out, rejected
}
