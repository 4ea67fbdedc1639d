// Package dex models token-pair records returned by the DexScreener search API.
//
// Every attribute the scanner reads is an Optional: the API omits fields freely,
// and filters must be able to tell "absent" from "zero".
package dex

import (
	"time"

	"github.com/shopspring/decimal"
)

// Token describes one side of a trading pair.
type Token struct {
	Name    Optional[string]
	Symbol  Optional[string]
	Address Optional[string]
}

// Pair is a single trading-pair listing as reported by the search API.
type Pair struct {
	ChainID     Optional[string]
	DexID       Optional[string]
	URL         Optional[string]
	PairAddress Optional[string]
	BaseToken   Token

	CreatedAt      Optional[time.Time]
	PriceUSD       Optional[decimal.Decimal]
	LiquidityUSD   Optional[float64]
	Volume24h      Optional[float64]
	PriceChange1h  Optional[float64]
	PriceChange24h Optional[float64]
	FDV            Optional[float64]

	// Term is the search query that returned this pair.
	Term string
}

// Field names a numeric attribute of a Pair that filters, rankers and
// formatters can address uniformly.
type Field string

const (
	FieldLiquidityUSD   Field = "liquidity.usd"
	FieldVolume24h      Field = "volume.h24"
	FieldPriceChange1h  Field = "priceChange.h1"
	FieldPriceChange24h Field = "priceChange.h24"
	FieldFDV            Field = "fdv"
	FieldCreatedAt      Field = "pairCreatedAt"
)

// Number returns the numeric value of f. FieldCreatedAt is reported in epoch
// milliseconds. Unknown fields are always absent.
func (p Pair) Number(f Field) (float64, bool) {
	switch f {
	case FieldLiquidityUSD:
		return p.LiquidityUSD.Get()
	case FieldVolume24h:
		return p.Volume24h.Get()
	case FieldPriceChange1h:
		return p.PriceChange1h.Get()
	case FieldPriceChange24h:
		return p.PriceChange24h.Get()
	case FieldFDV:
		return p.FDV.Get()
	case FieldCreatedAt:
		t, ok := p.CreatedAt.Get()
		if !ok {
			return 0, false
		}
		return float64(t.UnixMilli()), true
	}
	return 0, false
}

// Age returns how long ago the pair was created relative to now.
func (p Pair) Age(now time.Time) (time.Duration, bool) {
	t, ok := p.CreatedAt.Get()
	if !ok {
		return 0, false
	}
	return now.Sub(t), true
}

// DisplayName returns the symbol, falling back to the name.
func (p Pair) DisplayName() (string, bool) {
	if s, ok := p.BaseToken.Symbol.Get(); ok {
		return s, true
	}
	return p.BaseToken.Name.Get()
}

// FullName returns the name, falling back to the symbol.
func (p Pair) FullName() (string, bool) {
	if s, ok := p.BaseToken.Name.Get(); ok {
		return s, true
	}
	return p.BaseToken.Symbol.Get()
}
