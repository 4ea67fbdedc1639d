// Package candidate holds the pure stages of a scan: chain filtering and
// deduplication, threshold filtering, and ranking. Nothing here performs I/O
// or reads the wall clock; callers pass "now" explicitly.
package candidate

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/FranksOps/pairscan/internal/dex"
)

// ErrInvalidPolicy is wrapped by every policy validation failure.
var ErrInvalidPolicy = errors.New("invalid policy")

// FilterPolicy is a conjunction of optional thresholds. An absent threshold
// imposes no constraint; a present one rejects any pair missing the field.
type FilterPolicy struct {
	Chain               string
	MaxAge              dex.Optional[time.Duration]
	MinLiquidityUSD     dex.Optional[float64]
	MinVolume24hUSD     dex.Optional[float64]
	MinPriceChange1hPct dex.Optional[float64]
	MaxFDVUSD           dex.Optional[float64]
	MinFDVUSD           dex.Optional[float64]
}

// Validate rejects policies that can never be evaluated meaningfully.
func (fp FilterPolicy) Validate() error {
	if strings.TrimSpace(fp.Chain) == "" {
		return fmt.Errorf("candidate: %w: chain is required", ErrInvalidPolicy)
	}
	if age, ok := fp.MaxAge.Get(); ok && age <= 0 {
		return fmt.Errorf("candidate: %w: maxAge must be positive, got %s", ErrInvalidPolicy, age)
	}

	usd := map[string]dex.Optional[float64]{
		CheckMinLiquidity: fp.MinLiquidityUSD,
		CheckMinVolume:    fp.MinVolume24hUSD,
		CheckMaxFDV:       fp.MaxFDVUSD,
		CheckMinFDV:       fp.MinFDVUSD,
	}
	for name, opt := range usd {
		if v, ok := opt.Get(); ok && (!finite(v) || v < 0) {
			return fmt.Errorf("candidate: %w: %s must be a non-negative number, got %v", ErrInvalidPolicy, name, v)
		}
	}
	if v, ok := fp.MinPriceChange1hPct.Get(); ok && !finite(v) {
		return fmt.Errorf("candidate: %w: %s must be finite, got %v", ErrInvalidPolicy, CheckMinPriceChange1h, v)
	}

	lo, hasLo := fp.MinFDVUSD.Get()
	hi, hasHi := fp.MaxFDVUSD.Get()
	if hasLo && hasHi && lo >= hi {
		return fmt.Errorf("candidate: %w: minFdvUsd %v must be below maxFdvUsd %v", ErrInvalidPolicy, lo, hi)
	}
	return nil
}

// RankKey selects the descending sort order applied before truncation.
type RankKey string

const (
	RankByCreated       RankKey = "created"
	RankByVolume24h     RankKey = "volume24h"
	RankByPriceChange1h RankKey = "priceChange1h"
	// RankNone keeps the order in which pairs survived filtering.
	RankNone RankKey = "none"
)

// Field returns the pair attribute the key sorts on.
func (k RankKey) Field() (dex.Field, bool) {
	switch k {
	case RankByCreated:
		return dex.FieldCreatedAt, true
	case RankByVolume24h:
		return dex.FieldVolume24h, true
	case RankByPriceChange1h:
		return dex.FieldPriceChange1h, true
	}
	return "", false
}

// ParseRankKey accepts the canonical key names.
func ParseRankKey(s string) (RankKey, error) {
	k := RankKey(strings.TrimSpace(s))
	switch k {
	case RankByCreated, RankByVolume24h, RankByPriceChange1h, RankNone:
		return k, nil
	}
	return "", fmt.Errorf("candidate: %w: unknown rank key %q", ErrInvalidPolicy, s)
}

// RankPolicy orders and bounds the filtered pairs.
type RankPolicy struct {
	Key RankKey
	Cap int
}

// Validate checks the key and the cap.
func (rp RankPolicy) Validate() error {
	if _, err := ParseRankKey(string(rp.Key)); err != nil {
		return err
	}
	if rp.Cap < 0 {
		return fmt.Errorf("candidate: %w: cap must be >= 0, got %d", ErrInvalidPolicy, rp.Cap)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
