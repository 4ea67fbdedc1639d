package dex

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var errMissingPairs = errors.New("response has no top-level \"pairs\" field")

type wireResponse struct {
	Pairs json.RawMessage `json:"pairs"`
}

// loose decodes a value of type T and treats a type mismatch or null as
// absent instead of failing the enclosing record.
type loose[T any] struct {
	v  T
	ok bool
}

func (l *loose[T]) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	l.v, l.ok = v, true
	return nil
}

type wireToken struct {
	Name    loose[string] `json:"name"`
	Symbol  loose[string] `json:"symbol"`
	Address loose[string] `json:"address"`
}

type wireLiquidity struct {
	USD loose[float64] `json:"usd"`
}

type wireVolume struct {
	H24 loose[float64] `json:"h24"`
}

type wirePriceChange struct {
	H1  loose[float64] `json:"h1"`
	H24 loose[float64] `json:"h24"`
}

type wirePair struct {
	ChainID       loose[string]          `json:"chainId"`
	DexID         loose[string]          `json:"dexId"`
	URL           loose[string]          `json:"url"`
	PairAddress   loose[string]          `json:"pairAddress"`
	BaseToken     loose[wireToken]       `json:"baseToken"`
	PriceUSD      json.RawMessage        `json:"priceUsd"`
	Liquidity     loose[wireLiquidity]   `json:"liquidity"`
	Volume        loose[wireVolume]      `json:"volume"`
	PriceChange   loose[wirePriceChange] `json:"priceChange"`
	FDV           loose[float64]         `json:"fdv"`
	PairCreatedAt loose[float64]         `json:"pairCreatedAt"`
}

// DecodeSearchResponse parses a search response body into pairs tagged with
// term. A body without a "pairs" key, or one that is not valid JSON, yields a
// *MalformedResponseError. An explicit "pairs": null is an empty result.
// Fields of the wrong type are absent; array entries that are not objects
// are skipped.
func DecodeSearchResponse(term string, body []byte) ([]Pair, error) {
	var resp wireResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &MalformedResponseError{Term: term, Err: err}
	}
	if len(resp.Pairs) == 0 {
		return nil, &MalformedResponseError{Term: term, Err: errMissingPairs}
	}
	if bytes.Equal(bytes.TrimSpace(resp.Pairs), []byte("null")) {
		return []Pair{}, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(resp.Pairs, &raw); err != nil {
		return nil, &MalformedResponseError{Term: term, Err: err}
	}

	pairs := make([]Pair, 0, len(raw))
	for _, r := range raw {
		var w wirePair
		if err := json.Unmarshal(r, &w); err != nil {
			continue
		}
		p := w.toPair()
		p.Term = term
		pairs = append(pairs, p)
	}
	return pairs, nil
}

func (w wirePair) toPair() Pair {
	p := Pair{
		ChainID:     optString(w.ChainID),
		DexID:       optString(w.DexID),
		URL:         optString(w.URL),
		PairAddress: optString(w.PairAddress),
		PriceUSD:    optDecimal(w.PriceUSD),
		FDV:         optFloat(w.FDV),
	}
	if tok := w.BaseToken; tok.ok {
		p.BaseToken = Token{
			Name:    optString(tok.v.Name),
			Symbol:  optString(tok.v.Symbol),
			Address: optString(tok.v.Address),
		}
	}
	if w.Liquidity.ok {
		p.LiquidityUSD = optFloat(w.Liquidity.v.USD)
	}
	if w.Volume.ok {
		p.Volume24h = optFloat(w.Volume.v.H24)
	}
	if w.PriceChange.ok {
		p.PriceChange1h = optFloat(w.PriceChange.v.H1)
		p.PriceChange24h = optFloat(w.PriceChange.v.H24)
	}
	if created := optFloat(w.PairCreatedAt); created.Present() {
		p.CreatedAt = Some(time.UnixMilli(int64(created.value)))
	}
	return p
}

func optString(s loose[string]) Optional[string] {
	if !s.ok || strings.TrimSpace(s.v) == "" {
		return None[string]()
	}
	return Some(s.v)
}

func optFloat(f loose[float64]) Optional[float64] {
	if !f.ok || math.IsNaN(f.v) || math.IsInf(f.v, 0) {
		return None[float64]()
	}
	return Some(f.v)
}

// optDecimal accepts both the documented string encoding and a bare JSON number.
func optDecimal(raw json.RawMessage) Optional[decimal.Decimal] {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return None[decimal.Decimal]()
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return None[decimal.Decimal]()
		}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return None[decimal.Decimal]()
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return None[decimal.Decimal]()
	}
	return Some(d)
}
