package report

import (
	"fmt"
	"math"
	"time"

	"github.com/FranksOps/pairscan/internal/dex"
	"github.com/dustin/go-humanize"
)

const (
	// Missing is rendered for any absent value.
	Missing = "N/A"
	// UnknownToken is rendered when a pair has neither a name nor a symbol.
	UnknownToken = "Unknown"

	contractSuffixLen = 6
	surgeThresholdPct = 50.0
)

// Layout selects how text output arranges the formatted cells.
type Layout string

const (
	// LayoutTable prints a markdown table, one row per candidate.
	LayoutTable Layout = "table"
	// LayoutList prints a numbered block per candidate, one line per column.
	LayoutList Layout = "list"
	// LayoutInline prints a numbered line per candidate.
	LayoutInline Layout = "inline"
)

// Column renders one attribute of a pair.
type Column struct {
	Header string
	Value  func(p dex.Pair, now time.Time) string
}

// Presentation describes how ranked candidates are printed.
type Presentation struct {
	Title   string
	Layout  Layout
	Columns []Column
	// PadTo fills a table with placeholder rows up to this many rows. Padding
	// only applies when at least one candidate exists.
	PadTo int
	// Highlight24h appends a line naming the candidate with the highest 24h
	// price change.
	Highlight24h bool
	// Empty is printed instead of any rows when there are no candidates.
	Empty string
}

// DefaultEmpty is the no-candidates indicator used when a Presentation sets none.
const DefaultEmpty = "No candidates matched the criteria."

func (p Presentation) emptyMessage() string {
	if p.Empty == "" {
		return DefaultEmpty
	}
	return p.Empty
}

// Format renders rows into cells, one slice per row, each with exactly
// len(pres.Columns) entries. Placeholder rows are appended when padding is
// configured and rows is non-empty.
func Format(rows []dex.Pair, pres Presentation, now time.Time) [][]string {
	out := make([][]string, 0, max(len(rows), pres.PadTo))
	for _, p := range rows {
		cells := make([]string, len(pres.Columns))
		for i, c := range pres.Columns {
			cells[i] = c.Value(p, now)
		}
		out = append(out, cells)
	}

	if len(rows) == 0 || len(pres.Columns) == 0 {
		return out
	}
	for n := len(out); n < pres.PadTo; n++ {
		cells := make([]string, len(pres.Columns))
		cells[0] = fmt.Sprintf("Placeholder %d", n+1)
		for i := 1; i < len(cells); i++ {
			cells[i] = "-"
		}
		out = append(out, cells)
	}
	return out
}

// TokenColumn shows the symbol, falling back to the name.
func TokenColumn(header string) Column {
	return Column{Header: header, Value: func(p dex.Pair, _ time.Time) string {
		if s, ok := p.DisplayName(); ok {
			return s
		}
		return UnknownToken
	}}
}

// TokenLabelColumn shows "Name (SYM)", with symbolPrefix placed before the
// symbol, e.g. "$".
func TokenLabelColumn(header, symbolPrefix string) Column {
	return Column{Header: header, Value: func(p dex.Pair, _ time.Time) string {
		name, ok := p.FullName()
		if !ok {
			name = UnknownToken
		}
		sym := p.BaseToken.Symbol.Or(Missing)
		return fmt.Sprintf("%s (%s%s)", name, symbolPrefix, sym)
	}}
}

// AgeColumn shows whole hours since the pair was created.
func AgeColumn(header string) Column {
	return Column{Header: header, Value: func(p dex.Pair, now time.Time) string {
		age, ok := p.Age(now)
		if !ok {
			return Missing
		}
		return fmt.Sprintf("%dh ago", int64(math.Floor(age.Hours())))
	}}
}

// PriceColumn shows the USD price with a fixed number of decimal places.
func PriceColumn(header string, places int32) Column {
	return Column{Header: header, Value: func(p dex.Pair, _ time.Time) string {
		d, ok := p.PriceUSD.Get()
		if !ok {
			return Missing
		}
		return "$" + d.StringFixed(places)
	}}
}

// ThousandsColumn shows f as "$x.xK".
func ThousandsColumn(header string, f dex.Field) Column {
	return numberColumn(header, f, func(v float64) string {
		return fmt.Sprintf("$%.1fK", v/1e3)
	})
}

// MillionsColumn shows f as "$x.xxM".
func MillionsColumn(header string, f dex.Field) Column {
	return numberColumn(header, f, func(v float64) string {
		return fmt.Sprintf("$%.2fM", v/1e6)
	})
}

// USDColumn shows f rounded to whole dollars with thousands separators.
func USDColumn(header string, f dex.Field) Column {
	return numberColumn(header, f, USD)
}

// PercentColumn shows f as "x.xx%".
func PercentColumn(header string, f dex.Field) Column {
	return numberColumn(header, f, func(v float64) string {
		return fmt.Sprintf("%.2f%%", v)
	})
}

// GainColumn shows f as a signed percentage, "+x.xx%".
func GainColumn(header string, f dex.Field) Column {
	return numberColumn(header, f, func(v float64) string {
		return fmt.Sprintf("%+.2f%%", v)
	})
}

// ContractColumn shows the last characters of the base token address.
func ContractColumn(header string) Column {
	return Column{Header: header, Value: func(p dex.Pair, _ time.Time) string {
		addr, ok := p.BaseToken.Address.Get()
		if !ok {
			return Missing
		}
		r := []rune(addr)
		if len(r) <= contractSuffixLen {
			return addr
		}
		return string(r[len(r)-contractSuffixLen:])
	}}
}

// VerdictColumn labels a pair "surging" when its 1h change exceeds 50%.
func VerdictColumn(header string) Column {
	return Column{Header: header, Value: func(p dex.Pair, _ time.Time) string {
		return Verdict(p)
	}}
}

// Verdict returns "surging" for a 1h change above 50%, otherwise
// "steady climb". A missing change is never surging.
func Verdict(p dex.Pair) string {
	if h1, ok := p.PriceChange1h.Get(); ok && h1 > surgeThresholdPct {
		return "surging"
	}
	return "steady climb"
}

// USD formats v as whole dollars with thousands separators, e.g. "$12,345".
func USD(v float64) string {
	return "$" + humanize.Comma(int64(math.Round(v)))
}

// TopGainer24h returns the pair with the highest present 24h price change.
// Ties keep the earlier pair.
func TopGainer24h(rows []dex.Pair) (dex.Pair, float64, bool) {
	var (
		best  dex.Pair
		bestV float64
		found bool
	)
	for _, p := range rows {
		v, ok := p.PriceChange24h.Get()
		if !ok {
			continue
		}
		if !found || v > bestV {
			best, bestV, found = p, v, true
		}
	}
	return best, bestV, found
}

func numberColumn(header string, f dex.Field, render func(float64) string) Column {
	return Column{Header: header, Value: func(p dex.Pair, _ time.Time) string {
		v, ok := p.Number(f)
		if !ok {
			return Missing
		}
		return render(v)
	}}
}
