package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/FranksOps/pairscan/internal/dex"
	"github.com/shopspring/decimal"
)

// Output is the encoding used for candidates.
type Output string

const (
	OutputText   Output = "text"
	OutputJSON   Output = "json"
	OutputNDJSON Output = "ndjson"
	OutputCSV    Output = "csv"
)

// ParseOutput accepts text, json, ndjson or csv. Empty means text.
func ParseOutput(s string) (Output, error) {
	o := Output(strings.ToLower(strings.TrimSpace(s)))
	switch o {
	case "":
		return OutputText, nil
	case OutputText, OutputJSON, OutputNDJSON, OutputCSV:
		return o, nil
	}
	return "", fmt.Errorf("report: unknown output %q", s)
}

// Render writes rows to w in the requested encoding. Text output follows
// pres; the structured encodings carry raw values. With no rows, text prints
// pres.Empty while JSON writes [], NDJSON writes nothing and CSV writes only
// the header; whether that means no data or no match is reported by the scan
// summary's outcome.
func Render(w io.Writer, out Output, rows []dex.Pair, pres Presentation, now time.Time) error {
	switch out {
	case OutputText, "":
		return RenderText(w, rows, pres, now)
	case OutputJSON:
		return RenderJSON(w, rows, now)
	case OutputNDJSON:
		return RenderNDJSON(w, rows, now)
	case OutputCSV:
		return RenderCSV(w, rows, now)
	}
	return fmt.Errorf("report: unknown output %q", out)
}

// RenderText writes rows using pres.Layout.
func RenderText(w io.Writer, rows []dex.Pair, pres Presentation, now time.Time) error {
	var b strings.Builder

	if pres.Title != "" {
		fmt.Fprintln(&b, pres.Title)
	}
	if len(rows) == 0 {
		fmt.Fprintln(&b, pres.emptyMessage())
		return write(w, b.String())
	}

	cells := Format(rows, pres, now)
	switch pres.Layout {
	case LayoutList:
		writeList(&b, pres.Columns, cells)
	case LayoutInline:
		writeInline(&b, pres.Columns, cells)
	default:
		writeTable(&b, pres.Columns, cells)
	}

	if pres.Highlight24h {
		fmt.Fprintln(&b)
		if top, v, ok := TopGainer24h(rows); ok {
			sym := top.BaseToken.Symbol.Or(Missing)
			fmt.Fprintf(&b, "Top 24h gainer: %s, up %.2f%% in 24h.\n", sym, v)
		} else {
			fmt.Fprintln(&b, "Top 24h gainer: none reported a 24h change.")
		}
	}
	return write(w, b.String())
}

func writeTable(b *strings.Builder, cols []Column, cells [][]string) {
	headers := make([]string, len(cols))
	rule := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.Header
		rule[i] = strings.Repeat("-", max(3, len(c.Header)))
	}
	fmt.Fprintf(b, "| %s |\n", strings.Join(headers, " | "))
	fmt.Fprintf(b, "|%s|\n", strings.Join(rule, "|"))
	for _, row := range cells {
		fmt.Fprintf(b, "| %s |\n", strings.Join(row, " | "))
	}
}

const listRule = "---------------------------------"

func writeList(b *strings.Builder, cols []Column, cells [][]string) {
	for n, row := range cells {
		if n > 0 {
			fmt.Fprintln(b, listRule)
		}
		fmt.Fprintf(b, "%d. %s\n", n+1, row[0])
		for i := 1; i < len(row); i++ {
			fmt.Fprintf(b, "   %s: %s\n", cols[i].Header, row[i])
		}
	}
}

func writeInline(b *strings.Builder, cols []Column, cells [][]string) {
	for n, row := range cells {
		parts := []string{fmt.Sprintf("%d. %s", n+1, row[0])}
		for i := 1; i < len(row); i++ {
			parts = append(parts, cols[i].Header+": "+row[i])
		}
		fmt.Fprintln(b, strings.Join(parts, " - "))
		fmt.Fprintln(b, "-------------------------")
	}
}

// Record is the structured form of one ranked candidate.
type Record struct {
	Rank           int              `json:"rank"`
	ChainID        string           `json:"chainId,omitempty"`
	DexID          string           `json:"dexId,omitempty"`
	PairAddress    string           `json:"pairAddress,omitempty"`
	URL            string           `json:"url,omitempty"`
	Name           string           `json:"name,omitempty"`
	Symbol         string           `json:"symbol,omitempty"`
	TokenAddress   string           `json:"tokenAddress,omitempty"`
	PriceUSD       *decimal.Decimal `json:"priceUsd,omitempty"`
	LiquidityUSD   *float64         `json:"liquidityUsd,omitempty"`
	Volume24h      *float64         `json:"volume24h,omitempty"`
	PriceChange1h  *float64         `json:"priceChange1h,omitempty"`
	PriceChange24h *float64         `json:"priceChange24h,omitempty"`
	FDV            *float64         `json:"fdv,omitempty"`
	CreatedAt      *time.Time       `json:"pairCreatedAt,omitempty"`
	AgeHours       *int64           `json:"ageHours,omitempty"`
	Term           string           `json:"term,omitempty"`
}

// NewRecord converts p, ranked at position rank (1-based).
func NewRecord(rank int, p dex.Pair, now time.Time) Record {
	r := Record{
		Rank:           rank,
		ChainID:        p.ChainID.Or(""),
		DexID:          p.DexID.Or(""),
		PairAddress:    p.PairAddress.Or(""),
		URL:            p.URL.Or(""),
		Name:           p.BaseToken.Name.Or(""),
		Symbol:         p.BaseToken.Symbol.Or(""),
		TokenAddress:   p.BaseToken.Address.Or(""),
		PriceUSD:       ptr(p.PriceUSD),
		LiquidityUSD:   ptr(p.LiquidityUSD),
		Volume24h:      ptr(p.Volume24h),
		PriceChange1h:  ptr(p.PriceChange1h),
		PriceChange24h: ptr(p.PriceChange24h),
		FDV:            ptr(p.FDV),
		CreatedAt:      ptr(p.CreatedAt),
		Term:           p.Term,
	}
	if age, ok := p.Age(now); ok {
		h := int64(math.Floor(age.Hours()))
		r.AgeHours = &h
	}
	return r
}

// Records converts rows in rank order.
func Records(rows []dex.Pair, now time.Time) []Record {
	out := make([]Record, len(rows))
	for i, p := range rows {
		out[i] = NewRecord(i+1, p, now)
	}
	return out
}

// RenderJSON writes rows as an indented JSON array. No candidates is "[]".
func RenderJSON(w io.Writer, rows []dex.Pair, now time.Time) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Records(rows, now)); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}

// RenderNDJSON writes one JSON object per line.
func RenderNDJSON(w io.Writer, rows []dex.Pair, now time.Time) error {
	enc := json.NewEncoder(w)
	for _, r := range Records(rows, now) {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("report: encode ndjson: %w", err)
		}
	}
	return nil
}

// csvHeaders defines the CSV column order.
var csvHeaders = []string{
	"rank",
	"chain_id",
	"dex_id",
	"pair_address",
	"url",
	"name",
	"symbol",
	"token_address",
	"price_usd",
	"liquidity_usd",
	"volume_24h",
	"price_change_1h",
	"price_change_24h",
	"fdv",
	"pair_created_at",
	"age_hours",
	"term",
}

// RenderCSV writes a header row followed by one row per candidate. Missing
// values are empty cells.
func RenderCSV(w io.Writer, rows []dex.Pair, now time.Time) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeaders); err != nil {
		return fmt.Errorf("report: write csv: %w", err)
	}
	for _, r := range Records(rows, now) {
		record := []string{
			strconv.Itoa(r.Rank),
			r.ChainID,
			r.DexID,
			r.PairAddress,
			r.URL,
			r.Name,
			r.Symbol,
			r.TokenAddress,
			"",
			floatCell(r.LiquidityUSD),
			floatCell(r.Volume24h),
			floatCell(r.PriceChange1h),
			floatCell(r.PriceChange24h),
			floatCell(r.FDV),
			"",
			"",
			r.Term,
		}
		if r.PriceUSD != nil {
			record[8] = r.PriceUSD.String()
		}
		if r.CreatedAt != nil {
			record[14] = r.CreatedAt.UTC().Format(time.RFC3339)
		}
		if r.AgeHours != nil {
			record[15] = strconv.FormatInt(*r.AgeHours, 10)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("report: write csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("report: write csv: %w", err)
	}
	return nil
}

func floatCell(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func ptr[T any](o dex.Optional[T]) *T {
	v, ok := o.Get()
	if !ok {
		return nil
	}
	return &v
}

func write(w io.Writer, s string) error {
	if _, err := io.WriteString(w, s); err != nil {
		return fmt.Errorf("report: write: %w", err)
	}
	return nil
}
