// Package preset defines the named scans pairscan ships with.
package preset

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FranksOps/pairscan/internal/candidate"
	"github.com/FranksOps/pairscan/internal/dex"
	"github.com/FranksOps/pairscan/internal/pipeline"
	"github.com/FranksOps/pairscan/internal/report"
)

// ErrUnknownPreset is returned by Lookup for names not in All.
var ErrUnknownPreset = errors.New("unknown preset")

// Default is the preset used when none is named.
const Default = "advanced"

const (
	chain = "solana"

	multiTermTimeout   = 10 * time.Second
	singleQueryTimeout = 15 * time.Second
)

// Preset pairs a pipeline configuration with the way its results are shown.
type Preset struct {
	Name         string
	Description  string
	Pipeline     pipeline.Config
	Presentation report.Presentation
}

var (
	wideTerms  = []string{"SOL", "PUMP", "MOON", "PEPE", "DOGE", "CAT", "MEME", "AI", "TRUMP"}
	broadTerms = []string{"SOL", "PUMP", "MOON", "MEME", "CAT"}
	deepTerms  = []string{"TRUMP", "AI", "CAT"}
	dogTerms   = []string{"PUMP", "MOON", "PEPE", "DOGE", "CAT", "SOL", "MEME", "AI"}
)

// All returns every preset in display order. Each call returns fresh values
// that callers may modify.
func All() []Preset {
	return []Preset{
		advanced(),
		broadNet(),
		deep(),
		freshDogs(),
		alpha(),
		overview(),
	}
}

// Names lists the preset names in display order.
func Names() []string {
	all := All()
	names := make([]string, len(all))
	for i, p := range all {
		names[i] = p.Name
	}
	return names
}

// Lookup returns the preset called name. Matching ignores case and
// surrounding space.
func Lookup(name string) (Preset, error) {
	want := strings.ToLower(strings.TrimSpace(name))
	for _, p := range All() {
		if p.Name == want {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("preset: %w %q (available: %s)", ErrUnknownPreset, name, strings.Join(Names(), ", "))
}

func freshPolicy(maxAge time.Duration) candidate.FilterPolicy {
	return candidate.FilterPolicy{
		Chain:           chain,
		MaxAge:          dex.Some(maxAge),
		MinLiquidityUSD: dex.Some(500.0),
		MinVolume24hUSD: dex.Some(1000.0),
	}
}

func freshTable(title, empty string) report.Presentation {
	return report.Presentation{
		Title:  title,
		Layout: report.LayoutTable,
		Columns: []report.Column{
			report.TokenColumn("Token"),
			report.AgeColumn("Created"),
			report.PriceColumn("Price", 6),
			report.ThousandsColumn("Liquidity", dex.FieldLiquidityUSD),
			report.ThousandsColumn("Volume 24h", dex.FieldVolume24h),
			report.ContractColumn("Contract"),
		},
		Empty: empty,
	}
}

func advanced() Preset {
	return Preset{
		Name:        "advanced",
		Description: "Wide keyword sweep for pairs created in the last 48h",
		Pipeline: pipeline.Config{
			Terms:  clone(wideTerms),
			Filter: freshPolicy(48 * time.Hour),
			Rank:   candidate.RankPolicy{Key: candidate.RankByCreated, Cap: 10},
			Fetch:  pipeline.FetchConfig{Mode: pipeline.FetchParallel, Timeout: multiTermTimeout},
		},
		Presentation: freshTable("Fresh Solana pairs (48h)", "No tokens meet the criteria."),
	}
}

func broadNet() Preset {
	pres := freshTable("Broad net: fresh Solana pairs", "No tokens meet the criteria.")
	pres.PadTo = 10
	return Preset{
		Name:        "broad-net",
		Description: "Smaller keyword sweep, table padded to ten rows",
		Pipeline: pipeline.Config{
			Terms:  clone(broadTerms),
			Filter: freshPolicy(48 * time.Hour),
			Rank:   candidate.RankPolicy{Key: candidate.RankByCreated, Cap: 10},
			Fetch:  pipeline.FetchConfig{Mode: pipeline.FetchParallel, Timeout: multiTermTimeout},
		},
		Presentation: pres,
	}
}

func deep() Preset {
	return Preset{
		Name:        "deep",
		Description: "Sequential scan of trending terms for pairs created in the last 24h",
		Pipeline: pipeline.Config{
			Terms:  clone(deepTerms),
			Filter: freshPolicy(24 * time.Hour),
			Rank:   candidate.RankPolicy{Key: candidate.RankByCreated, Cap: 10},
			Fetch: pipeline.FetchConfig{
				Mode:    pipeline.FetchSequential,
				Delay:   pipeline.DefaultDelay,
				Timeout: multiTermTimeout,
			},
		},
		Presentation: freshTable("Deep scan: Solana pairs (24h)", "No matching tokens."),
	}
}

func freshDogs() Preset {
	return Preset{
		Name:        "fresh-dogs",
		Description: "Sequential sweep for young, small-cap, high-volume pairs",
		Pipeline: pipeline.Config{
			Terms: clone(dogTerms),
			Filter: candidate.FilterPolicy{
				Chain:           chain,
				MaxAge:          dex.Some(24 * time.Hour),
				MaxFDVUSD:       dex.Some(500_000.0),
				MinLiquidityUSD: dex.Some(2000.0),
				MinVolume24hUSD: dex.Some(10_000.0),
			},
			Rank: candidate.RankPolicy{Key: candidate.RankByVolume24h, Cap: 10},
			Fetch: pipeline.FetchConfig{
				Mode:    pipeline.FetchSequential,
				Delay:   pipeline.DefaultDelay,
				Timeout: multiTermTimeout,
			},
		},
		Presentation: report.Presentation{
			Title:  "Fresh dogs",
			Layout: report.LayoutTable,
			Columns: []report.Column{
				report.TokenColumn("Token"),
				report.PriceColumn("Price", 6),
				report.AgeColumn("Age"),
				report.ThousandsColumn("FDV", dex.FieldFDV),
				report.ThousandsColumn("Liquidity", dex.FieldLiquidityUSD),
				report.ThousandsColumn("Volume 24h", dex.FieldVolume24h),
			},
			Empty: "No fresh dogs right now.",
		},
	}
}

func alpha() Preset {
	return Preset{
		Name:        "alpha",
		Description: "Top 1h movers among liquid, low-FDV pairs for the query \"solana\"",
		Pipeline: pipeline.Config{
			Terms: []string{"solana"},
			Filter: candidate.FilterPolicy{
				Chain:               chain,
				MinLiquidityUSD:     dex.Some(10_000.0),
				MaxFDVUSD:           dex.Some(5_000_000.0),
				MinPriceChange1hPct: dex.Some(10.0),
				MinVolume24hUSD:     dex.Some(100_000.0),
			},
			Rank:         candidate.RankPolicy{Key: candidate.RankByPriceChange1h, Cap: 3},
			Fetch:        pipeline.FetchConfig{Mode: pipeline.FetchParallel, Timeout: singleQueryTimeout},
			PerTermLimit: 60,
		},
		Presentation: report.Presentation{
			Title:  "Alpha Hunter: potential gems",
			Layout: report.LayoutList,
			Columns: []report.Column{
				report.TokenLabelColumn("Token", "$"),
				report.GainColumn("1h surge", dex.FieldPriceChange1h),
				report.MillionsColumn("FDV", dex.FieldFDV),
				report.ThousandsColumn("Liquidity", dex.FieldLiquidityUSD),
				report.VerdictColumn("Verdict"),
			},
			Empty: "Alpha Hunter: no targets match the strategy.",
		},
	}
}

func overview() Preset {
	return Preset{
		Name:        "overview",
		Description: "First five Solana pairs for the query \"solana\", unfiltered",
		Pipeline: pipeline.Config{
			Terms:        []string{"solana"},
			Filter:       candidate.FilterPolicy{Chain: chain},
			Rank:         candidate.RankPolicy{Key: candidate.RankNone, Cap: 5},
			Fetch:        pipeline.FetchConfig{Mode: pipeline.FetchParallel, Timeout: singleQueryTimeout},
			PerTermLimit: 5,
		},
		Presentation: report.Presentation{
			Title:  "=== Solana Top 5 Scan ===",
			Layout: report.LayoutInline,
			Columns: []report.Column{
				report.TokenLabelColumn("Token", ""),
				report.PriceColumn("Price", 8),
				report.PercentColumn("24h change", dex.FieldPriceChange24h),
				report.USDColumn("Liquidity", dex.FieldLiquidityUSD),
				report.USDColumn("Volume 24h", dex.FieldVolume24h),
			},
			Highlight24h: true,
			Empty:        "No pairs data found.",
		},
	}
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}
