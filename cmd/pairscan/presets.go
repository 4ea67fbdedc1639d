package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/FranksOps/pairscan/internal/candidate"
	"github.com/FranksOps/pairscan/internal/dex"
	"github.com/FranksOps/pairscan/internal/pipeline"
	"github.com/FranksOps/pairscan/internal/preset"
	"github.com/spf13/cobra"
)

func newPresetsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List the built-in presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(opts.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tFETCH\tRANK\tFILTER\tTERMS")
			for _, p := range preset.All() {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					p.Name,
					describeFetch(p.Pipeline),
					describeRank(p.Pipeline.Rank),
					describeFilter(p.Pipeline.Filter),
					strings.Join(p.Pipeline.Terms, " "),
				)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(opts.stdout)
			for _, p := range preset.All() {
				fmt.Fprintf(opts.stdout, "  %-11s %s\n", p.Name, p.Description)
			}
			return nil
		},
	}
}

func describeFetch(c pipeline.Config) string {
	s := string(c.Fetch.Mode)
	if c.Fetch.Mode == pipeline.FetchSequential && c.Fetch.Delay > 0 {
		s += " " + c.Fetch.Delay.String()
	}
	if c.PerTermLimit > 0 {
		s += fmt.Sprintf(", first %d", c.PerTermLimit)
	}
	return s
}

func describeRank(r candidate.RankPolicy) string {
	return fmt.Sprintf("%s, top %d", r.Key, r.Cap)
}

func describeFilter(fp candidate.FilterPolicy) string {
	parts := []string{fp.Chain}
	if v, ok := fp.MaxAge.Get(); ok {
		parts = append(parts, "age<="+v.String())
	}
	add := func(label string, o dex.Optional[float64]) {
		if v, ok := o.Get(); ok {
			parts = append(parts, label+strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	add("liq>", fp.MinLiquidityUSD)
	add("vol>", fp.MinVolume24hUSD)
	add("h1>", fp.MinPriceChange1hPct)
	add("fdv<", fp.MaxFDVUSD)
	add("fdv>", fp.MinFDVUSD)
	return strings.Join(parts, " ")
}
