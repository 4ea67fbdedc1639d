// Command pairscan searches DexScreener for fresh token pairs and prints the
// ones that pass a preset's liquidity, volume, age and FDV thresholds.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
