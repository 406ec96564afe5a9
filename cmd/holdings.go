package cmd

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/google/subcommands"
	"github.com/samber/lo"
	"github.com/simshadows/omnifolio"
)

type holdingsCmd struct {
	method string
	global bool
	dump   bool
}

func (*holdingsCmd) Name() string     { return "holdings" }
func (*holdingsCmd) Synopsis() string { return "display the current holdings" }
func (*holdingsCmd) Usage() string {
	return `holdings [-method average|lifo] [-global] [-json]

  Applies every trade in the trades file and prints the final holdings,
  per bucket and symbol, with quantity and cost basis.
`
}

func (c *holdingsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.method, "method", appConfig.CostBasisMethod.String(), "cost basis method: average or lifo")
	f.BoolVar(&c.global, "global", false, "track one portfolio-wide holding instead of per-account holdings")
	f.BoolVar(&c.dump, "json", false, "dump the full snapshot as indented JSON")
}

func (c *holdingsCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	method, err := omnifolio.ParseCostBasisMethod(c.method)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	bucket := appConfig.Bucket()
	if c.global {
		bucket = omnifolio.BucketGlobal
	}

	trades, err := readTrades()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading trades: %v\n", err)
		return subcommands.ExitFailure
	}

	h := omnifolio.NewHoldings(method, bucket)
	for _, t := range trades {
		if _, err := h.ApplyTrade(t); err != nil {
			fmt.Fprintf(os.Stderr, "Error applying trade on %s: %v\n", t.Date, err)
			return subcommands.ExitFailure
		}
	}
	snap := h.Snapshot()

	if c.dump {
		if err := snap.Dump(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing snapshot: %v\n", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	fmt.Printf("Bucket\tSymbol\tQuantity\tCost\tFees\n")
	for _, bucketName := range snap.Buckets() {
		positions := snap[bucketName]
		symbols := lo.Keys(positions)
		sort.Strings(symbols)
		for _, symbol := range symbols {
			pos := positions[symbol]
			fmt.Printf("%s\t%s\t%s\t%s\t%s\n",
				bucketName, symbol, pos.Quantity, pos.TotalCost, pos.TotalFees)
		}
	}
	return subcommands.ExitSuccess
}

// mustJSON renders v compactly, falling back to the marshal error text.
func mustJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(raw)
}
