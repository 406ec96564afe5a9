package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/simshadows/omnifolio"
)

type historyCmd struct {
	method  string
	global  bool
	verbose bool
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "replay the trades file and display each state" }
func (*historyCmd) Usage() string {
	return `history [-method average|lifo] [-global] [-v]

  Replays every trade in the trades file in date order and prints the
  holdings after each one, with the acquired and disposed legs of the trade.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.method, "method", appConfig.CostBasisMethod.String(), "cost basis method: average or lifo")
	f.BoolVar(&c.global, "global", false, "track one portfolio-wide holding instead of per-account holdings")
	f.BoolVar(&c.verbose, "v", false, "also print the trade diff as JSON")
}

func (c *historyCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	for entry, err := range omnifolio.History(trades, method, bucket) {
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error replaying trades: %v\n", err)
			return subcommands.ExitFailure
		}
		t := entry.Trade
		fmt.Printf("%s %s %s %s @ %s (fees %s)\n",
			t.Date, t.Type, t.Quantity, t.Symbol, t.Price, t.Fees)
		if c.verbose {
			fmt.Printf("  diff: %s\n", mustJSON(entry.Diff))
		}
		fmt.Printf("  holdings: %s\n", entry.Holdings)
	}
	return subcommands.ExitSuccess
}
