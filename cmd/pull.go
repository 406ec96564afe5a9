package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/samber/lo"
	"github.com/simshadows/omnifolio"
)

type pullCmd struct{}

func (*pullCmd) Name() string     { return "pull" }
func (*pullCmd) Synopsis() string { return "fetch market data for the portfolio's symbols" }
func (*pullCmd) Usage() string {
	return `pull [symbol ...]

  Fetches market data from every configured provider and merges it into the
  database. Without arguments, pulls every symbol in the trades file.
`
}

func (*pullCmd) SetFlags(*flag.FlagSet) {}

func (c *pullCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	symbols := f.Args()
	if len(symbols) == 0 {
		trades, err := readTrades()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading trades: %v\n", err)
			return subcommands.ExitFailure
		}
		symbols = lo.Uniq(lo.Map(trades, func(t omnifolio.Trade, _ int) string { return t.Symbol }))
	}
	if len(symbols) == 0 {
		fmt.Fprintln(os.Stderr, "no symbols to pull")
		return subcommands.ExitUsageError
	}

	agg, closeStore, err := connectAggregator(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeStore()

	if err := agg.Refresh(ctx, symbols); err != nil {
		fmt.Fprintf(os.Stderr, "Error refreshing market data: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Pulled market data for %d symbols\n", len(symbols))
	return subcommands.ExitSuccess
}
