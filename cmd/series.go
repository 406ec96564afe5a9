package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/simshadows/omnifolio"
)

type seriesCmd struct {
	totalReturn bool
}

func (*seriesCmd) Name() string     { return "series" }
func (*seriesCmd) Synopsis() string { return "display the stored daily series for a symbol" }
func (*seriesCmd) Usage() string {
	return `series [-total-return] <symbol>

  Prints the reconciled, split-adjusted daily series for a symbol from the
  database. With -total-return, dividends are reinvested into the series.
`
}

func (c *seriesCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.totalReturn, "total-return", false, "reinvest dividends into the series")
}

func (c *seriesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "exactly one symbol must be provided")
		return subcommands.ExitUsageError
	}
	symbol := f.Arg(0)

	agg, closeStore, err := connectAggregator(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeStore()

	var series map[string][]omnifolio.AdjustedPoint
	if c.totalReturn {
		series, err = agg.TotalReturn(ctx, []string{symbol})
	} else {
		series, err = agg.Daily(ctx, []string{symbol})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading series: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Date\t\tClose\tAdjClose\tVolume\tDividend\n")
	for _, pt := range series[symbol] {
		fmt.Printf("%s\t%s\t%s\t%s\t%s\n",
			pt.Day, pt.Close, pt.AdjustedClose, pt.Volume, pt.Dividend)
	}
	return subcommands.ExitSuccess
}
