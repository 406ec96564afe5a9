// Package cmd implements the CLI application to track a portfolio.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/subcommands"
	"github.com/simshadows/omnifolio"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on
// the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&historyCmd{}, "portfolio")
	c.Register(&holdingsCmd{}, "portfolio")

	c.Register(&pullCmd{}, "market data")
	c.Register(&seriesCmd{}, "market data")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to
// use global variables.

var appConfig = omnifolio.LoadConfig()

// SetupLogging installs the default slog handler at the configured level.
func SetupLogging() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: appConfig.LogLevel,
	})))
}

// readTrades loads the configured trades file.
func readTrades() ([]omnifolio.Trade, error) {
	f, err := os.Open(appConfig.TradesPath)
	if err != nil {
		return nil, fmt.Errorf("opening trades file: %w", err)
	}
	defer f.Close()
	return omnifolio.ReadTrades(f)
}

// readOverrides loads the configured dividend overrides file. A missing file
// simply means no overrides.
func readOverrides() ([]omnifolio.DividendOverride, error) {
	f, err := os.Open(appConfig.DividendsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening dividend overrides file: %w", err)
	}
	defer f.Close()
	return omnifolio.ReadDividendOverrides(f)
}

// connectAggregator wires the store and providers together.
func connectAggregator(ctx context.Context) (*omnifolio.Aggregator, func(), error) {
	store, err := omnifolio.ConnectStore(ctx, appConfig.DatabaseURL, slog.Default())
	if err != nil {
		return nil, nil, err
	}
	overrides, err := readOverrides()
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	providers := []omnifolio.Provider{omnifolio.NewYahooProvider(appConfig.RevisionWindow)}
	if key := os.Getenv("EODHD_API_KEY"); key != "" {
		providers = append(providers, omnifolio.NewEODHDProvider(key, appConfig.RevisionWindow))
	}
	agg := omnifolio.NewAggregator(store, providers, overrides, slog.Default())
	return agg, store.Close, nil
}
