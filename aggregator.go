package omnifolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// MarketStore is the persistence surface the aggregator drives. *Store
// implements it.
type MarketStore interface {
	Upsert(ctx context.Context, source string, window int, ts TimeSeries) error
	Get(ctx context.Context, symbols []string) (map[string]TimeSeries, error)
}

// Aggregator pulls market data from every configured provider into the store
// and serves reconciled, adjusted views back out of it.
type Aggregator struct {
	store     MarketStore
	providers []Provider
	overrides []DividendOverride
	log       *slog.Logger
}

func NewAggregator(store MarketStore, providers []Provider, overrides []DividendOverride, log *slog.Logger) *Aggregator {
	return &Aggregator{store: store, providers: providers, overrides: overrides, log: log}
}

// Refresh fetches the requested symbols from every provider and merges each
// result into the store under the provider's name, trust and revision window.
// A failing provider does not stop the others; all failures are joined into
// the returned error.
func (a *Aggregator) Refresh(ctx context.Context, symbols []string) error {
	run := uuid.NewString()
	log := a.log.With("run", run)
	log.Info("refreshing market data", "symbols", symbols, "providers", len(a.providers))

	var errs []error
	for _, p := range a.providers {
		series, err := p.Fetch(ctx, symbols)
		if err != nil {
			log.Warn("provider fetch failed", "source", p.Name(), "error", err)
			errs = append(errs, fmt.Errorf("fetching from %s: %w", p.Name(), err))
			continue
		}
		for symbol, ts := range series {
			if err := a.store.Upsert(ctx, p.Name(), p.RevisionWindow(), ts); err != nil {
				log.Warn("upsert failed", "source", p.Name(), "symbol", symbol, "error", err)
				errs = append(errs, fmt.Errorf("storing %s from %s: %w", symbol, p.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Series returns the reconciled raw series per symbol, with dividend
// overrides applied.
func (a *Aggregator) Series(ctx context.Context, symbols []string) (map[string]TimeSeries, error) {
	series, err := a.store.Get(ctx, symbols)
	if err != nil {
		return nil, err
	}
	for symbol, ts := range series {
		fixed, err := ApplyDividendOverrides(ts, a.overrides)
		if err != nil {
			return nil, err
		}
		series[symbol] = fixed
	}
	return series, nil
}

// Daily returns the split-adjusted decimal series per symbol.
func (a *Aggregator) Daily(ctx context.Context, symbols []string) (map[string][]AdjustedPoint, error) {
	series, err := a.Series(ctx, symbols)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]AdjustedPoint, len(series))
	for symbol, ts := range series {
		points, err := Points(ts)
		if err != nil {
			return nil, err
		}
		out[symbol] = SplitAdjust(points)
	}
	return out, nil
}

// TotalReturn returns the split-adjusted series with all dividends
// reinvested, per symbol.
func (a *Aggregator) TotalReturn(ctx context.Context, symbols []string) (map[string][]AdjustedPoint, error) {
	daily, err := a.Daily(ctx, symbols)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]AdjustedPoint, len(daily))
	for symbol, points := range daily {
		reinvested, err := ReinvestDividends(points)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", symbol, err)
		}
		out[symbol] = reinvested
	}
	return out, nil
}
