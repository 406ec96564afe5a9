package omnifolio

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Trust expresses how much a stored data point is believed, higher is better.
// Reconciliation between sources prefers the highest trust, then the latest
// collection time.
type Trust int

const (
	VeryTrusted        Trust = 300
	GenerallyTrusted   Trust = 200
	SomewhatTrusted    Trust = 100
	TrustUnsure        Trust = 0
	SomewhatUntrusted  Trust = -100
	GenerallyUntrusted Trust = -200
	VeryUntrusted      Trust = -300
)

// Deductions applied by providers when a value required massaging before it
// could be stored.
const (
	CurrencyAdjustmentDeduction       Trust = 5
	PrecisionGuessDeduction           Trust = 4
	FloatingPointImprecisionDeduction Trust = 50
)

// Denominators for the scaled-integer representation of prices and dividends.
const (
	PriceDenominator    int64 = 100
	DividendDenominator int64 = 1_000_000_000
)

// DayPrice is one day of OHLCV data for a symbol, from a single source.
// Prices are stored as integer numerators over Denominator in Unit currency.
type DayPrice struct {
	Day         Date
	Source      string
	Trust       Trust
	CollectedAt time.Time

	Open          int64
	High          int64
	Low           int64
	Close         int64
	AdjustedClose int64
	Denominator   int64
	Volume        int64
	Unit          string
}

// OpenPrice returns the day's opening price as Money.
func (p DayPrice) OpenPrice() Money  { return p.price(p.Open) }
func (p DayPrice) HighPrice() Money  { return p.price(p.High) }
func (p DayPrice) LowPrice() Money   { return p.price(p.Low) }
func (p DayPrice) ClosePrice() Money { return p.price(p.Close) }

// AdjustedClosePrice returns the source-provided adjusted close as Money.
func (p DayPrice) AdjustedClosePrice() Money { return p.price(p.AdjustedClose) }

func (p DayPrice) price(num int64) Money {
	return M(num, p.Unit).Div(Q(p.Denominator))
}

// DayEvent is a dividend or split (or both) recorded on a day for a symbol,
// from a single source. A zero dividend numerator means no dividend; a 1/1
// split means no split.
type DayEvent struct {
	Day         Date
	Source      string
	Trust       Trust
	CollectedAt time.Time

	DividendNumerator   int64
	DividendDenominator int64
	DividendUnit        string

	SplitNumerator   int64
	SplitDenominator int64
}

// Dividend returns the per-unit dividend as Money.
func (e DayEvent) Dividend() Money {
	return M(e.DividendNumerator, e.DividendUnit).Div(Q(e.DividendDenominator))
}

// Split returns the split ratio as a Quantity, e.g. 2 for a 2:1 split.
func (e DayEvent) Split() Quantity {
	return Q(e.SplitNumerator).Div(Q(e.SplitDenominator))
}

// HasDividend reports whether the event carries a dividend.
func (e DayEvent) HasDividend() bool { return e.DividendNumerator != 0 }

// HasSplit reports whether the event carries a split other than 1:1.
func (e DayEvent) HasSplit() bool { return e.SplitNumerator != e.SplitDenominator }

// TimeSeries is the full per-symbol market history held in memory: daily
// prices and events, each sorted by ascending day.
type TimeSeries struct {
	Symbol string
	Prices []DayPrice
	Events []DayEvent
}

// Validate checks the structural invariants of the series: non-empty symbol,
// strictly ascending days within each slice, positive denominators, and
// non-negative prices and volumes.
func (ts TimeSeries) Validate() error {
	if ts.Symbol == "" {
		return fmt.Errorf("%w: time series has no symbol", ErrDataFormat)
	}
	var prev Date
	for i, p := range ts.Prices {
		if p.Day.IsZero() {
			return fmt.Errorf("%w: %s prices[%d] has no day", ErrDataFormat, ts.Symbol, i)
		}
		if i > 0 && !prev.Before(p.Day) {
			return fmt.Errorf("%w: %s prices[%d] day %s is not after %s", ErrDataFormat, ts.Symbol, i, p.Day, prev)
		}
		prev = p.Day
		if p.Denominator <= 0 {
			return fmt.Errorf("%w: %s prices[%d] has denominator %d", ErrDataFormat, ts.Symbol, i, p.Denominator)
		}
		if p.Open < 0 || p.High < 0 || p.Low < 0 || p.Close < 0 || p.AdjustedClose < 0 {
			return fmt.Errorf("%w: %s prices[%d] has a negative price", ErrDataFormat, ts.Symbol, i)
		}
		if p.Volume < 0 {
			return fmt.Errorf("%w: %s prices[%d] has volume %d", ErrDataFormat, ts.Symbol, i, p.Volume)
		}
		if p.Unit == "" {
			return fmt.Errorf("%w: %s prices[%d] has no currency unit", ErrDataFormat, ts.Symbol, i)
		}
	}
	prev = Date{}
	for i, e := range ts.Events {
		if e.Day.IsZero() {
			return fmt.Errorf("%w: %s events[%d] has no day", ErrDataFormat, ts.Symbol, i)
		}
		if i > 0 && !prev.Before(e.Day) {
			return fmt.Errorf("%w: %s events[%d] day %s is not after %s", ErrDataFormat, ts.Symbol, i, e.Day, prev)
		}
		prev = e.Day
		if e.DividendNumerator != 0 && e.DividendDenominator <= 0 {
			return fmt.Errorf("%w: %s events[%d] has dividend denominator %d", ErrDataFormat, ts.Symbol, i, e.DividendDenominator)
		}
		if e.DividendNumerator < 0 {
			return fmt.Errorf("%w: %s events[%d] has a negative dividend", ErrDataFormat, ts.Symbol, i)
		}
		if e.DividendNumerator != 0 && e.DividendUnit == "" {
			return fmt.Errorf("%w: %s events[%d] has a dividend but no currency unit", ErrDataFormat, ts.Symbol, i)
		}
		if e.SplitNumerator <= 0 || e.SplitDenominator <= 0 {
			return fmt.Errorf("%w: %s events[%d] has split %d:%d", ErrDataFormat, ts.Symbol, i, e.SplitNumerator, e.SplitDenominator)
		}
	}
	return nil
}

// sortedEvents flattens a by-day event map into a day-ordered slice.
func sortedEvents(events map[Date]DayEvent) []DayEvent {
	out := make([]DayEvent, 0, len(events))
	for _, e := range events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}

// Provider fetches market data for symbols from one upstream source.
type Provider interface {
	// Name identifies the source, recorded against every data point.
	Name() string
	// TrustValue is the baseline trust of data from this source.
	TrustValue() Trust
	// RevisionWindow is how many of the most recent stored days this
	// source is allowed to overwrite on refresh.
	RevisionWindow() int
	// Fetch retrieves the full history for each requested symbol.
	Fetch(ctx context.Context, symbols []string) (map[string]TimeSeries, error)
}
