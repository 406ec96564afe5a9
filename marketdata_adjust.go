package omnifolio

import "fmt"

// AdjustedPoint is the decimal view of one day of market data, after the
// per-source scaled integers have been reconciled into a single series.
type AdjustedPoint struct {
	Day           Date
	Open          Money
	High          Money
	Low           Money
	Close         Money
	AdjustedClose Money
	Volume        Quantity
	Dividend      Money    // zero when none was paid
	Split         Quantity // 1 when no split occurred
}

// Points converts a time series into its decimal view, merging the price and
// event streams by day. An event dated on a non-trading day rolls forward
// onto the next price day; splits compound and dividends sum when several
// events land on the same point. An event with no price day at or after it
// cannot be attached and fails with ErrDataFormat.
func Points(ts TimeSeries) ([]AdjustedPoint, error) {
	points := make([]AdjustedPoint, 0, len(ts.Prices))
	next := 0
	for _, p := range ts.Prices {
		pt := AdjustedPoint{
			Day:           p.Day,
			Open:          p.OpenPrice(),
			High:          p.HighPrice(),
			Low:           p.LowPrice(),
			Close:         p.ClosePrice(),
			AdjustedClose: p.AdjustedClosePrice(),
			Volume:        Q(p.Volume),
			Split:         Q(1),
		}
		for next < len(ts.Events) && !p.Day.Before(ts.Events[next].Day) {
			e := ts.Events[next]
			next++
			if e.HasDividend() {
				d, err := pt.Dividend.Add(e.Dividend())
				if err != nil {
					return nil, fmt.Errorf("%s: combining dividends onto %s: %w", ts.Symbol, p.Day, err)
				}
				pt.Dividend = d
			}
			if e.HasSplit() {
				pt.Split = pt.Split.Mul(e.Split())
			}
		}
		points = append(points, pt)
	}
	if next < len(ts.Events) {
		return nil, fmt.Errorf("%w: %s event on %s has no price day at or after it",
			ErrDataFormat, ts.Symbol, ts.Events[next].Day)
	}
	return points, nil
}

// SplitAdjust rescales the series so every day is expressed in post-split
// units: prices before a split shrink by the split ratio and volumes grow by
// its inverse. The returned points carry a 1:1 split, so applying SplitAdjust
// twice is the same as applying it once.
func SplitAdjust(points []AdjustedPoint) []AdjustedPoint {
	cum := make([]Quantity, len(points))
	factor := Q(1)
	for i, pt := range points {
		factor = factor.Mul(pt.Split)
		cum[i] = factor
	}
	out := make([]AdjustedPoint, len(points))
	for i, pt := range points {
		scale := cum[i].Div(factor)
		pt.Open = pt.Open.Mul(scale)
		pt.High = pt.High.Mul(scale)
		pt.Low = pt.Low.Mul(scale)
		pt.Close = pt.Close.Mul(scale)
		pt.AdjustedClose = pt.AdjustedClose.Mul(scale)
		pt.Dividend = pt.Dividend.Mul(scale)
		pt.Volume = pt.Volume.Div(scale)
		pt.Split = Q(1)
		out[i] = pt
	}
	return out
}

// ReinvestDividends folds each dividend back into the position on the day it
// is paid, returning the total-return series: AdjustedClose becomes the value
// of one initial unit with all dividends reinvested at that day's adjusted
// close, and the dividends themselves are zeroed out.
func ReinvestDividends(points []AdjustedPoint) ([]AdjustedPoint, error) {
	out := make([]AdjustedPoint, len(points))
	units := Q(1)
	for i, pt := range points {
		if !pt.Dividend.IsZero() {
			if pt.AdjustedClose.IsZero() {
				return nil, fmt.Errorf("%w: %s pays a dividend at a zero adjusted close", ErrDataFormat, pt.Day)
			}
			perUnit, err := pt.Dividend.DivPrice(pt.AdjustedClose)
			if err != nil {
				return nil, fmt.Errorf("%s: reinvesting dividend: %w", pt.Day, err)
			}
			units = units.Mul(Q(1).Add(perUnit))
		}
		pt.AdjustedClose = pt.AdjustedClose.Mul(units)
		pt.Dividend = Money{}
		out[i] = pt
	}
	return out, nil
}

// DividendOverride replaces the recorded dividend of one symbol on one day
// with a hand-curated amount.
type DividendOverride struct {
	Symbol string
	Day    Date
	Amount Money
}

// ApplyDividendOverrides returns a copy of the series with matching overrides
// applied. An override that names a day with no recorded dividend, or whose
// amount is in a different currency than the recorded one, fails with
// ErrUnsupported rather than silently inventing data.
func ApplyDividendOverrides(ts TimeSeries, overrides []DividendOverride) (TimeSeries, error) {
	events := make([]DayEvent, len(ts.Events))
	copy(events, ts.Events)
	ts.Events = events

	for _, ov := range overrides {
		if ov.Symbol != ts.Symbol {
			continue
		}
		found := false
		for i := range ts.Events {
			e := &ts.Events[i]
			if e.Day != ov.Day {
				continue
			}
			if !e.HasDividend() {
				break
			}
			if e.DividendUnit != ov.Amount.Currency() {
				return TimeSeries{}, fmt.Errorf("%w: override for %s on %s is in %s, recorded dividend is in %s",
					ErrUnsupported, ov.Symbol, ov.Day, ov.Amount.Currency(), e.DividendUnit)
			}
			num := ov.Amount.Amount().Mul(newDecimal(DividendDenominator))
			if !num.IsInteger() {
				return TimeSeries{}, fmt.Errorf("%w: override for %s on %s has more precision than 1/%d",
					ErrUnsupported, ov.Symbol, ov.Day, DividendDenominator)
			}
			e.DividendNumerator = num.IntPart()
			e.DividendDenominator = DividendDenominator
			found = true
			break
		}
		if !found {
			return TimeSeries{}, fmt.Errorf("%w: override for %s on %s has no recorded dividend to replace",
				ErrUnsupported, ov.Symbol, ov.Day)
		}
	}
	return ts, nil
}
