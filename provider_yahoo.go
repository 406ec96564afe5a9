package omnifolio

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/samber/lo"
)

// Yahoo Finance v8 chart provider.
//
// Yahoo serves prices as floats, so every value is rounded onto a fixed
// denominator before storage and the trust value carries the matching
// deductions.

const yahooSourceName = "yahoo_finance"

// yahooTrust reflects an unauthenticated float-based feed: the baseline is
// already low, and the rounding onto PriceDenominator costs extra.
const yahooTrust = SomewhatUntrusted - FloatingPointImprecisionDeduction - PrecisionGuessDeduction

type YahooProvider struct {
	client *http.Client
	window int
}

// NewYahooProvider builds a provider over the public v8 chart API. The window
// is how many recent stored days a refresh may rewrite.
func NewYahooProvider(window int) *YahooProvider {
	return &YahooProvider{client: daily(), window: window}
}

func (p *YahooProvider) Name() string        { return yahooSourceName }
func (p *YahooProvider) TrustValue() Trust   { return yahooTrust }
func (p *YahooProvider) RevisionWindow() int { return p.window }

func (p *YahooProvider) Fetch(ctx context.Context, symbols []string) (map[string]TimeSeries, error) {
	out := make(map[string]TimeSeries, len(symbols))
	for _, symbol := range symbols {
		ts, err := p.fetchOne(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("yahoo: %s: %w", symbol, err)
		}
		out[symbol] = ts
	}
	return out, nil
}

// yahooChart mirrors the parts of the v8 chart payload we read. Close values
// can be null on holidays, hence the pointer slices.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency string `json:"currency"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
			Events struct {
				Dividends map[string]struct {
					Amount float64 `json:"amount"`
					Date   int64   `json:"date"`
				} `json:"dividends"`
				Splits map[string]struct {
					Numerator   int64 `json:"numerator"`
					Denominator int64 `json:"denominator"`
					Date        int64 `json:"date"`
				} `json:"splits"`
			} `json:"events"`
		} `json:"result"`
		Error any `json:"error"`
	} `json:"chart"`
}

func (p *YahooProvider) fetchOne(ctx context.Context, symbol string) (TimeSeries, error) {
	addr := fmt.Sprintf(
		"https://query2.finance.yahoo.com/v8/finance/chart/%s?interval=1d&range=max&events=div%%2Csplits",
		url.PathEscape(symbol))

	var raw yahooChart
	if err := jwget(ctx, p.client, addr, "omnifolio/1.0", &raw); err != nil {
		return TimeSeries{}, err
	}
	if len(raw.Chart.Result) == 0 || len(raw.Chart.Result[0].Indicators.Quote) == 0 {
		return TimeSeries{}, fmt.Errorf("%w: empty chart result", ErrMissingData)
	}

	r := raw.Chart.Result[0]
	quote := r.Indicators.Quote[0]
	var adjClose []*float64
	if len(r.Indicators.AdjClose) > 0 {
		adjClose = r.Indicators.AdjClose[0].AdjClose
	}
	if r.Meta.Currency == "" {
		return TimeSeries{}, fmt.Errorf("%w: chart has no currency", ErrDataFormat)
	}

	collected := time.Now().UTC()
	ts := TimeSeries{Symbol: symbol}

	// Holiday rows arrive as nulls and are forward-filled from the last
	// trading day. Leading nulls (before the first trade) are dropped.
	var last DayPrice
	var seen bool
	var prevDay Date
	for i, unix := range r.Timestamp {
		day := NewDate(time.Unix(unix, 0).UTC().Date())
		if seen && !prevDay.Before(day) {
			// intraday rows collapse onto one day; keep the first
			continue
		}
		price := DayPrice{
			Day:         day,
			Source:      yahooSourceName,
			Trust:       yahooTrust,
			CollectedAt: collected,
			Denominator: PriceDenominator,
			Unit:        r.Meta.Currency,
		}
		closeAt := at(quote.Close, i)
		if closeAt == nil {
			if !seen {
				continue
			}
			price.Open = last.Close
			price.High = last.Close
			price.Low = last.Close
			price.Close = last.Close
			price.AdjustedClose = last.AdjustedClose
			price.Volume = 0
		} else {
			price.Open = scalePrice(lo.FromPtrOr(at(quote.Open, i), *closeAt))
			price.High = scalePrice(lo.FromPtrOr(at(quote.High, i), *closeAt))
			price.Low = scalePrice(lo.FromPtrOr(at(quote.Low, i), *closeAt))
			price.Close = scalePrice(*closeAt)
			price.AdjustedClose = scalePrice(lo.FromPtrOr(at(adjClose, i), *closeAt))
			if v := atInt(quote.Volume, i); v != nil {
				price.Volume = *v
			}
		}
		ts.Prices = append(ts.Prices, price)
		last = price
		prevDay = day
		seen = true
	}

	events := make(map[Date]DayEvent)
	for _, d := range r.Events.Dividends {
		day := NewDate(time.Unix(d.Date, 0).UTC().Date())
		e := events[day]
		e.Day = day
		e.DividendNumerator = int64(math.Round(d.Amount * float64(DividendDenominator)))
		e.DividendDenominator = DividendDenominator
		e.DividendUnit = r.Meta.Currency
		events[day] = e
	}
	for _, s := range r.Events.Splits {
		if s.Numerator <= 0 || s.Denominator <= 0 {
			return TimeSeries{}, fmt.Errorf("%w: split %d:%d", ErrDataFormat, s.Numerator, s.Denominator)
		}
		day := NewDate(time.Unix(s.Date, 0).UTC().Date())
		e := events[day]
		e.Day = day
		e.SplitNumerator = s.Numerator
		e.SplitDenominator = s.Denominator
		events[day] = e
	}
	for day, e := range events {
		e.Source = yahooSourceName
		e.Trust = yahooTrust
		e.CollectedAt = collected
		if e.SplitNumerator == 0 {
			e.SplitNumerator, e.SplitDenominator = 1, 1
		}
		events[day] = e
	}
	ts.Events = sortedEvents(events)

	if err := ts.Validate(); err != nil {
		return TimeSeries{}, err
	}
	return ts, nil
}

func scalePrice(v float64) int64 {
	return int64(math.Round(v * float64(PriceDenominator)))
}

func at(s []*float64, i int) *float64 {
	if i < len(s) {
		return s[i]
	}
	return nil
}

func atInt(s []*int64, i int) *int64 {
	if i < len(s) {
		return s[i]
	}
	return nil
}
