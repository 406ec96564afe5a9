package omnifolio

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os"
	"time"
)

// This file contains functions to access the EODHD API.

const eodhdSourceName = "eodhd"

// EODHD serves curated end-of-day data but still as floats, so the trust
// sits above Yahoo's while carrying the same rounding deductions.
const eodhdTrust = TrustUnsure - FloatingPointImprecisionDeduction - PrecisionGuessDeduction

type EODHDProvider struct {
	client *http.Client
	apiKey string
	window int
}

// NewEODHDProvider builds a provider for EODHD.com. An empty apiKey falls
// back to the EODHD_API_KEY environment variable. The window is how many
// recent stored days a refresh may rewrite.
func NewEODHDProvider(apiKey string, window int) *EODHDProvider {
	if apiKey == "" {
		apiKey = os.Getenv("EODHD_API_KEY")
	}
	return &EODHDProvider{client: daily(), apiKey: apiKey, window: window}
}

func (p *EODHDProvider) Name() string        { return eodhdSourceName }
func (p *EODHDProvider) TrustValue() Trust   { return eodhdTrust }
func (p *EODHDProvider) RevisionWindow() int { return p.window }

func (p *EODHDProvider) Fetch(ctx context.Context, symbols []string) (map[string]TimeSeries, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: no EODHD API key configured", ErrMissingData)
	}
	out := make(map[string]TimeSeries, len(symbols))
	for _, symbol := range symbols {
		ts, err := p.fetchOne(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("eodhd: %s: %w", symbol, err)
		}
		out[symbol] = ts
	}
	return out, nil
}

func (p *EODHDProvider) fetchOne(ctx context.Context, symbol string) (TimeSeries, error) {
	// https://eodhd.com/api/eod/NVD.F?api_token=...&fmt=json
	// [
	//	{
	//		"date": "2024-02-13",
	//		"open": 675.066,
	//		"high": 684.219,
	//		"low": 648.659,
	//		"close": 668.445,
	//		"adjusted_close": 67.705,
	//		"volume": 0
	//	  },
	type eodRow struct {
		Date          Date    `json:"date"`
		Open          float64 `json:"open"`
		High          float64 `json:"high"`
		Low           float64 `json:"low"`
		Close         float64 `json:"close"`
		AdjustedClose float64 `json:"adjusted_close"`
		Volume        int64   `json:"volume"`
	}
	type divRow struct {
		Date     Date    `json:"date"`
		Value    float64 `json:"value"`
		Currency string  `json:"currency"`
	}
	type splitRow struct {
		Date  Date   `json:"date"`
		Split string `json:"split"` // "2.000000/1.000000"
	}

	addr := fmt.Sprintf("https://eodhd.com/api/eod/%s?fmt=json&api_token=%s",
		url.PathEscape(symbol), url.QueryEscape(p.apiKey))
	rows := make([]eodRow, 0)
	if err := jwget(ctx, p.client, addr, "", &rows); err != nil {
		return TimeSeries{}, err
	}
	if len(rows) == 0 {
		return TimeSeries{}, fmt.Errorf("%w: empty eod response", ErrMissingData)
	}

	addr = fmt.Sprintf("https://eodhd.com/api/div/%s?fmt=json&api_token=%s",
		url.PathEscape(symbol), url.QueryEscape(p.apiKey))
	divs := make([]divRow, 0)
	if err := jwget(ctx, p.client, addr, "", &divs); err != nil {
		return TimeSeries{}, err
	}

	addr = fmt.Sprintf("https://eodhd.com/api/splits/%s?fmt=json&api_token=%s",
		url.PathEscape(symbol), url.QueryEscape(p.apiKey))
	splits := make([]splitRow, 0)
	if err := jwget(ctx, p.client, addr, "", &splits); err != nil {
		return TimeSeries{}, err
	}

	collected := time.Now().UTC()
	ts := TimeSeries{Symbol: symbol}
	for _, row := range rows {
		ts.Prices = append(ts.Prices, DayPrice{
			Day:           row.Date,
			Source:        eodhdSourceName,
			Trust:         eodhdTrust,
			CollectedAt:   collected,
			Open:          scalePrice(row.Open),
			High:          scalePrice(row.High),
			Low:           scalePrice(row.Low),
			Close:         scalePrice(row.Close),
			AdjustedClose: scalePrice(row.AdjustedClose),
			Denominator:   PriceDenominator,
			Volume:        row.Volume,
			// the eod endpoint reports no currency, only the exchange
			// suffix of the symbol implies it
			Unit: eodhdCurrency(symbol),
		})
	}

	events := make(map[Date]DayEvent)
	for _, d := range divs {
		e := events[d.Date]
		e.Day = d.Date
		e.DividendNumerator = int64(math.Round(d.Value * float64(DividendDenominator)))
		e.DividendDenominator = DividendDenominator
		e.DividendUnit = d.Currency
		if e.DividendUnit == "" {
			e.DividendUnit = eodhdCurrency(symbol)
		}
		events[d.Date] = e
	}
	for _, s := range splits {
		var num, den float64
		if _, err := fmt.Sscanf(s.Split, "%f/%f", &num, &den); err != nil {
			return TimeSeries{}, fmt.Errorf("%w: unparseable split %q", ErrDataFormat, s.Split)
		}
		if num <= 0 || den <= 0 {
			return TimeSeries{}, fmt.Errorf("%w: split %q", ErrDataFormat, s.Split)
		}
		e := events[s.Date]
		e.Day = s.Date
		// split ratios arrive as floats of integers, e.g. "2.000000/1.000000"
		e.SplitNumerator = int64(math.Round(num))
		e.SplitDenominator = int64(math.Round(den))
		events[s.Date] = e
	}
	for day, e := range events {
		e.Source = eodhdSourceName
		e.Trust = eodhdTrust
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

// eodhdCurrency guesses the trading currency from the symbol's exchange
// suffix. EODHD's eod endpoint omits it.
func eodhdCurrency(symbol string) string {
	for suffix, currency := range map[string]string{
		".AX": "AUD", ".AU": "AUD",
		".L": "GBP", ".LSE": "GBP",
		".TO": "CAD",
		".F":  "EUR", ".XETRA": "EUR", ".PA": "EUR",
		".US": "USD",
	} {
		if len(symbol) > len(suffix) && symbol[len(symbol)-len(suffix):] == suffix {
			return currency
		}
	}
	return "USD"
}
