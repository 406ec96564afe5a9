package omnifolio

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// contains the import and export of user data files

// tradeColumns is the mandatory header row of a trades file.
var tradeColumns = []string{
	"comment",
	"trade_date",
	"account",
	"ric_symbol",
	"trade_type",
	"unit_quantity",
	"unit_price",
	"unit_currency",
	"fees",
	"fees_currency",
}

// dividendColumns is the header row of a dividend overrides file. Rows above
// it are free-form documentation and are ignored.
var dividendColumns = []string{
	"ric_symbol",
	"date",
	"currency",
	"ex_dividend_amount_per_unit",
	"comment",
}

// ReadTrades parses a trades CSV. The first row must be the column labels.
// Rows are returned sorted by date, preserving the file order of same-day
// trades.
func ReadTrades(r io.Reader) ([]Trade, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(tradeColumns)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: reading trades file: %v", ErrDataFormat, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: trades file is empty", ErrDataFormat)
	}
	if !equalRow(rows[0], tradeColumns) {
		return nil, fmt.Errorf("%w: trades file must start with the column labels row", ErrDataFormat)
	}

	var trades []Trade
	for i, row := range rows[1:] {
		t, err := parseTradeRow(row)
		if err != nil {
			return nil, fmt.Errorf("%w: trades file row %d: %v", ErrDataFormat, i+2, err)
		}
		trades = append(trades, t)
	}
	sort.SliceStable(trades, func(i, j int) bool { return trades[i].Date.Before(trades[j].Date) })
	return trades, nil
}

func parseTradeRow(row []string) (Trade, error) {
	day, err := ParseDate(strings.TrimSpace(row[1]))
	if err != nil {
		return Trade{}, err
	}
	typ, err := ParseTradeType(strings.TrimSpace(row[4]))
	if err != nil {
		return Trade{}, err
	}
	quantity, err := parseQuantity(row[5], "unit_quantity")
	if err != nil {
		return Trade{}, err
	}
	price, err := parseMoney(row[6], row[7], "unit_price")
	if err != nil {
		return Trade{}, err
	}
	fees, err := parseMoney(row[8], row[9], "fees")
	if err != nil {
		return Trade{}, err
	}
	return NewTrade(day,
		strings.TrimSpace(row[0]),
		strings.TrimSpace(row[2]),
		strings.TrimSpace(row[3]),
		typ, quantity, price, fees)
}

// ReadDividendOverrides parses a dividend overrides CSV. Everything up to and
// including the column labels row is ignored, blank rows are skipped, and a
// duplicate (symbol, date) pair is rejected.
func ReadDividendOverrides(r io.Reader) ([]DividendOverride, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(dividendColumns)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: reading dividend overrides file: %v", ErrDataFormat, err)
	}

	start := -1
	for i, row := range rows {
		if equalRow(row, dividendColumns) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("%w: dividend overrides file must contain the column labels row", ErrDataFormat)
	}

	seen := make(map[string]bool)
	var overrides []DividendOverride
	for i, row := range rows[start:] {
		if lo.EveryBy(row, func(s string) bool { return strings.TrimSpace(s) == "" }) {
			continue
		}
		symbol := strings.TrimSpace(row[0])
		if symbol == "" {
			return nil, fmt.Errorf("%w: dividend overrides row %d: RIC symbol must be non-empty", ErrDataFormat, start+i+1)
		}
		day, err := ParseDate(strings.TrimSpace(row[1]))
		if err != nil {
			return nil, fmt.Errorf("%w: dividend overrides row %d: %v", ErrDataFormat, start+i+1, err)
		}
		amount, err := parseMoney(row[3], row[2], "ex_dividend_amount_per_unit")
		if err != nil {
			return nil, fmt.Errorf("%w: dividend overrides row %d: %v", ErrDataFormat, start+i+1, err)
		}
		key := symbol + " " + day.String()
		if seen[key] {
			return nil, fmt.Errorf("%w: dividend overrides file contains duplicate date: %s %s", ErrDataFormat, symbol, day)
		}
		seen[key] = true
		overrides = append(overrides, DividendOverride{Symbol: symbol, Day: day, Amount: amount})
	}
	return overrides, nil
}

func parseQuantity(s, name string) (Quantity, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Quantity{}, fmt.Errorf("%s must be in a decimal representation: %w", name, err)
	}
	return Q(d), nil
}

func parseMoney(amount, currency, name string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return Money{}, fmt.Errorf("%s must be in a decimal representation: %w", name, err)
	}
	cur := strings.ToUpper(strings.TrimSpace(currency))
	if cur == "" {
		return Money{}, fmt.Errorf("%s requires a currency code", name)
	}
	return M(d, cur), nil
}

func equalRow(row, want []string) bool {
	if len(row) != len(want) {
		return false
	}
	for i := range row {
		if strings.TrimSpace(row[i]) != want[i] {
			return false
		}
	}
	return true
}
