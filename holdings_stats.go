package omnifolio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/samber/lo"
)

// Buckets returns the snapshot's bucket names, sorted.
func (s HoldingsSnapshot) Buckets() []string {
	buckets := lo.Keys(s)
	sort.Strings(buckets)
	return buckets
}

// Symbols returns every symbol held in any bucket, sorted and deduplicated.
func (s HoldingsSnapshot) Symbols() []string {
	var symbols []string
	for _, positions := range s {
		symbols = append(symbols, lo.Keys(positions)...)
	}
	symbols = lo.Uniq(symbols)
	sort.Strings(symbols)
	return symbols
}

// TotalQuantity sums the units of a symbol held across all buckets.
func (s HoldingsSnapshot) TotalQuantity(symbol string) Quantity {
	total := Q(0)
	for _, positions := range s {
		if pos, ok := positions[symbol]; ok {
			total = total.Add(pos.Quantity)
		}
	}
	return total
}

// AverageUnitCost returns the position's cost per unit, before fees.
func (p Position) AverageUnitCost() Money { return p.TotalCost.Div(p.Quantity) }

// AverageUnitFees returns the position's fees per unit.
func (p Position) AverageUnitFees() Money { return p.TotalFees.Div(p.Quantity) }

// MarshalJSON implements the json.Marshaler interface with buckets and
// symbols in sorted order.
func (s HoldingsSnapshot) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	for _, bucket := range s.Buckets() {
		positions := s[bucket]
		var bw jsonObjectWriter
		symbols := lo.Keys(positions)
		sort.Strings(symbols)
		for _, symbol := range symbols {
			bw.Append(symbol, positions[symbol])
		}
		w.Append(bucket, &bw)
	}
	return w.MarshalJSON()
}

// Dump writes the snapshot as indented JSON, for debugging.
func (s HoldingsSnapshot) Dump(w io.Writer) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	buf.WriteString("\n")
	_, err = io.Copy(w, &buf)
	return err
}

// String returns the snapshot as a compact single-line string, used in
// error paths and logs.
func (s HoldingsSnapshot) String() string {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Sprintf("<unmarshalable snapshot: %v>", err)
	}
	return string(raw)
}
