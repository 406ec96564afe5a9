package omnifolio

import "fmt"

// CostBasisMethod defines the method for calculating cost basis.
type CostBasisMethod int

const (
	// AverageCost collapses all acquisitions of a bucket/symbol into one
	// running average.
	AverageCost CostBasisMethod = iota
	// LIFO (Last-In, First-Out) disposes of the most recently acquired
	// parcels first.
	LIFO
)

func (m CostBasisMethod) String() string {
	switch m {
	case AverageCost:
		return "average"
	case LIFO:
		return "lifo"
	default:
		return "unknown"
	}
}

// ParseCostBasisMethod parses a string into a CostBasisMethod.
func ParseCostBasisMethod(s string) (CostBasisMethod, error) {
	switch s {
	case "average":
		return AverageCost, nil
	case "lifo":
		return LIFO, nil
	default:
		return 0, fmt.Errorf("unknown cost basis method: %q", s)
	}
}

// BucketFunc maps a trade to the bucket its holding is tracked under. The
// same engine can compute account-wise or portfolio-wide cost basis by
// swapping the bucket function.
type BucketFunc func(Trade) string

// BucketByAccount groups holdings by the trade's account.
func BucketByAccount(t Trade) string { return t.Account }

// BucketGlobal tracks all holdings under a single portfolio-wide bucket.
func BucketGlobal(Trade) string { return "global" }

// StockAcquisition describes units entering the portfolio from one trade.
type StockAcquisition struct {
	Bucket      string   `json:"bucket"`
	Symbol      string   `json:"symbol"`
	AcquiredOn  Date     `json:"acquired_on"`
	Quantity    Quantity `json:"quantity"`
	UnitPrice   Money    `json:"unit_price"`
	FeesPerUnit Money    `json:"fees_per_unit"`
}

// StockDisposal describes units leaving the portfolio, carrying both sides
// of the cost basis: the acquisition price and fees of the consumed parcel
// (or the blended aggregate under average costing) and the disposal price
// and proportional fees of the selling trade.
type StockDisposal struct {
	Bucket     string `json:"bucket"`
	Symbol     string `json:"symbol"`
	AcquiredOn Date   `json:"acquired_on,omitzero"` // zero under average costing
	DisposedOn Date   `json:"disposed_on"`

	Quantity Quantity `json:"quantity"`

	AcquisitionUnitPrice   Money `json:"acquisition_unit_price"`
	AcquisitionFeesPerUnit Money `json:"acquisition_fees_per_unit"`
	DisposalUnitPrice      Money `json:"disposal_unit_price"`
	DisposalFeesPerUnit    Money `json:"disposal_fees_per_unit"`
}

// AcquiredAssets is the incoming leg of a TradeDiff.
type AcquiredAssets struct {
	Stocks []StockAcquisition `json:"stocks"`
	Cash   []Money            `json:"cash"`
}

// DisposedAssets is the outgoing leg of a TradeDiff.
type DisposedAssets struct {
	Stocks []StockDisposal `json:"stocks"`
	Cash   []Money         `json:"cash"`
}

// TradeDiff describes exactly what entered and left the portfolio's asset
// and cash legs as the result of one trade. It is not persisted; the history
// generator consumes it immediately.
type TradeDiff struct {
	Acquired AcquiredAssets `json:"acquired"`
	Disposed DisposedAssets `json:"disposed"`
}

// Parcel is a block of units acquired at one price and fee rate.
type Parcel struct {
	AcquiredOn  Date     `json:"acquired_on"`
	Quantity    Quantity `json:"quantity"`
	UnitPrice   Money    `json:"unit_price"`
	FeesPerUnit Money    `json:"fees_per_unit"`
}

// Position is the state of one bucket/symbol holding. The LIFO engine fills
// Parcels and the derived totals; the average engine fills the totals only.
type Position struct {
	Parcels   []Parcel `json:"parcels,omitempty"`
	Quantity  Quantity `json:"quantity"`
	TotalCost Money    `json:"total_cost"` // before fees
	TotalFees Money    `json:"total_fees"`
}

// HoldingsSnapshot is a deep copy of the engine state: bucket, then symbol,
// to the position held. Absent keys mean empty; a zero-quantity position is
// never retained.
type HoldingsSnapshot map[string]map[string]Position

// Holdings is the cost-basis engine: it applies one trade at a time to the
// current holdings state and reports the resulting diff. It tracks only what
// is currently held, nothing about the past.
type Holdings interface {
	// ApplyTrade transitions the state by one trade. On error the state is
	// left exactly as it was before the call.
	ApplyTrade(Trade) (TradeDiff, error)
	// Snapshot returns a deep copy of the current state.
	Snapshot() HoldingsSnapshot
	// Method reports the engine's cost basis method.
	Method() CostBasisMethod
}

// NewHoldings builds an empty cost-basis engine for the given method,
// bucketing trades with the given function.
func NewHoldings(method CostBasisMethod, bucket BucketFunc) Holdings {
	switch method {
	case AverageCost:
		return newAverageHoldings(bucket)
	case LIFO:
		return newParcelHoldings(bucket)
	default:
		panic("unknown cost basis method")
	}
}

// cashSpent combines the cash out of a purchase: gross amount plus fees in
// one entry when the currencies match, two entries otherwise.
func cashSpent(gross, fees Money) []Money {
	if total, err := gross.Add(fees); err == nil {
		return []Money{total}
	}
	out := []Money{gross}
	if fees.IsPositive() {
		out = append(out, fees)
	}
	return out
}
