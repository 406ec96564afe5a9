package omnifolio

import "fmt"

// parcelHoldings tracks holdings as ordered parcel lists per (bucket,
// symbol). Disposals consume from the tail of the list: most recently
// acquired first.
type parcelHoldings struct {
	bucket BucketFunc
	stocks map[string]map[string][]Parcel
}

func newParcelHoldings(bucket BucketFunc) *parcelHoldings {
	return &parcelHoldings{
		bucket: bucket,
		stocks: make(map[string]map[string][]Parcel),
	}
}

func (h *parcelHoldings) Method() CostBasisMethod { return LIFO }

func (h *parcelHoldings) ApplyTrade(t Trade) (TradeDiff, error) {
	if err := t.Validate(); err != nil {
		return TradeDiff{}, err
	}
	switch t.Type {
	case BuyTrade:
		return h.buy(t)
	case SellTrade:
		return h.sell(t)
	default:
		return TradeDiff{}, fmt.Errorf("unknown trade type: %q", string(t.Type))
	}
}

func (h *parcelHoldings) buy(t Trade) (TradeDiff, error) {
	bucket := h.bucket(t)
	parcels := h.stocks[bucket][t.Symbol]

	// A holding must keep one price and one fee currency over its lifetime.
	if len(parcels) > 0 {
		last := parcels[len(parcels)-1]
		if last.UnitPrice.Currency() != t.Price.Currency() || last.FeesPerUnit.Currency() != t.Fees.Currency() {
			return TradeDiff{}, fmt.Errorf("%w: currency change within holding %s/%s (%s to %s)",
				ErrUnsupported, bucket, t.Symbol, last.UnitPrice.Currency(), t.Price.Currency())
		}
	}

	p := Parcel{
		AcquiredOn:  t.Date,
		Quantity:    t.Quantity,
		UnitPrice:   t.Price,
		FeesPerUnit: t.FeesPerUnit(),
	}
	if h.stocks[bucket] == nil {
		h.stocks[bucket] = make(map[string][]Parcel)
	}
	h.stocks[bucket][t.Symbol] = append(parcels, p)

	var diff TradeDiff
	diff.Acquired.Stocks = append(diff.Acquired.Stocks, StockAcquisition{
		Bucket:      bucket,
		Symbol:      t.Symbol,
		AcquiredOn:  p.AcquiredOn,
		Quantity:    p.Quantity,
		UnitPrice:   p.UnitPrice,
		FeesPerUnit: p.FeesPerUnit,
	})
	diff.Disposed.Cash = cashSpent(t.GrossAmount(), t.Fees)
	return diff, nil
}

func (h *parcelHoldings) sell(t Trade) (TradeDiff, error) {
	bucket := h.bucket(t)
	parcels := h.stocks[bucket][t.Symbol]

	// All checks precede any mutation so a failed sell leaves the state
	// exactly as it was.
	var held Quantity
	for _, p := range parcels {
		held = held.Add(p.Quantity)
	}
	if t.Quantity.GreaterThan(held) {
		return TradeDiff{}, fmt.Errorf("%w: attempted to sell %s units of %s/%s but only %s are held",
			ErrInsufficientHoldings, t.Quantity, bucket, t.Symbol, held)
	}
	for _, p := range parcels {
		if p.UnitPrice.Currency() != t.Price.Currency() {
			return TradeDiff{}, fmt.Errorf("%w: holding %s/%s is denominated in %s, trade in %s",
				ErrUnsupported, bucket, t.Symbol, p.UnitPrice.Currency(), t.Price.Currency())
		}
	}

	feePerUnit := t.FeesPerUnit()
	yetToDispose := t.Quantity
	var diff TradeDiff

	for !yetToDispose.IsZero() {
		last := parcels[len(parcels)-1]
		disposal := StockDisposal{
			Bucket:                 bucket,
			Symbol:                 t.Symbol,
			AcquiredOn:             last.AcquiredOn,
			DisposedOn:             t.Date,
			AcquisitionUnitPrice:   last.UnitPrice,
			AcquisitionFeesPerUnit: last.FeesPerUnit,
			DisposalUnitPrice:      t.Price,
			DisposalFeesPerUnit:    feePerUnit,
		}
		if last.Quantity.GreaterThan(yetToDispose) {
			// Partial disposal from the tail parcel.
			disposal.Quantity = yetToDispose
			last.Quantity = last.Quantity.Sub(yetToDispose)
			parcels[len(parcels)-1] = last
			yetToDispose = Q(0)
		} else {
			// The tail parcel is fully consumed.
			disposal.Quantity = last.Quantity
			yetToDispose = yetToDispose.Sub(last.Quantity)
			parcels = parcels[:len(parcels)-1]
		}
		diff.Disposed.Stocks = append(diff.Disposed.Stocks, disposal)
	}

	if len(parcels) == 0 {
		delete(h.stocks[bucket], t.Symbol)
		if len(h.stocks[bucket]) == 0 {
			delete(h.stocks, bucket)
		}
	} else {
		h.stocks[bucket][t.Symbol] = parcels
	}

	diff.Acquired.Cash = append(diff.Acquired.Cash, t.GrossAmount())
	if t.Fees.IsPositive() {
		diff.Disposed.Cash = append(diff.Disposed.Cash, t.Fees)
	}
	return diff, nil
}

func (h *parcelHoldings) Snapshot() HoldingsSnapshot {
	snap := make(HoldingsSnapshot, len(h.stocks))
	for bucket, symbols := range h.stocks {
		snap[bucket] = make(map[string]Position, len(symbols))
		for symbol, parcels := range symbols {
			snap[bucket][symbol] = parcelTotals(parcels)
		}
	}
	return snap
}

// parcelTotals derives the position aggregate from a parcel list.
func parcelTotals(parcels []Parcel) Position {
	var pos Position
	pos.Parcels = make([]Parcel, len(parcels))
	copy(pos.Parcels, parcels)
	for _, p := range parcels {
		pos.Quantity = pos.Quantity.Add(p.Quantity)
		// Parcels of one holding share currencies; enforced on buy.
		pos.TotalCost, _ = pos.TotalCost.Add(p.UnitPrice.Mul(p.Quantity))
		pos.TotalFees, _ = pos.TotalFees.Add(p.FeesPerUnit.Mul(p.Quantity))
	}
	return pos
}
