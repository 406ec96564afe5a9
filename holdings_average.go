package omnifolio

import "fmt"

// averageHoldings tracks holdings as a single running aggregate per (bucket,
// symbol), collapsing all acquisitions into one weighted-average cost.
type averageHoldings struct {
	bucket BucketFunc
	stocks map[string]map[string]Position
}

func newAverageHoldings(bucket BucketFunc) *averageHoldings {
	return &averageHoldings{
		bucket: bucket,
		stocks: make(map[string]map[string]Position),
	}
}

func (h *averageHoldings) Method() CostBasisMethod { return AverageCost }

func (h *averageHoldings) ApplyTrade(t Trade) (TradeDiff, error) {
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

func (h *averageHoldings) buy(t Trade) (TradeDiff, error) {
	bucket := h.bucket(t)
	pos, exists := h.stocks[bucket][t.Symbol]

	gross := t.GrossAmount()
	if exists {
		newCost, err := pos.TotalCost.Add(gross)
		if err != nil {
			return TradeDiff{}, fmt.Errorf("%w: currency change within holding %s/%s: %v",
				ErrUnsupported, bucket, t.Symbol, err)
		}
		newFees, err := pos.TotalFees.Add(t.Fees)
		if err != nil {
			return TradeDiff{}, fmt.Errorf("%w: fee currency change within holding %s/%s: %v",
				ErrUnsupported, bucket, t.Symbol, err)
		}
		pos.TotalCost = newCost
		pos.TotalFees = newFees
		pos.Quantity = pos.Quantity.Add(t.Quantity)
	} else {
		pos = Position{
			TotalCost: gross,
			TotalFees: t.Fees,
			Quantity:  t.Quantity,
		}
	}
	if h.stocks[bucket] == nil {
		h.stocks[bucket] = make(map[string]Position)
	}
	h.stocks[bucket][t.Symbol] = pos

	var diff TradeDiff
	diff.Acquired.Stocks = append(diff.Acquired.Stocks, StockAcquisition{
		Bucket:      bucket,
		Symbol:      t.Symbol,
		AcquiredOn:  t.Date,
		Quantity:    t.Quantity,
		UnitPrice:   t.Price,
		FeesPerUnit: t.FeesPerUnit(),
	})
	diff.Disposed.Cash = cashSpent(gross, t.Fees)
	return diff, nil
}

func (h *averageHoldings) sell(t Trade) (TradeDiff, error) {
	bucket := h.bucket(t)
	pos, exists := h.stocks[bucket][t.Symbol]
	if !exists {
		return TradeDiff{}, fmt.Errorf("%w: attempted to sell %s units of %s/%s but none are held",
			ErrInsufficientHoldings, t.Quantity, bucket, t.Symbol)
	}
	remaining := pos.Quantity.Sub(t.Quantity)
	if remaining.IsNegative() {
		return TradeDiff{}, fmt.Errorf("%w: attempted to sell %s units of %s/%s but only %s are held",
			ErrInsufficientHoldings, t.Quantity, bucket, t.Symbol, pos.Quantity)
	}
	if pos.TotalCost.Currency() != t.Price.Currency() {
		return TradeDiff{}, fmt.Errorf("%w: holding %s/%s is denominated in %s, trade in %s",
			ErrUnsupported, bucket, t.Symbol, pos.TotalCost.Currency(), t.Price.Currency())
	}

	blendedPrice := pos.TotalCost.Div(pos.Quantity)
	blendedFees := pos.TotalFees.Div(pos.Quantity)

	// The cost removed is totalCost*q/N and the remainder is assigned by
	// subtraction, so disposed plus remaining always recomposes the total
	// exactly. The remaining position's average price is unchanged.
	costOfSale := pos.TotalCost.Mul(t.Quantity).Div(pos.Quantity)
	feesOfSale := pos.TotalFees.Mul(t.Quantity).Div(pos.Quantity)

	if remaining.IsZero() {
		delete(h.stocks[bucket], t.Symbol)
		if len(h.stocks[bucket]) == 0 {
			delete(h.stocks, bucket)
		}
	} else {
		newCost, err := pos.TotalCost.Sub(costOfSale)
		if err != nil {
			return TradeDiff{}, err
		}
		newFees, err := pos.TotalFees.Sub(feesOfSale)
		if err != nil {
			return TradeDiff{}, err
		}
		pos.TotalCost = newCost
		pos.TotalFees = newFees
		pos.Quantity = remaining
		h.stocks[bucket][t.Symbol] = pos
	}

	var diff TradeDiff
	diff.Disposed.Stocks = append(diff.Disposed.Stocks, StockDisposal{
		Bucket:     bucket,
		Symbol:     t.Symbol,
		DisposedOn: t.Date,
		Quantity:   t.Quantity,
		// AcquiredOn stays zero: an aggregate has no single acquisition date.
		AcquisitionUnitPrice:   blendedPrice,
		AcquisitionFeesPerUnit: blendedFees,
		DisposalUnitPrice:      t.Price,
		DisposalFeesPerUnit:    t.FeesPerUnit(),
	})
	diff.Acquired.Cash = append(diff.Acquired.Cash, t.GrossAmount())
	if t.Fees.IsPositive() {
		diff.Disposed.Cash = append(diff.Disposed.Cash, t.Fees)
	}
	return diff, nil
}

func (h *averageHoldings) Snapshot() HoldingsSnapshot {
	snap := make(HoldingsSnapshot, len(h.stocks))
	for bucket, symbols := range h.stocks {
		snap[bucket] = make(map[string]Position, len(symbols))
		for symbol, pos := range symbols {
			snap[bucket][symbol] = pos
		}
	}
	return snap
}
