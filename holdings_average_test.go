package omnifolio

import (
	"errors"
	"testing"
	"time"
)

func mustTrade(t *testing.T, day Date, account, symbol string, typ TradeType, quantity Quantity, price, fees Money) Trade {
	t.Helper()
	trade, err := NewTrade(day, "", account, symbol, typ, quantity, price, fees)
	if err != nil {
		t.Fatalf("building trade: %v", err)
	}
	return trade
}

func TestAverageCostScenario(t *testing.T) {
	// Two buys at different prices, then a partial sell. The remaining
	// position must keep the same average unit cost, and the cost removed
	// plus the cost remaining must recompose the acquisitions exactly.
	h := NewHoldings(AverageCost, BucketByAccount)

	buys := []Trade{
		mustTrade(t, NewDate(2019, time.September, 6), "CommSec", "IVV.AX", BuyTrade,
			Q(32), M("439.21", "AUD"), M("29.95", "AUD")),
		mustTrade(t, NewDate(2020, time.January, 14), "CommSec", "IVV.AX", BuyTrade,
			Q(20), M("478.03", "AUD"), M("19.95", "AUD")),
	}
	for _, trade := range buys {
		if _, err := h.ApplyTrade(trade); err != nil {
			t.Fatalf("buy: %v", err)
		}
	}

	before := h.Snapshot()["CommSec"]["IVV.AX"]
	if want := Q(52); !before.Quantity.Equal(want) {
		t.Fatalf("quantity after buys = %v, want %v", before.Quantity, want)
	}
	if want := M("23615.32", "AUD"); !before.TotalCost.Equal(want) {
		t.Fatalf("total cost after buys = %v, want %v", before.TotalCost, want)
	}
	if want := M("49.90", "AUD"); !before.TotalFees.Equal(want) {
		t.Fatalf("total fees after buys = %v, want %v", before.TotalFees, want)
	}
	avgBefore := before.AverageUnitCost()

	sell := mustTrade(t, NewDate(2020, time.March, 2), "CommSec", "IVV.AX", SellTrade,
		Q(22), M("449.35", "AUD"), M("19.95", "AUD"))
	diff, err := h.ApplyTrade(sell)
	if err != nil {
		t.Fatalf("sell: %v", err)
	}

	after := h.Snapshot()["CommSec"]["IVV.AX"]
	if want := Q(30); !after.Quantity.Equal(want) {
		t.Errorf("quantity after sell = %v, want %v", after.Quantity, want)
	}
	if !after.AverageUnitCost().Equal(avgBefore) {
		t.Errorf("average unit cost changed on sell: %v -> %v", avgBefore, after.AverageUnitCost())
	}

	// disposed cost + remaining cost == acquired cost, exactly
	if len(diff.Disposed.Stocks) != 1 {
		t.Fatalf("disposals = %d, want 1", len(diff.Disposed.Stocks))
	}
	d := diff.Disposed.Stocks[0]
	// the remainder is assigned by subtraction, so removed + remaining
	// recomposes the acquisitions without rounding loss
	removed, err := before.TotalCost.Sub(after.TotalCost)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	recomposed, err := removed.Add(after.TotalCost)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !recomposed.Equal(before.TotalCost) {
		t.Errorf("removed + remaining = %v, want %v", recomposed, before.TotalCost)
	}

	if !d.AcquisitionUnitPrice.Equal(avgBefore) {
		t.Errorf("disposal acquisition price = %v, want blended %v", d.AcquisitionUnitPrice, avgBefore)
	}
	if !d.AcquiredOn.IsZero() {
		t.Errorf("disposal under average costing should have no acquisition date, got %v", d.AcquiredOn)
	}
	if !d.DisposalUnitPrice.Equal(M("449.35", "AUD")) {
		t.Errorf("disposal unit price = %v", d.DisposalUnitPrice)
	}

	// cash legs: gross in, fees out
	if len(diff.Acquired.Cash) != 1 || !diff.Acquired.Cash[0].Equal(M("9885.70", "AUD")) {
		t.Errorf("acquired cash = %v, want 9885.70 AUD", diff.Acquired.Cash)
	}
	if len(diff.Disposed.Cash) != 1 || !diff.Disposed.Cash[0].Equal(M("19.95", "AUD")) {
		t.Errorf("disposed cash = %v, want 19.95 AUD", diff.Disposed.Cash)
	}
}

func TestAverageCostFullDisposalPrunes(t *testing.T) {
	h := NewHoldings(AverageCost, BucketByAccount)
	day := NewDate(2020, time.May, 1)
	if _, err := h.ApplyTrade(mustTrade(t, day, "Acct", "VAS.AX", BuyTrade,
		Q(10), M(80, "AUD"), M(10, "AUD"))); err != nil {
		t.Fatal(err)
	}
	if _, err := h.ApplyTrade(mustTrade(t, day.Add(1), "Acct", "VAS.AX", SellTrade,
		Q(10), M(90, "AUD"), M(10, "AUD"))); err != nil {
		t.Fatal(err)
	}
	if snap := h.Snapshot(); len(snap) != 0 {
		t.Errorf("snapshot after full disposal = %v, want empty", snap)
	}
}

func TestAverageCostInsufficientHoldingsIsAtomic(t *testing.T) {
	h := NewHoldings(AverageCost, BucketByAccount)
	day := NewDate(2020, time.May, 1)
	if _, err := h.ApplyTrade(mustTrade(t, day, "Acct", "VAS.AX", BuyTrade,
		Q(10), M(80, "AUD"), M(0, "AUD"))); err != nil {
		t.Fatal(err)
	}
	before := h.Snapshot()

	_, err := h.ApplyTrade(mustTrade(t, day.Add(1), "Acct", "VAS.AX", SellTrade,
		Q(11), M(90, "AUD"), M(0, "AUD")))
	if !errors.Is(err, ErrInsufficientHoldings) {
		t.Fatalf("overselling should fail with ErrInsufficientHoldings, got %v", err)
	}
	// unknown symbol in the same bucket
	_, err = h.ApplyTrade(mustTrade(t, day.Add(1), "Acct", "VGS.AX", SellTrade,
		Q(1), M(90, "AUD"), M(0, "AUD")))
	if !errors.Is(err, ErrInsufficientHoldings) {
		t.Fatalf("selling an unheld symbol should fail with ErrInsufficientHoldings, got %v", err)
	}

	after := h.Snapshot()
	if before.String() != after.String() {
		t.Errorf("failed sell mutated state:\nbefore %s\nafter  %s", before, after)
	}
}

func TestAverageCostBucketsAreIndependent(t *testing.T) {
	h := NewHoldings(AverageCost, BucketByAccount)
	day := NewDate(2020, time.May, 1)
	if _, err := h.ApplyTrade(mustTrade(t, day, "A", "VAS.AX", BuyTrade,
		Q(10), M(80, "AUD"), M(0, "AUD"))); err != nil {
		t.Fatal(err)
	}
	if _, err := h.ApplyTrade(mustTrade(t, day, "B", "VAS.AX", BuyTrade,
		Q(5), M(90, "AUD"), M(0, "AUD"))); err != nil {
		t.Fatal(err)
	}
	// account B only holds 5; its sell must not reach into account A
	if _, err := h.ApplyTrade(mustTrade(t, day.Add(1), "B", "VAS.AX", SellTrade,
		Q(6), M(95, "AUD"), M(0, "AUD"))); !errors.Is(err, ErrInsufficientHoldings) {
		t.Fatalf("cross-bucket sell should fail, got %v", err)
	}

	g := NewHoldings(AverageCost, BucketGlobal)
	for _, trade := range []Trade{
		mustTrade(t, day, "A", "VAS.AX", BuyTrade, Q(10), M(80, "AUD"), M(0, "AUD")),
		mustTrade(t, day, "B", "VAS.AX", BuyTrade, Q(5), M(90, "AUD"), M(0, "AUD")),
		mustTrade(t, day.Add(1), "B", "VAS.AX", SellTrade, Q(6), M(95, "AUD"), M(0, "AUD")),
	} {
		if _, err := g.ApplyTrade(trade); err != nil {
			t.Fatalf("global bucketing should pool holdings: %v", err)
		}
	}
	if got, want := g.Snapshot().TotalQuantity("VAS.AX"), Q(9); !got.Equal(want) {
		t.Errorf("global quantity = %v, want %v", got, want)
	}
}

func TestAverageCostCurrencyChangeRejected(t *testing.T) {
	h := NewHoldings(AverageCost, BucketByAccount)
	day := NewDate(2020, time.May, 1)
	if _, err := h.ApplyTrade(mustTrade(t, day, "Acct", "IVV", BuyTrade,
		Q(10), M(300, "USD"), M(5, "USD"))); err != nil {
		t.Fatal(err)
	}
	if _, err := h.ApplyTrade(mustTrade(t, day.Add(1), "Acct", "IVV", BuyTrade,
		Q(10), M(450, "AUD"), M(5, "AUD"))); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("currency change on buy should fail with ErrUnsupported")
	}
	if _, err := h.ApplyTrade(mustTrade(t, day.Add(1), "Acct", "IVV", SellTrade,
		Q(5), M(450, "AUD"), M(5, "AUD"))); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("currency change on sell should fail with ErrUnsupported")
	}
}
