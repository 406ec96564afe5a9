package omnifolio

import (
	"errors"
	"testing"
	"time"
)

func TestParcelSellConsumesTailFirst(t *testing.T) {
	h := NewHoldings(LIFO, BucketByAccount)
	d1 := NewDate(2020, time.June, 1)
	d2 := NewDate(2020, time.June, 15)

	if _, err := h.ApplyTrade(mustTrade(t, d1, "Acct", "NDQ.AX", BuyTrade,
		Q(10), M(100, "AUD"), M(0, "AUD"))); err != nil {
		t.Fatal(err)
	}
	if _, err := h.ApplyTrade(mustTrade(t, d2, "Acct", "NDQ.AX", BuyTrade,
		Q(5), M(200, "AUD"), M(0, "AUD"))); err != nil {
		t.Fatal(err)
	}

	diff, err := h.ApplyTrade(mustTrade(t, d2.Add(1), "Acct", "NDQ.AX", SellTrade,
		Q(3), M(210, "AUD"), M(0, "AUD")))
	if err != nil {
		t.Fatal(err)
	}

	// the most recent parcel is consumed first
	if len(diff.Disposed.Stocks) != 1 {
		t.Fatalf("disposals = %d, want 1", len(diff.Disposed.Stocks))
	}
	d := diff.Disposed.Stocks[0]
	if d.AcquiredOn != d2 {
		t.Errorf("disposal consumed parcel acquired %v, want %v", d.AcquiredOn, d2)
	}
	if !d.Quantity.Equal(Q(3)) || !d.AcquisitionUnitPrice.Equal(M(200, "AUD")) {
		t.Errorf("disposal = %+v", d)
	}

	pos := h.Snapshot()["Acct"]["NDQ.AX"]
	if len(pos.Parcels) != 2 {
		t.Fatalf("parcels = %d, want 2", len(pos.Parcels))
	}
	if !pos.Parcels[0].Quantity.Equal(Q(10)) || !pos.Parcels[1].Quantity.Equal(Q(2)) {
		t.Errorf("parcel quantities = %v, %v, want 10, 2", pos.Parcels[0].Quantity, pos.Parcels[1].Quantity)
	}
	if !pos.Quantity.Equal(Q(12)) {
		t.Errorf("position quantity = %v, want 12", pos.Quantity)
	}
}

func TestParcelSellSpansParcels(t *testing.T) {
	h := NewHoldings(LIFO, BucketByAccount)
	d1 := NewDate(2020, time.June, 1)
	d2 := NewDate(2020, time.June, 15)

	if _, err := h.ApplyTrade(mustTrade(t, d1, "Acct", "TSLA", BuyTrade,
		Q(10), M(100, "USD"), M(8, "USD"))); err != nil {
		t.Fatal(err)
	}
	if _, err := h.ApplyTrade(mustTrade(t, d2, "Acct", "TSLA", BuyTrade,
		Q(5), M(200, "USD"), M(10, "USD"))); err != nil {
		t.Fatal(err)
	}

	diff, err := h.ApplyTrade(mustTrade(t, d2.Add(1), "Acct", "TSLA", SellTrade,
		Q(8), M(210, "USD"), M(4, "USD")))
	if err != nil {
		t.Fatal(err)
	}

	// one disposal per consumed parcel, newest first
	if len(diff.Disposed.Stocks) != 2 {
		t.Fatalf("disposals = %d, want 2", len(diff.Disposed.Stocks))
	}
	first, second := diff.Disposed.Stocks[0], diff.Disposed.Stocks[1]
	if first.AcquiredOn != d2 || !first.Quantity.Equal(Q(5)) {
		t.Errorf("first disposal = %+v", first)
	}
	if second.AcquiredOn != d1 || !second.Quantity.Equal(Q(3)) {
		t.Errorf("second disposal = %+v", second)
	}
	// both carry the selling trade's proportional fee
	feePerUnit := M(4, "USD").Div(Q(8))
	if !first.DisposalFeesPerUnit.Equal(feePerUnit) || !second.DisposalFeesPerUnit.Equal(feePerUnit) {
		t.Errorf("disposal fees per unit = %v, %v, want %v",
			first.DisposalFeesPerUnit, second.DisposalFeesPerUnit, feePerUnit)
	}
	// each keeps its own acquisition cost basis
	if !first.AcquisitionUnitPrice.Equal(M(200, "USD")) || !second.AcquisitionUnitPrice.Equal(M(100, "USD")) {
		t.Errorf("acquisition prices = %v, %v", first.AcquisitionUnitPrice, second.AcquisitionUnitPrice)
	}

	pos := h.Snapshot()["Acct"]["TSLA"]
	if len(pos.Parcels) != 1 || !pos.Parcels[0].Quantity.Equal(Q(7)) {
		t.Errorf("remaining parcels = %+v, want one of quantity 7", pos.Parcels)
	}
}

func TestParcelFractionalQuantities(t *testing.T) {
	h := NewHoldings(LIFO, BucketByAccount)
	day := NewDate(2020, time.August, 27)
	if _, err := h.ApplyTrade(mustTrade(t, day, "Stake", "TSLA", BuyTrade,
		Q("4.5"), M("443.12", "USD"), M(0, "USD"))); err != nil {
		t.Fatal(err)
	}
	if _, err := h.ApplyTrade(mustTrade(t, day.Add(5), "Stake", "TSLA", SellTrade,
		Q("1.25"), M("500", "USD"), M(0, "USD"))); err != nil {
		t.Fatal(err)
	}
	pos := h.Snapshot()["Stake"]["TSLA"]
	if !pos.Quantity.Equal(Q("3.25")) {
		t.Errorf("quantity = %v, want 3.25", pos.Quantity)
	}
}

func TestParcelSellIsAtomic(t *testing.T) {
	h := NewHoldings(LIFO, BucketByAccount)
	day := NewDate(2020, time.June, 1)
	if _, err := h.ApplyTrade(mustTrade(t, day, "Acct", "NDQ.AX", BuyTrade,
		Q(10), M(100, "AUD"), M(0, "AUD"))); err != nil {
		t.Fatal(err)
	}
	before := h.Snapshot()

	if _, err := h.ApplyTrade(mustTrade(t, day.Add(1), "Acct", "NDQ.AX", SellTrade,
		Q(11), M(100, "AUD"), M(0, "AUD"))); !errors.Is(err, ErrInsufficientHoldings) {
		t.Fatalf("overselling should fail with ErrInsufficientHoldings, got %v", err)
	}
	if _, err := h.ApplyTrade(mustTrade(t, day.Add(1), "Acct", "NDQ.AX", SellTrade,
		Q(5), M(100, "USD"), M(0, "USD"))); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("cross-currency sell should fail with ErrUnsupported, got %v", err)
	}

	after := h.Snapshot()
	if before.String() != after.String() {
		t.Errorf("failed sell mutated state:\nbefore %s\nafter  %s", before, after)
	}
}

func TestParcelFullDisposalPrunes(t *testing.T) {
	h := NewHoldings(LIFO, BucketByAccount)
	day := NewDate(2020, time.June, 1)
	if _, err := h.ApplyTrade(mustTrade(t, day, "Acct", "NDQ.AX", BuyTrade,
		Q(10), M(100, "AUD"), M(0, "AUD"))); err != nil {
		t.Fatal(err)
	}
	if _, err := h.ApplyTrade(mustTrade(t, day.Add(1), "Acct", "NDQ.AX", SellTrade,
		Q(10), M(110, "AUD"), M(0, "AUD"))); err != nil {
		t.Fatal(err)
	}
	if snap := h.Snapshot(); len(snap) != 0 {
		t.Errorf("snapshot after full disposal = %v, want empty", snap)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	h := NewHoldings(LIFO, BucketByAccount)
	day := NewDate(2020, time.June, 1)
	if _, err := h.ApplyTrade(mustTrade(t, day, "Acct", "NDQ.AX", BuyTrade,
		Q(10), M(100, "AUD"), M(0, "AUD"))); err != nil {
		t.Fatal(err)
	}
	snap := h.Snapshot()
	snap["Acct"]["NDQ.AX"] = Position{}
	snap["other"] = nil

	fresh := h.Snapshot()
	if !fresh["Acct"]["NDQ.AX"].Quantity.Equal(Q(10)) {
		t.Errorf("mutating a snapshot leaked into the engine state")
	}
	if _, ok := fresh["other"]; ok {
		t.Errorf("mutating a snapshot leaked into the engine state")
	}
}
