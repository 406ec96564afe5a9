package omnifolio

import (
	"strings"
	"testing"
	"time"
)

func TestNewTradeDefaults(t *testing.T) {
	trade, err := NewTrade(NewDate(2020, time.August, 25), "", "", "NDQ.AX", BuyTrade,
		Q(120), M("26.90", "AUD"), M("19.95", "AUD"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if trade.Account != DefaultAccount {
		t.Errorf("account = %q, want %q", trade.Account, DefaultAccount)
	}
}

func TestTradeValidate(t *testing.T) {
	valid := mustTrade(t, NewDate(2020, time.August, 25), "A", "NDQ.AX", BuyTrade,
		Q(120), M("26.90", "AUD"), M("19.95", "AUD"))

	tests := []struct {
		name    string
		mutate  func(*Trade)
		wantMsg string
	}{
		{"zero date", func(tr *Trade) { tr.Date = Date{} }, "date is missing"},
		{"no symbol", func(tr *Trade) { tr.Symbol = "" }, "symbol is missing"},
		{"bad type", func(tr *Trade) { tr.Type = "short" }, "unknown trade type"},
		{"zero quantity", func(tr *Trade) { tr.Quantity = Q(0) }, "quantity must be positive"},
		{"negative quantity", func(tr *Trade) { tr.Quantity = Q(-1) }, "quantity must be positive"},
		{"negative price", func(tr *Trade) { tr.Price = M(-1, "AUD") }, "price must not be negative"},
		{"no price currency", func(tr *Trade) { tr.Price = Money{} }, "price currency is missing"},
		{"negative fees", func(tr *Trade) { tr.Fees = M(-1, "AUD") }, "fees must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trade := valid
			tt.mutate(&trade)
			err := trade.Validate()
			if err == nil {
				t.Fatal("Validate accepted an invalid trade")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestTradeDerivedAmounts(t *testing.T) {
	trade := mustTrade(t, NewDate(2020, time.August, 25), "A", "NDQ.AX", BuyTrade,
		Q(120), M("26.90", "AUD"), M("19.95", "AUD"))
	if got, want := trade.GrossAmount(), M("3228", "AUD"); !got.Equal(want) {
		t.Errorf("GrossAmount = %v, want %v", got, want)
	}
	if got, want := trade.FeesPerUnit(), M("0.16625", "AUD"); !got.Equal(want) {
		t.Errorf("FeesPerUnit = %v, want %v", got, want)
	}
}

func TestParseTradeType(t *testing.T) {
	if _, err := ParseTradeType("buy"); err != nil {
		t.Errorf("buy should parse: %v", err)
	}
	if _, err := ParseTradeType("sell"); err != nil {
		t.Errorf("sell should parse: %v", err)
	}
	if _, err := ParseTradeType("short"); err == nil {
		t.Errorf("short should not parse")
	}
}
