package omnifolio

import (
	"errors"
	"fmt"
)

// TradeType identifies the direction of a trade.
type TradeType string

const (
	// BuyTrade acquires units of a security against cash.
	BuyTrade TradeType = "buy"
	// SellTrade disposes units of a security for cash.
	SellTrade TradeType = "sell"
)

// ParseTradeType parses a string into a TradeType.
func ParseTradeType(s string) (TradeType, error) {
	switch TradeType(s) {
	case BuyTrade:
		return BuyTrade, nil
	case SellTrade:
		return SellTrade, nil
	default:
		return "", fmt.Errorf("unknown trade type: %q", s)
	}
}

// DefaultAccount is substituted when a trade's account field is left empty.
const DefaultAccount = "[default_account]"

// Trade is an immutable record of one buy or sell of a security.
//
// Trades are consumed one at a time by a Holdings engine, and must be
// supplied in non-decreasing chronological order; the replayer reports an
// out-of-order sequence as an error instead of re-sorting.
type Trade struct {
	Comment string    `json:"comment,omitempty"`
	Date    Date      `json:"date"`
	Account string    `json:"account"`
	Symbol  string    `json:"symbol"`
	Type    TradeType `json:"type"`

	Quantity Quantity `json:"quantity"` // number of units, > 0
	Price    Money    `json:"price"`    // unit price, >= 0
	Fees     Money    `json:"fees"`     // total fees for the trade, >= 0
}

// NewTrade builds a validated Trade. An empty account is replaced by
// DefaultAccount.
func NewTrade(day Date, comment, account, symbol string, typ TradeType, quantity Quantity, price, fees Money) (Trade, error) {
	if account == "" {
		account = DefaultAccount
	}
	t := Trade{
		Comment:  comment,
		Date:     day,
		Account:  account,
		Symbol:   symbol,
		Type:     typ,
		Quantity: quantity,
		Price:    price,
		Fees:     fees,
	}
	if err := t.Validate(); err != nil {
		return Trade{}, err
	}
	return t, nil
}

// Validate checks the trade's field contract.
func (t Trade) Validate() error {
	var errs error
	if t.Date.IsZero() {
		errs = errors.Join(errs, errors.New("trade date is missing"))
	}
	if t.Symbol == "" {
		errs = errors.Join(errs, errors.New("trade symbol is missing"))
	}
	if t.Account == "" {
		errs = errors.Join(errs, errors.New("trade account is missing"))
	}
	if t.Type != BuyTrade && t.Type != SellTrade {
		errs = errors.Join(errs, fmt.Errorf("unknown trade type: %q", string(t.Type)))
	}
	if !t.Quantity.IsPositive() {
		errs = errors.Join(errs, fmt.Errorf("trade quantity must be positive, got %s", t.Quantity))
	}
	if t.Price.IsNegative() {
		errs = errors.Join(errs, fmt.Errorf("trade price must not be negative, got %s", t.Price))
	}
	if t.Price.Currency() == "" {
		errs = errors.Join(errs, errors.New("trade price currency is missing"))
	}
	if t.Fees.IsNegative() {
		errs = errors.Join(errs, fmt.Errorf("trade fees must not be negative, got %s", t.Fees))
	}
	if t.Fees.Currency() == "" {
		errs = errors.Join(errs, errors.New("trade fees currency is missing"))
	}
	if errs != nil {
		return fmt.Errorf("invalid trade on %s: %w", t.Date, errs)
	}
	return nil
}

// FeesPerUnit returns the trade's total fees spread evenly over its units.
func (t Trade) FeesPerUnit() Money {
	return t.Fees.Div(t.Quantity)
}

// GrossAmount returns price times quantity.
func (t Trade) GrossAmount() Money {
	return t.Price.Mul(t.Quantity)
}

// MarshalJSON implements the json.Marshaler interface with stable key order.
func (t Trade) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Optional("comment", t.Comment)
	w.Append("date", t.Date)
	w.Append("account", t.Account)
	w.Append("symbol", t.Symbol)
	w.Append("type", t.Type)
	w.Append("quantity", t.Quantity)
	w.Append("price", t.Price)
	w.Append("fees", t.Fees)
	return w.MarshalJSON()
}
