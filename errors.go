package omnifolio

import "errors"

// Sentinel errors for the accounting core and the market data layer.
// They propagate to the caller unchanged; the core never retries and never
// recovers from a partial failure on its own.
var (
	// ErrCurrencyMismatch reports arithmetic attempted between two Money
	// values carrying different currency tags.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrInsufficientHoldings reports a sell trade for more units than are
	// held in the targeted bucket/symbol. Short positions are not supported.
	ErrInsufficientHoldings = errors.New("insufficient holdings")

	// ErrDataFormat reports market data that fails a structural or type
	// check. It is never auto-corrected.
	ErrDataFormat = errors.New("market data format error")

	// ErrMissingData reports a symbol that yields an empty series after
	// store and provider reconciliation.
	ErrMissingData = errors.New("missing market data")

	// ErrUnsupported reports a known gap, such as a currency change within a
	// held position. The deliberate choice is to fail loud, not approximate.
	ErrUnsupported = errors.New("unsupported operation")
)
