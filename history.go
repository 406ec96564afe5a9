package omnifolio

import (
	"fmt"
	"iter"
)

// HistoryEntry captures the state of a holdings ledger immediately after one
// trade has been applied.
type HistoryEntry struct {
	Trade    Trade
	Diff     TradeDiff
	Holdings HoldingsSnapshot
}

// Replay applies trades to h in order, yielding one entry per trade.
//
// Trades must be sorted by non-decreasing date; an out-of-order trade stops
// the iteration with an error. Iteration also stops on the first trade the
// ledger rejects, leaving h exactly as it was before that trade.
func Replay(trades []Trade, h Holdings) iter.Seq2[HistoryEntry, error] {
	return func(yield func(HistoryEntry, error) bool) {
		var prev Date
		for i, t := range trades {
			if i > 0 && t.Date.Before(prev) {
				yield(HistoryEntry{}, fmt.Errorf("%w: trade %d dated %s precedes %s",
					ErrDataFormat, i, t.Date, prev))
				return
			}
			prev = t.Date
			diff, err := h.ApplyTrade(t)
			if err != nil {
				yield(HistoryEntry{}, fmt.Errorf("trade %d (%s %s): %w", i, t.Date, t.Symbol, err))
				return
			}
			if !yield(HistoryEntry{Trade: t, Diff: diff, Holdings: h.Snapshot()}, nil) {
				return
			}
		}
	}
}

// History returns a restartable sequence over the portfolio states produced by
// the trades. Each range starts a fresh ledger, so the sequence can be
// iterated any number of times.
func History(trades []Trade, method CostBasisMethod, bucket BucketFunc) iter.Seq2[HistoryEntry, error] {
	return func(yield func(HistoryEntry, error) bool) {
		Replay(trades, NewHoldings(method, bucket))(yield)
	}
}
