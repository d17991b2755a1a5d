// Package factor implements the facade (C10) over C7/C8: a single
// interface a factor algorithm would read market-data and trade-data
// through, separating a hot tier (live, in-memory, C7) from a warm tier
// (durable, REST-backed, C8) the way sawpanic-cryptorun's DataFacade
// separates WebSocket subscriptions from REST+cache reads. No factor
// algorithm is implemented here — that is out of scope — only the
// interface and the gap-preserving helpers a factor would need to
// tolerate missing candles in a window.
package factor

import (
	"context"

	"marketcore/pkg/types"
)

// Facade is the read surface a factor computation is built against. It
// never exposes order placement: factors consume data, they don't act.
type Facade interface {
	// Klines returns the hot tier's in-memory candle window, which may
	// contain gaps (nil entries) for intervals never observed. When the
	// provider has no cache yet for the (symbol, interval) pair, it
	// returns the provider's REST result instead.
	Klines(ctx context.Context, marketType types.MarketType, symbol, interval string, limit int) ([]*types.Candle, error)
	// Trades returns the hot tier's in-memory trade window.
	Trades(marketType types.MarketType, symbol string, limit int) ([]*types.Trade, error)
	// Depth returns the hot tier's current order book.
	Depth(marketType types.MarketType, symbol string) (types.DepthSnapshot, error)

	// OrderHistory returns the warm tier's durable order range for a
	// symbol, ascending from startTime or descending "latest N" when
	// startTime is zero.
	OrderHistory(ctx context.Context, marketType types.MarketType, symbol string, startTime uint64, limit int) ([]types.Order, error)
	// UserTradeHistory returns the warm tier's durable fill range.
	UserTradeHistory(ctx context.Context, marketType types.MarketType, symbol string, startTime uint64, limit int) ([]types.UserTrade, error)
	// Account returns the warm tier's durable account snapshot.
	Account(ctx context.Context, marketType types.MarketType) (types.Account, error)
}

// ContinuousRun reports the length of the longest unbroken (no nil gaps)
// run of candles ending at the last element of candles. Factors that
// need N consecutive bars can call this rather than trusting len().
func ContinuousRun(candles []*types.Candle) int {
	run := 0
	for i := len(candles) - 1; i >= 0; i-- {
		if candles[i] == nil {
			break
		}
		run++
	}
	return run
}

// WithinWindow reports whether every non-nil candle's OpenTime falls
// within [start, end] inclusive. Gaps (nil entries) are ignored.
func WithinWindow(candles []*types.Candle, start, end uint64) bool {
	for _, c := range candles {
		if c == nil {
			continue
		}
		if c.OpenTime < start || c.OpenTime > end {
			return false
		}
	}
	return true
}
