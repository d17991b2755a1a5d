package seqcache

import (
	"marketcore/internal/errs"
	"marketcore/pkg/types"
)

// KlineCache is a bounded sequence cache of candles for one (symbol,
// interval) pair, keyed by aligned open time and stepped by the
// interval itself (spec §4.3 step 4's "candle-only precondition"): Add
// rejects a candle whose symbol or interval disagrees with the cache's,
// or whose open_time is not a multiple of intervalMS.
type KlineCache = Cache[types.Candle]

// NewKlineCache creates a kline cache for one (symbol, interval) pair.
// intervalMS is the candle's fixed spacing in milliseconds (e.g. 60000
// for "1m"); it both scales the eviction window, so a capacity-N cache
// retains the last N candles regardless of how sparse open_time is, and
// bounds the alignment check.
func NewKlineCache(capacity int, symbol, interval string, intervalMS uint64) *KlineCache {
	validate := func(c types.Candle) error {
		if c.Symbol != symbol {
			return errs.New(errs.KindClient, "seqcache.KlineCache.Add",
				"candle symbol disagrees with the cache's symbol")
		}
		if c.Interval != intervalMS {
			return errs.New(errs.KindClient, "seqcache.KlineCache.Add",
				"candle interval disagrees with the cache's interval")
		}
		return nil
	}
	return NewStepped[types.Candle](capacity, intervalMS, validate)
}

// TradeCache is a bounded sequence cache of trades for one symbol, keyed
// by exchange-assigned sequence id.
type TradeCache = Cache[types.Trade]

// NewTradeCache creates a trade cache with the given capacity.
func NewTradeCache(capacity int) *TradeCache {
	return New[types.Trade](capacity)
}
