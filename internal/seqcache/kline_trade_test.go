package seqcache

import (
	"testing"

	"marketcore/pkg/types"
)

func candle(openTime, intervalMS uint64) types.Candle {
	return types.Candle{Symbol: "BTCUSDT", Interval: intervalMS, OpenTime: openTime, CloseTime: openTime + intervalMS}
}

// TestKlineCacheEvictsByCandleIndexNotRawKey covers S4: capacity 10,
// interval 60000ms, insert aligned candles k=1..10 (no evictions), then
// insert k=15. Exactly 5 entries (k=1..5) must be evicted, the cache
// must contain {k=6..10, k=15}, and slots k=11..14 must read as nil.
func TestKlineCacheEvictsByCandleIndexNotRawKey(t *testing.T) {
	t.Parallel()
	const interval = uint64(60_000)
	c := NewKlineCache(10, "BTCUSDT", "1m", interval)

	for k := uint64(1); k <= 10; k++ {
		if _, err := c.Add(candle(k*interval, interval)); err != nil {
			t.Fatalf("Add(k=%d) error: %v", k, err)
		}
	}
	if c.Len() != 10 {
		t.Fatalf("Len() = %d, want 10 after filling capacity", c.Len())
	}

	evicted, err := c.Add(candle(15*interval, interval))
	if err != nil {
		t.Fatalf("Add(k=15) error: %v", err)
	}
	if len(evicted) != 5 {
		t.Fatalf("len(evicted) = %d, want 5 (k=1..5)", len(evicted))
	}
	for k := uint64(1); k <= 5; k++ {
		if _, ok := c.Get(k * interval); ok {
			t.Errorf("Get(k=%d) found entry, want evicted", k)
		}
	}
	for k := uint64(6); k <= 10; k++ {
		if _, ok := c.Get(k * interval); !ok {
			t.Errorf("Get(k=%d) missing, want retained", k)
		}
	}
	if _, ok := c.Get(15 * interval); !ok {
		t.Error("Get(k=15) missing, want the just-inserted candle")
	}

	recent := c.Recent(10)
	if len(recent) != 10 {
		t.Fatalf("len(Recent(10)) = %d, want 10", len(recent))
	}
	// Right-aligned on k=15: position 9 is k=15, positions 5..8 are the
	// empty slots k=11..14, positions 0..4 are k=6..10.
	for i := 5; i <= 8; i++ {
		if recent[i] != nil {
			t.Errorf("recent[%d] = %v, want nil (slot k=%d never populated)", i, recent[i], 11+(i-5))
		}
	}
	if recent[9] == nil || recent[9].OpenTime != 15*interval {
		t.Errorf("recent[9] = %v, want k=15 candle", recent[9])
	}
	for i, k := 0, uint64(6); i < 5; i, k = i+1, k+1 {
		if recent[i] == nil || recent[i].OpenTime != k*interval {
			t.Errorf("recent[%d] = %v, want k=%d candle", i, recent[i], k)
		}
	}
}

func TestKlineCacheRejectsSymbolMismatch(t *testing.T) {
	t.Parallel()
	const interval = uint64(60_000)
	c := NewKlineCache(5, "BTCUSDT", "1m", interval)
	bad := candle(interval, interval)
	bad.Symbol = "ETHUSDT"
	if _, err := c.Add(bad); err == nil {
		t.Error("Add() error = nil, want a symbol-mismatch error")
	}
}

func TestKlineCacheRejectsIntervalMismatch(t *testing.T) {
	t.Parallel()
	const interval = uint64(60_000)
	c := NewKlineCache(5, "BTCUSDT", "1m", interval)
	if _, err := c.Add(candle(300_000, 300_000)); err == nil {
		t.Error("Add() error = nil, want an interval-mismatch error")
	}
}

func TestKlineCacheRejectsMisalignedOpenTime(t *testing.T) {
	t.Parallel()
	const interval = uint64(60_000)
	c := NewKlineCache(5, "BTCUSDT", "1m", interval)
	if _, err := c.Add(candle(interval+1, interval)); err == nil {
		t.Error("Add() error = nil, want a misalignment error")
	}
}
