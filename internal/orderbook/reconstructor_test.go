package orderbook

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"marketcore/pkg/types"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func lvl(price, qty string) types.PriceLevel {
	return types.PriceLevel{Price: dec(price), Quantity: dec(qty)}
}

func TestReconstructorFreshStartFromSnapshot(t *testing.T) {
	t.Parallel()
	fetch := func(ctx context.Context) (types.DepthSnapshot, error) {
		return types.DepthSnapshot{
			Symbol:       "BTCUSDT",
			LastUpdateID: 100,
			Bids:         []types.PriceLevel{lvl("100.00", "1"), lvl("99.50", "2")},
			Asks:         []types.PriceLevel{lvl("100.50", "1")},
		}, nil
	}
	r := New("BTCUSDT", fetch, nil)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	snap := r.Snapshot()
	if len(snap.Bids) != 2 || len(snap.Asks) != 1 {
		t.Fatalf("Snapshot() = %+v, want 2 bids 1 ask", snap)
	}
	if !snap.Bids[0].Price.Equal(dec("100.00")) {
		t.Errorf("top bid = %v, want 100.00 (descending order)", snap.Bids[0].Price)
	}
}

func TestReconstructorZeroQuantityRemovesLevel(t *testing.T) {
	t.Parallel()
	fetch := func(ctx context.Context) (types.DepthSnapshot, error) {
		return types.DepthSnapshot{
			Symbol:       "BTCUSDT",
			LastUpdateID: 10,
			Bids:         []types.PriceLevel{lvl("100.00", "1")},
		}, nil
	}
	r := New("BTCUSDT", fetch, nil)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	r.ApplyDelta(context.Background(), types.DepthDelta{
		FirstUpdateID: 11,
		LastUpdateID:  11,
		Bids:          []types.PriceLevel{lvl("100.00", "0")},
	})

	snap := r.Snapshot()
	if len(snap.Bids) != 0 {
		t.Errorf("Bids = %+v, want empty after zero-quantity delta", snap.Bids)
	}
}

func TestReconstructorGapTriggersExactlyOneResync(t *testing.T) {
	t.Parallel()
	calls := 0
	fetch := func(ctx context.Context) (types.DepthSnapshot, error) {
		calls++
		return types.DepthSnapshot{
			Symbol:       "BTCUSDT",
			LastUpdateID: uint64(10 * calls),
			Bids:         []types.PriceLevel{lvl("100.00", "1")},
		}, nil
	}
	gaps := 0
	r := New("BTCUSDT", fetch, func(reason string) { gaps++ })
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	// Prime into Ready via one in-order delta.
	r.ApplyDelta(context.Background(), types.DepthDelta{FirstUpdateID: 11, LastUpdateID: 11})
	if r.State() != StateReady {
		t.Fatalf("state = %v, want StateReady after first delta", r.State())
	}

	// Skip ahead: FirstUpdateID should be 12 but we send 20 -> gap.
	r.ApplyDelta(context.Background(), types.DepthDelta{FirstUpdateID: 20, LastUpdateID: 21})

	if gaps != 1 {
		t.Errorf("gap callback fired %d times, want 1", gaps)
	}
	if calls != 2 {
		t.Errorf("fetch called %d times, want 2 (initial + resync)", calls)
	}
	// The triggering delta (FirstUpdateID 20, LastUpdateID 21) must be
	// applied after the reseed, not dropped: the resync snapshot lands at
	// LastUpdateID 20, so the delta still qualifies and advances state.
	if got := r.Snapshot().LastUpdateID; got != 21 {
		t.Errorf("LastUpdateID after resync = %d, want 21 (triggering delta applied)", got)
	}
}

func TestReconstructorBuffersDeltasBeforeStart(t *testing.T) {
	t.Parallel()
	fetch := func(ctx context.Context) (types.DepthSnapshot, error) {
		return types.DepthSnapshot{LastUpdateID: 5}, nil
	}
	r := New("BTCUSDT", fetch, nil)

	// Delta arrives before Start: must be buffered, not dropped or panicked on.
	r.ApplyDelta(context.Background(), types.DepthDelta{FirstUpdateID: 6, LastUpdateID: 6,
		Bids: []types.PriceLevel{lvl("1.00", "1")}})

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	snap := r.Snapshot()
	if len(snap.Bids) != 1 {
		t.Errorf("Bids = %+v, want buffered delta applied after Start", snap.Bids)
	}
}

func TestReconstructorSequenceIsMonotoneNonDecreasing(t *testing.T) {
	t.Parallel()
	fetch := func(ctx context.Context) (types.DepthSnapshot, error) {
		return types.DepthSnapshot{LastUpdateID: 1}, nil
	}
	r := New("BTCUSDT", fetch, nil)
	r.Start(context.Background())

	prev := r.Snapshot().LastUpdateID
	for _, id := range []uint64{2, 3, 4, 5} {
		r.ApplyDelta(context.Background(), types.DepthDelta{FirstUpdateID: id, LastUpdateID: id})
		cur := r.Snapshot().LastUpdateID
		if cur < prev {
			t.Fatalf("LastUpdateID went backward: %d -> %d", prev, cur)
		}
		prev = cur
	}
}
