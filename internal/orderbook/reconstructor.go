// Package orderbook implements the order-book reconstructor (C4): it
// merges a REST depth snapshot with a stream of WebSocket deltas into a
// continuously maintained, sequence-correct view of one symbol's book. It
// generalizes the teacher's book.go (internal/market/book.go), a single
// RWMutex-guarded book mirror with no gap detection, into a state machine
// that detects sequence gaps and resyncs instead of silently drifting.
package orderbook

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"marketcore/pkg/types"
)

// State is the reconstructor's lifecycle state.
type State int

const (
	// StateEmpty has received no snapshot yet; deltas are buffered.
	StateEmpty State = iota
	// StateSyncing has a snapshot but is still discarding deltas that
	// precede it.
	StateSyncing
	// StateReady is merging deltas into a published, sequence-correct book.
	StateReady
)

// SnapshotFetcher fetches a fresh REST depth snapshot, used both for the
// initial sync and for gap-triggered resync.
type SnapshotFetcher func(ctx context.Context) (types.DepthSnapshot, error)

// Reconstructor maintains one symbol's order book from a snapshot plus a
// delta stream, per the standard "buffer deltas, fetch snapshot, discard
// deltas before it, apply the rest in order" algorithm.
type Reconstructor struct {
	symbol  string
	fetch   SnapshotFetcher
	onGap   func(reason string)

	mu      sync.RWMutex
	state   State
	bids    map[string]decimal.Decimal // price string -> quantity
	asks    map[string]decimal.Decimal
	lastID  uint64
	buffer  []types.DepthDelta
}

// New creates a Reconstructor for symbol. onGap, if non-nil, is called
// whenever a sequence gap forces a resync (used for metrics/logging).
func New(symbol string, fetch SnapshotFetcher, onGap func(reason string)) *Reconstructor {
	return &Reconstructor{
		symbol: symbol,
		fetch:  fetch,
		onGap:  onGap,
		state:  StateEmpty,
		bids:   make(map[string]decimal.Decimal),
		asks:   make(map[string]decimal.Decimal),
	}
}

// Start fetches the initial snapshot and transitions to StateSyncing so
// subsequent ApplyDelta calls can begin merging. Any deltas received
// before Start completes are buffered by ApplyDelta and replayed here.
func (r *Reconstructor) Start(ctx context.Context) error {
	snap, err := r.fetch(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.applySnapshotLocked(snap)
	buffered := r.buffer
	r.buffer = nil
	r.state = StateSyncing
	r.mu.Unlock()

	for _, d := range buffered {
		r.ApplyDelta(ctx, d)
	}
	return nil
}

func (r *Reconstructor) applySnapshotLocked(snap types.DepthSnapshot) {
	r.bids = make(map[string]decimal.Decimal, len(snap.Bids))
	r.asks = make(map[string]decimal.Decimal, len(snap.Asks))
	for _, lvl := range snap.Bids {
		r.bids[lvl.Price.String()] = lvl.Quantity
	}
	for _, lvl := range snap.Asks {
		r.asks[lvl.Price.String()] = lvl.Quantity
	}
	r.lastID = snap.LastUpdateID
}

// ApplyDelta merges one delta into the book. Behavior depends on state:
//
//   - StateEmpty: the delta is buffered until Start runs.
//   - StateSyncing: deltas whose LastUpdateID <= the snapshot's
//     LastUpdateID are discarded; the first delta that straddles or
//     follows it transitions to StateReady.
//   - StateReady: a delta with FirstUpdateID <= lastID+1 and
//     LastUpdateID > lastID is merged; one with LastUpdateID <= lastID is
//     stale and discarded. A gap (FirstUpdateID > lastID+1) triggers a
//     synchronous resync, after which the delta is applied again against
//     the fresh snapshot (see triggerResync).
func (r *Reconstructor) ApplyDelta(ctx context.Context, d types.DepthDelta) {
	r.mu.Lock()

	switch r.state {
	case StateEmpty:
		r.buffer = append(r.buffer, d)
		r.mu.Unlock()
		return

	case StateSyncing:
		if d.LastUpdateID <= r.lastID {
			r.mu.Unlock()
			return
		}
		r.mergeLocked(d)
		r.state = StateReady
		r.mu.Unlock()
		return

	case StateReady:
		if d.FirstUpdateID > r.lastID+1 {
			r.mu.Unlock()
			r.triggerResync(ctx, "sequence gap detected", d)
			return
		}
		if d.LastUpdateID <= r.lastID {
			r.mu.Unlock()
			return // stale, already applied
		}
		r.mergeLocked(d)
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
}

func (r *Reconstructor) mergeLocked(d types.DepthDelta) {
	for _, lvl := range d.Bids {
		applyLevelLocked(r.bids, lvl)
	}
	for _, lvl := range d.Asks {
		applyLevelLocked(r.asks, lvl)
	}
	r.lastID = d.LastUpdateID
}

func applyLevelLocked(side map[string]decimal.Decimal, lvl types.PriceLevel) {
	key := lvl.Price.String()
	if lvl.Quantity.IsZero() {
		delete(side, key)
		return
	}
	side[key] = lvl.Quantity
}

// triggerResync fetches a fresh snapshot and re-anchors the book,
// discarding whatever state existed under the gap, then applies the
// delta that triggered the resync: it will usually self-discard as
// stale against the new, newer snapshot, but if the resync snapshot is
// older than d (a slow REST response racing a fast stream), d still
// gets folded in instead of silently lost. It runs synchronously
// relative to the caller but holds no lock across the network call.
func (r *Reconstructor) triggerResync(ctx context.Context, reason string, d types.DepthDelta) {
	if r.onGap != nil {
		r.onGap(reason)
	}
	snap, err := r.fetch(ctx)
	if err != nil {
		return
	}
	r.mu.Lock()
	r.applySnapshotLocked(snap)
	r.state = StateReady
	r.mu.Unlock()

	r.ApplyDelta(ctx, d)
}

// Snapshot returns the current sorted book view: bids descending by
// price, asks ascending by price.
func (r *Reconstructor) Snapshot() types.DepthSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bids := sortedLevels(r.bids, true)
	asks := sortedLevels(r.asks, false)

	return types.DepthSnapshot{
		Symbol:       r.symbol,
		LastUpdateID: r.lastID,
		Bids:         bids,
		Asks:         asks,
	}
}

// State reports the current lifecycle state.
func (r *Reconstructor) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func sortedLevels(side map[string]decimal.Decimal, descending bool) []types.PriceLevel {
	out := make([]types.PriceLevel, 0, len(side))
	for priceStr, qty := range side {
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			continue
		}
		out = append(out, types.PriceLevel{Price: price, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}
