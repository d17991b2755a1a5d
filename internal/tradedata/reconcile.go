package tradedata

import (
	"context"
	"time"

	"marketcore/internal/tradeprovider"
	"marketcore/pkg/types"
)

// Run starts the periodic reconciliation loop. Blocks until ctx is
// cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reconcileAll(ctx)
		}
	}
}

func (m *Manager) reconcileAll(ctx context.Context) {
	m.providers.Range(func(marketType types.MarketType, _ *tradeprovider.Provider) bool {
		if err := m.reconcileOne(ctx, marketType); err != nil {
			m.logger.Warn("reconciliation cycle aborted", "market_type", marketType, "error", err)
		}
		return true
	})
}

const batchSize = 1000

// reconcileOne runs one reconciliation cycle for marketType per §4.8:
// refresh account+open orders, determine a bounded sync window, page
// through order and user-trade history for every observed symbol, then
// advance the watermark. Any failing step aborts the cycle without
// advancing last_sync_ts, so the next cycle retries the same window.
func (m *Manager) reconcileOne(ctx context.Context, marketType types.MarketType) error {
	p, ok := m.providers.Load(marketType)
	if !ok {
		return unknownMarketErr(marketType)
	}
	rest, ok := m.rest.Load(marketType)
	if !ok {
		return unknownMarketErr(marketType)
	}

	account, err := rest.Account(ctx)
	if err != nil {
		return err
	}
	p.MergeAccount(account)
	m.applyAccount(ctx, marketType, account)

	symbols := m.symbolsFor(marketType)
	for _, symbol := range symbols {
		openOrders, err := rest.OpenOrders(ctx, symbol)
		if err != nil {
			return err
		}
		for _, o := range openOrders {
			if !o.Status.IsTerminal() {
				m.applyOrder(ctx, marketType, o)
			}
		}
	}

	now := time.Now()
	windowEnd := uint64(now.Add(-syncWindowEnd).UnixMilli())

	lastSync, hasWatermark, err := m.store.LastSyncTS(ctx, marketType)
	if err != nil {
		return err
	}
	windowStart := windowEnd - uint64(maxCatchUp.Milliseconds())
	if hasWatermark && lastSync > windowStart {
		windowStart = lastSync
	}

	for _, symbol := range symbols {
		if err := m.backfillOrders(ctx, rest, marketType, symbol, windowStart, windowEnd); err != nil {
			return err
		}
		if err := m.backfillUserTrades(ctx, rest, marketType, symbol, windowStart, windowEnd); err != nil {
			return err
		}
	}

	return m.store.SetLastSyncTS(ctx, marketType, windowEnd)
}

func (m *Manager) symbolsFor(marketType types.MarketType) []string {
	set, ok := m.symbols.Load(marketType)
	if !ok {
		return nil
	}
	out := make([]string, 0, set.Len())
	set.Range(func(s string, _ struct{}) bool {
		out = append(out, s)
		return true
	})
	return out
}

func (m *Manager) backfillOrders(ctx context.Context, rest tradeprovider.RESTCollaborator, marketType types.MarketType, symbol string, start, end uint64) error {
	cursor := start
	for {
		batch, err := rest.AllOrders(ctx, symbol, cursor, batchSize)
		if err != nil {
			return err
		}
		for _, o := range batch {
			if o.UpdateTime > end {
				return nil
			}
			m.applyOrder(ctx, marketType, o)
		}
		if len(batch) < batchSize {
			return nil
		}
		cursor = batch[len(batch)-1].UpdateTime + 1
	}
}

func (m *Manager) backfillUserTrades(ctx context.Context, rest tradeprovider.RESTCollaborator, marketType types.MarketType, symbol string, start, end uint64) error {
	cursor := start
	for {
		batch, err := rest.UserTradesSince(ctx, symbol, cursor, batchSize)
		if err != nil {
			return err
		}
		for _, t := range batch {
			if t.Timestamp > end {
				return nil
			}
			m.applyUserTrade(ctx, marketType, t)
		}
		if len(batch) < batchSize {
			return nil
		}
		cursor = batch[len(batch)-1].Timestamp + 1
	}
}
