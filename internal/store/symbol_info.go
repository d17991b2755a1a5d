package store

import (
	"context"
	"fmt"

	"marketcore/pkg/types"
)

// UpsertSymbolInfo writes exchange trading filters for one symbol.
func (s *Store) UpsertSymbolInfo(ctx context.Context, marketType types.MarketType, info types.ExchangeInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO symbol_info (market_type, symbol, tick_size, step_size, min_notional,
			min_qty, quote_asset, base_asset, is_trading)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (market_type, symbol) DO UPDATE SET
			tick_size = excluded.tick_size,
			step_size = excluded.step_size,
			min_notional = excluded.min_notional,
			min_qty = excluded.min_qty,
			quote_asset = excluded.quote_asset,
			base_asset = excluded.base_asset,
			is_trading = excluded.is_trading`,
		string(marketType), info.Symbol, info.TickSize.String(), info.StepSize.String(),
		info.MinNotional.String(), info.MinQty.String(), info.QuoteAsset, info.BaseAsset, info.IsTradingOpen)
	if err != nil {
		return fmt.Errorf("store: upsert symbol info: %w", err)
	}
	return nil
}
