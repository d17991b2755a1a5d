package store

import (
	"context"
	"database/sql"
	"fmt"

	"marketcore/pkg/types"
)

// UpsertTrade writes a public trade. Trades are immutable once assigned a
// seq_id, so this is a plain insert-or-ignore rather than a newer-wins
// update.
func (s *Store) UpsertTrade(ctx context.Context, marketType types.MarketType, t types.Trade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trade (market_type, symbol, seq_id, trade_id, price, quantity, is_buyer_maker, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (market_type, symbol, seq_id) DO NOTHING`,
		string(marketType), t.Symbol, t.SeqID, t.TradeID, t.Price.String(), t.Quantity.String(),
		t.IsBuyerMaker, t.Timestamp)
	if err != nil {
		return fmt.Errorf("store: upsert trade: %w", err)
	}
	return nil
}

// UpsertUserTrade writes a private fill, keyed by its exchange trade id.
func (s *Store) UpsertUserTrade(ctx context.Context, marketType types.MarketType, t types.UserTrade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_trades (market_type, symbol, trade_id, order_id, price, quantity,
			commission, commission_asset, is_maker, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (market_type, trade_id) DO NOTHING`,
		string(marketType), t.Symbol, t.TradeID, t.OrderID, t.Price.String(), t.Quantity.String(),
		t.Commission.String(), t.CommissionAsset, t.IsMaker, t.Timestamp)
	if err != nil {
		return fmt.Errorf("store: upsert user trade: %w", err)
	}
	return nil
}

// GetUserTrades returns up to limit user trades for (marketType, symbol),
// ordered ascending from startTime if given, otherwise descending.
func (s *Store) GetUserTrades(ctx context.Context, marketType types.MarketType, symbol string, startTime uint64, limit int) ([]types.UserTrade, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if startTime > 0 {
		rows, err = s.db.QueryContext(ctx, `
			SELECT symbol, trade_id, order_id, price, quantity, commission, commission_asset, is_maker, ts
			FROM user_trades WHERE market_type = ? AND symbol = ? AND ts >= ?
			ORDER BY ts ASC LIMIT ?`, string(marketType), symbol, startTime, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT symbol, trade_id, order_id, price, quantity, commission, commission_asset, is_maker, ts
			FROM user_trades WHERE market_type = ? AND symbol = ?
			ORDER BY ts DESC LIMIT ?`, string(marketType), symbol, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get user trades: %w", err)
	}
	defer rows.Close()

	var out []types.UserTrade
	for rows.Next() {
		var (
			t                          types.UserTrade
			price, qty, commission     string
		)
		if err := rows.Scan(&t.Symbol, &t.TradeID, &t.OrderID, &price, &qty, &commission,
			&t.CommissionAsset, &t.IsMaker, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("store: scan user trade: %w", err)
		}
		t.MarketType = marketType
		t.Price = mustDecimal(price)
		t.Quantity = mustDecimal(qty)
		t.Commission = mustDecimal(commission)
		out = append(out, t)
	}
	return out, rows.Err()
}
