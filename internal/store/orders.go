package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"marketcore/pkg/types"
)

// UpsertOrder writes order, keeping whichever row has the newer
// UpdateTime on conflict.
func (s *Store) UpsertOrder(ctx context.Context, marketType types.MarketType, o types.Order) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (market_type, symbol, order_id, client_order_id, side, order_type,
			price, orig_quantity, executed_qty, status, create_time, update_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (market_type, order_id) DO UPDATE SET
			symbol = excluded.symbol,
			client_order_id = excluded.client_order_id,
			side = excluded.side,
			order_type = excluded.order_type,
			price = excluded.price,
			orig_quantity = excluded.orig_quantity,
			executed_qty = excluded.executed_qty,
			status = excluded.status,
			create_time = excluded.create_time,
			update_time = excluded.update_time
		WHERE excluded.update_time >= orders.update_time`,
		string(marketType), o.Symbol, o.OrderID, o.ClientOrderID, string(o.Side), string(o.Type),
		o.Price.String(), o.OrigQuantity.String(), o.ExecutedQty.String(), string(o.Status),
		o.CreateTime, o.UpdateTime)
	if err != nil {
		return fmt.Errorf("store: upsert order: %w", err)
	}
	return nil
}

// GetOrderByID reads a single order by its exchange-assigned id.
func (s *Store) GetOrderByID(ctx context.Context, marketType types.MarketType, orderID string) (types.Order, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT symbol, order_id, client_order_id, side, order_type, price, orig_quantity,
			executed_qty, status, create_time, update_time
		FROM orders WHERE market_type = ? AND order_id = ?`, string(marketType), orderID)
	o, err := scanOrder(row.Scan, marketType)
	if err == sql.ErrNoRows {
		return types.Order{}, false, nil
	}
	if err != nil {
		return types.Order{}, false, fmt.Errorf("store: get order by id: %w", err)
	}
	return o, true, nil
}

// GetOrders returns up to limit orders for (marketType, symbol). When
// startTime > 0, results are ordered ascending from startTime (paging
// forward); otherwise they are ordered descending (cheap "latest N").
func (s *Store) GetOrders(ctx context.Context, marketType types.MarketType, symbol string, startTime uint64, limit int) ([]types.Order, error) {
	var query string
	if startTime > 0 {
		query = `SELECT symbol, order_id, client_order_id, side, order_type, price, orig_quantity,
			executed_qty, status, create_time, update_time
			FROM orders WHERE market_type = ? AND symbol = ? AND update_time >= ?
			ORDER BY update_time ASC LIMIT ?`
	} else {
		query = `SELECT symbol, order_id, client_order_id, side, order_type, price, orig_quantity,
			executed_qty, status, create_time, update_time
			FROM orders WHERE market_type = ? AND symbol = ?
			ORDER BY update_time DESC LIMIT ?`
	}

	var rows *sql.Rows
	var err error
	if startTime > 0 {
		rows, err = s.db.QueryContext(ctx, query, string(marketType), symbol, startTime, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query, string(marketType), symbol, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get orders: %w", err)
	}
	defer rows.Close()

	var out []types.Order
	for rows.Next() {
		o, err := scanOrder(rows.Scan, marketType)
		if err != nil {
			return nil, fmt.Errorf("store: scan order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrder(scan func(dest ...any) error, marketType types.MarketType) (types.Order, error) {
	var (
		o                               types.Order
		side, orderType, status         string
		price, origQty, executedQty     string
	)
	if err := scan(&o.Symbol, &o.OrderID, &o.ClientOrderID, &side, &orderType,
		&price, &origQty, &executedQty, &status, &o.CreateTime, &o.UpdateTime); err != nil {
		return types.Order{}, err
	}
	o.MarketType = marketType
	o.Side = types.Side(side)
	o.Type = types.OrderType(orderType)
	o.Status = types.OrderStatus(status)
	o.Price = mustDecimal(price)
	o.OrigQuantity = mustDecimal(origQty)
	o.ExecutedQty = mustDecimal(executedQty)
	return o, nil
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
