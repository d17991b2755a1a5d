package store

import (
	"context"
	"fmt"

	"marketcore/pkg/types"
)

// UpsertKline writes a candle, overwriting any stored row for the same
// open time unconditionally: an in-progress candle's running OHLCV
// legitimately gets rewritten tick by tick. No newer-wins check is made,
// so the last write for an open time is what stays stored.
func (s *Store) UpsertKline(ctx context.Context, marketType types.MarketType, c types.Candle) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kline (market_type, symbol, interval_ms, open_time, close_time,
			open, high, low, close, volume, quote_volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (market_type, symbol, interval_ms, open_time) DO UPDATE SET
			close_time = excluded.close_time,
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume,
			quote_volume = excluded.quote_volume`,
		string(marketType), c.Symbol, c.Interval, c.OpenTime, c.CloseTime,
		c.Open.String(), c.High.String(), c.Low.String(), c.Close.String(),
		c.Volume.String(), c.QuoteVolume.String())
	if err != nil {
		return fmt.Errorf("store: upsert kline: %w", err)
	}
	return nil
}

// GetKlines returns up to limit candles for (marketType, symbol,
// interval) ending at the most recent open time, in ascending order.
func (s *Store) GetKlines(ctx context.Context, marketType types.MarketType, symbol string, intervalMS uint64, limit int) ([]types.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT open_time, close_time, open, high, low, close, volume, quote_volume
		FROM (
			SELECT * FROM kline
			WHERE market_type = ? AND symbol = ? AND interval_ms = ?
			ORDER BY open_time DESC LIMIT ?
		) ORDER BY open_time ASC`,
		string(marketType), symbol, intervalMS, limit)
	if err != nil {
		return nil, fmt.Errorf("store: get klines: %w", err)
	}
	defer rows.Close()

	var out []types.Candle
	for rows.Next() {
		var (
			c                                        types.Candle
			open, high, low, close, volume, quoteVol string
		)
		if err := rows.Scan(&c.OpenTime, &c.CloseTime, &open, &high, &low, &close, &volume, &quoteVol); err != nil {
			return nil, fmt.Errorf("store: scan kline: %w", err)
		}
		c.Symbol = symbol
		c.Interval = intervalMS
		c.Open = mustDecimal(open)
		c.High = mustDecimal(high)
		c.Low = mustDecimal(low)
		c.Close = mustDecimal(close)
		c.Volume = mustDecimal(volume)
		c.QuoteVolume = mustDecimal(quoteVol)
		out = append(out, c)
	}
	return out, rows.Err()
}
