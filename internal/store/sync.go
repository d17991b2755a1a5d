package store

import (
	"context"
	"database/sql"
	"fmt"

	"marketcore/pkg/types"
)

// LastSyncTS returns the reconciliation watermark for marketType, and
// false if none has ever been recorded.
func (s *Store) LastSyncTS(ctx context.Context, marketType types.MarketType) (uint64, bool, error) {
	var ts uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT last_sync_ts FROM api_sync_ts WHERE market_type = ?`, string(marketType)).Scan(&ts)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: last sync ts: %w", err)
	}
	return ts, true, nil
}

// SetLastSyncTS atomically advances the reconciliation watermark.
func (s *Store) SetLastSyncTS(ctx context.Context, marketType types.MarketType, ts uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_sync_ts (market_type, last_sync_ts) VALUES (?, ?)
		ON CONFLICT (market_type) DO UPDATE SET last_sync_ts = excluded.last_sync_ts`,
		string(marketType), ts)
	if err != nil {
		return fmt.Errorf("store: set last sync ts: %w", err)
	}
	return nil
}
