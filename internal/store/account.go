package store

import (
	"context"
	"database/sql"
	"fmt"

	"marketcore/pkg/types"
)

// UpsertAccount writes every balance in account inside one transaction,
// each guarded independently by the newer-wins WHERE clause so a
// partial, out-of-order delivery of one asset's balance can never
// clobber a newer one.
func (s *Store) UpsertAccount(ctx context.Context, account types.Account) error {
	return s.WithTransaction(ctx, func(tx *sql.Tx) error {
		for _, b := range account.Balances {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO account_balance (market_type, asset, free, locked, ts)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (market_type, asset) DO UPDATE SET
					free = excluded.free,
					locked = excluded.locked,
					ts = excluded.ts
				WHERE excluded.ts >= account_balance.ts`,
				string(account.MarketType), b.Asset, b.Free.String(), b.Locked.String(), account.Timestamp); err != nil {
				return fmt.Errorf("store: upsert balance %s: %w", b.Asset, err)
			}
		}
		return nil
	})
}

// GetAccount reads the stored account snapshot for marketType.
func (s *Store) GetAccount(ctx context.Context, marketType types.MarketType) (types.Account, bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT asset, free, locked, ts FROM account_balance WHERE market_type = ?`,
		string(marketType))
	if err != nil {
		return types.Account{}, false, fmt.Errorf("store: get account: %w", err)
	}
	defer rows.Close()

	var (
		account  types.Account
		maxTS    uint64
		hasAny   bool
	)
	account.MarketType = marketType
	for rows.Next() {
		var (
			b      types.Balance
			free   string
			locked string
			ts     uint64
		)
		if err := rows.Scan(&b.Asset, &free, &locked, &ts); err != nil {
			return types.Account{}, false, fmt.Errorf("store: scan balance: %w", err)
		}
		b.Free = mustDecimal(free)
		b.Locked = mustDecimal(locked)
		account.Balances = append(account.Balances, b)
		if ts > maxTS {
			maxTS = ts
		}
		hasAny = true
	}
	if err := rows.Err(); err != nil {
		return types.Account{}, false, err
	}
	account.Timestamp = maxTS
	return account, hasAny, nil
}
