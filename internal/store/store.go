// Package store implements the persistent relational collaborator (C9):
// an embedded, file-backed SQL database holding symbol metadata, kline
// and trade history, orders, user trades, account balances, and the
// per-market reconciliation watermark. It replaces the teacher's
// internal/store/store.go (a single JSON file written atomically per
// market) with a real relational collaborator, grounded on
// NimbleMarkets-dbn-go's use of github.com/duckdb/duckdb-go/v2 as a
// database/sql driver for an embedded, SQL-speaking engine.
//
// Every numeric column that represents a price or quantity is stored as
// TEXT so decimal.Decimal values round-trip without floating point
// rounding. Order and account-balance upserts use
// "INSERT ... ON CONFLICT (...) DO UPDATE ... WHERE excluded.<ts> >= target.<ts>"
// so newer-wins merge survives out-of-order delivery even at the storage
// layer, not just in the in-memory caches. Klines and symbol info are
// overwritten unconditionally; trades and user trades are insert-or-ignore.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"
)

// Store wraps a database/sql handle to the embedded database file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %q: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Exec runs a non-query statement and returns the number of affected rows.
func (s *Store) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("store: exec: %w", err)
	}
	return res.RowsAffected()
}

// Query runs a query and returns the resulting rows. Callers must close
// the returned *sql.Rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	return rows, nil
}

// WithTransaction runs fn inside a transaction, committing if fn returns
// nil and rolling back otherwise.
func (s *Store) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS symbol_info (
			market_type   TEXT NOT NULL,
			symbol        TEXT NOT NULL,
			tick_size     TEXT NOT NULL,
			step_size     TEXT NOT NULL,
			min_notional  TEXT NOT NULL,
			min_qty       TEXT NOT NULL,
			quote_asset   TEXT NOT NULL,
			base_asset    TEXT NOT NULL,
			is_trading    BOOLEAN NOT NULL,
			PRIMARY KEY (market_type, symbol)
		)`,
		`CREATE TABLE IF NOT EXISTS kline (
			market_type TEXT NOT NULL,
			symbol      TEXT NOT NULL,
			interval_ms BIGINT NOT NULL,
			open_time   BIGINT NOT NULL,
			close_time  BIGINT NOT NULL,
			open        TEXT NOT NULL,
			high        TEXT NOT NULL,
			low         TEXT NOT NULL,
			close       TEXT NOT NULL,
			volume      TEXT NOT NULL,
			quote_volume TEXT NOT NULL,
			PRIMARY KEY (market_type, symbol, interval_ms, open_time)
		)`,
		`CREATE TABLE IF NOT EXISTS trade (
			market_type    TEXT NOT NULL,
			symbol         TEXT NOT NULL,
			seq_id         BIGINT NOT NULL,
			trade_id       TEXT NOT NULL,
			price          TEXT NOT NULL,
			quantity       TEXT NOT NULL,
			is_buyer_maker BOOLEAN NOT NULL,
			ts             BIGINT NOT NULL,
			PRIMARY KEY (market_type, symbol, seq_id)
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			market_type     TEXT NOT NULL,
			symbol          TEXT NOT NULL,
			order_id        TEXT NOT NULL,
			client_order_id TEXT NOT NULL,
			side            TEXT NOT NULL,
			order_type      TEXT NOT NULL,
			price           TEXT NOT NULL,
			orig_quantity   TEXT NOT NULL,
			executed_qty    TEXT NOT NULL,
			status          TEXT NOT NULL,
			create_time     BIGINT NOT NULL,
			update_time     BIGINT NOT NULL,
			PRIMARY KEY (market_type, order_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_symbol_update
			ON orders (market_type, symbol, update_time DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status_update
			ON orders (market_type, status, update_time DESC)`,
		`CREATE TABLE IF NOT EXISTS user_trades (
			market_type      TEXT NOT NULL,
			symbol           TEXT NOT NULL,
			trade_id         TEXT NOT NULL,
			order_id         TEXT NOT NULL,
			price            TEXT NOT NULL,
			quantity         TEXT NOT NULL,
			commission       TEXT NOT NULL,
			commission_asset TEXT NOT NULL,
			is_maker         BOOLEAN NOT NULL,
			ts               BIGINT NOT NULL,
			PRIMARY KEY (market_type, trade_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_trades_symbol_ts
			ON user_trades (market_type, symbol, ts DESC)`,
		`CREATE TABLE IF NOT EXISTS account_balance (
			market_type TEXT NOT NULL,
			asset       TEXT NOT NULL,
			free        TEXT NOT NULL,
			locked      TEXT NOT NULL,
			ts          BIGINT NOT NULL,
			PRIMARY KEY (market_type, asset)
		)`,
		`CREATE TABLE IF NOT EXISTS api_sync_ts (
			market_type  TEXT NOT NULL PRIMARY KEY,
			last_sync_ts BIGINT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec migration statement: %w", err)
		}
	}
	return nil
}
