// Package marketdata implements the multi-exchange market-data manager
// (C7): an in-memory-only aggregation layer over one marketprovider.Provider
// per (exchange, market type), with a periodic gap detector that logs
// symbols whose last update is stale. The detector only reads the
// provider's current book; it does not re-fetch anything from REST. The
// teacher never needed this layer (a single-venue bot), so it is grounded
// on the shape of internal/market/scanner.go's Scanner.Run(ctx) — an
// immediate first pass, then a time.Ticker + select loop — repurposed
// from "rank markets by opportunity" to "detect per-symbol staleness".
package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"marketcore/internal/errs"
	"marketcore/internal/marketprovider"
	"marketcore/internal/shardmap"
	"marketcore/pkg/types"
)

const gapDetectInterval = 10 * time.Second

// Manager aggregates market-data providers across exchanges and market
// types, and watches for symbols that have gone quiet.
type Manager struct {
	providers *shardmap.Map[types.MarketType, *marketprovider.Provider]
	lastSeen  *shardmap.Map[seenKey, time.Time]
	threshold time.Duration
	logger    *slog.Logger
}

type seenKey struct {
	marketType types.MarketType
	symbol     string
}

// New creates an empty Manager. staleThreshold is how long a symbol may
// go without a trade or depth update before it is considered stale.
func New(staleThreshold time.Duration, logger *slog.Logger) *Manager {
	if staleThreshold <= 0 {
		staleThreshold = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		providers: shardmap.New[types.MarketType, *marketprovider.Provider](),
		lastSeen:  shardmap.New[seenKey, time.Time](),
		threshold: staleThreshold,
		logger:    logger.With("component", "marketdata.Manager"),
	}
}

// Register attaches a provider for marketType and starts tracking its
// trade and depth events for staleness detection.
func (m *Manager) Register(marketType types.MarketType, p *marketprovider.Provider) {
	m.providers.Store(marketType, p)

	tradeCh, _ := p.SubscribeTrades()
	depthCh, _ := p.SubscribeDepth()
	go func() {
		for evt := range tradeCh {
			m.lastSeen.Store(seenKey{marketType, evt.Trade.Symbol}, time.Now())
		}
	}()
	go func() {
		for evt := range depthCh {
			m.lastSeen.Store(seenKey{marketType, evt.Snapshot.Symbol}, time.Now())
		}
	}()
}

// Provider returns the registered provider for marketType, if any.
func (m *Manager) Provider(marketType types.MarketType) (*marketprovider.Provider, bool) {
	return m.providers.Load(marketType)
}

// Run starts the staleness-detection loop. Blocks until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	m.detectStale()

	ticker := time.NewTicker(gapDetectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.detectStale()
		}
	}
}

func (m *Manager) detectStale() {
	now := time.Now()
	m.lastSeen.Range(func(key seenKey, last time.Time) bool {
		if now.Sub(last) <= m.threshold {
			return true
		}
		p, ok := m.providers.Load(key.marketType)
		if !ok {
			return true
		}
		m.logger.Warn("symbol stale, no update within threshold",
			"market_type", key.marketType, "symbol", key.symbol, "age", now.Sub(last))
		if _, err := p.Depth(key.symbol); err != nil {
			m.logger.Debug("stale symbol has no tracked book yet", "symbol", key.symbol)
		}
		return true
	})
}

// Klines returns recent candles for (marketType, symbol, interval),
// delegating to that market's provider.
func (m *Manager) Klines(ctx context.Context, marketType types.MarketType, symbol, interval string, limit int) ([]*types.Candle, error) {
	p, ok := m.providers.Load(marketType)
	if !ok {
		return nil, errUnknownMarket(marketType)
	}
	return p.Klines(ctx, symbol, interval, limit)
}

// Trades returns recent trades for (marketType, symbol), delegating to
// that market's provider.
func (m *Manager) Trades(marketType types.MarketType, symbol string, limit int) ([]*types.Trade, error) {
	p, ok := m.providers.Load(marketType)
	if !ok {
		return nil, errUnknownMarket(marketType)
	}
	return p.Trades(symbol, limit), nil
}

// Depth returns the current order book for (marketType, symbol).
func (m *Manager) Depth(marketType types.MarketType, symbol string) (types.DepthSnapshot, error) {
	p, ok := m.providers.Load(marketType)
	if !ok {
		return types.DepthSnapshot{}, errUnknownMarket(marketType)
	}
	return p.Depth(symbol)
}

func errUnknownMarket(marketType types.MarketType) error {
	return errs.New(errs.KindClient, "marketdata", fmt.Sprintf("no provider registered for market type %q", marketType))
}
