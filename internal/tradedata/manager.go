// Package tradedata implements the multi-exchange trade-data manager
// (C8): durable account, order and user-trade state backed by the
// persistent store (C9), kept current by the private event streams and
// periodically reconciled against REST to recover from any gap an outage
// left behind. The reconciliation task's ticker-driven "gather state,
// compare to a threshold, act" shape is grounded on the teacher's
// internal/risk/manager.go monitor loop, repurposed from comparing PnL
// against a kill-switch threshold to comparing now-last_sync_ts against
// the 24h catch-up cap. place_order's optimistic pre-insert is grounded
// on the teacher's internal/engine.startMarketLocked pattern of writing
// local state before the network round-trip completes.
package tradedata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"marketcore/internal/errs"
	"marketcore/internal/shardmap"
	"marketcore/internal/store"
	"marketcore/internal/tradeprovider"
	"marketcore/pkg/types"
)

// syncWindowEnd is how far back from "now" a reconciliation cycle's sync
// window ends, giving in-flight writes near the boundary time to land
// before the watermark advances past them.
const syncWindowEnd = 5 * time.Second

// maxCatchUp bounds how far back a reconciliation cycle will page
// through history after a long outage.
const maxCatchUp = 24 * time.Hour

type orderKey struct {
	marketType    types.MarketType
	clientOrderID string
}

// Manager aggregates trade-data providers across exchanges, persists
// every event, and periodically reconciles against REST.
type Manager struct {
	store      *store.Store
	providers  *shardmap.Map[types.MarketType, *tradeprovider.Provider]
	rest       *shardmap.Map[types.MarketType, tradeprovider.RESTCollaborator]
	openOrders *shardmap.Map[orderKey, types.Order]
	symbols    *shardmap.Map[types.MarketType, *shardmap.Map[string, struct{}]]

	refreshInterval time.Duration
	logger          *slog.Logger
}

// New creates a Manager backed by st.
func New(st *store.Store, refreshInterval time.Duration, logger *slog.Logger) *Manager {
	if refreshInterval <= 0 {
		refreshInterval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:           st,
		providers:       shardmap.New[types.MarketType, *tradeprovider.Provider](),
		rest:            shardmap.New[types.MarketType, tradeprovider.RESTCollaborator](),
		openOrders:      shardmap.New[orderKey, types.Order](),
		symbols:         shardmap.New[types.MarketType, *shardmap.Map[string, struct{}]](),
		refreshInterval: refreshInterval,
		logger:          logger.With("component", "tradedata.Manager"),
	}
}

// Register attaches a provider for marketType: it seeds caches and the
// store from REST, subscribes to the provider's live streams, and begins
// tracking symbols as they're observed. rest is the same REST
// collaborator backing p, kept separately so the reconciliation loop can
// call its paginated history endpoints directly.
func (m *Manager) Register(ctx context.Context, marketType types.MarketType, p *tradeprovider.Provider, rest tradeprovider.RESTCollaborator) error {
	m.providers.Store(marketType, p)
	m.rest.Store(marketType, rest)

	account, err := p.Account(ctx)
	if err == nil {
		m.applyAccount(ctx, marketType, account)
	} else {
		m.logger.Warn("initial account fetch failed", "market_type", marketType, "error", err)
	}

	orderCh, _ := p.SubscribeOrders()
	tradeCh, _ := p.SubscribeUserTrades()
	accountCh, _ := p.SubscribeAccount()

	go func() {
		for evt := range orderCh {
			m.applyOrder(context.Background(), marketType, evt.Order)
		}
	}()
	go func() {
		for evt := range tradeCh {
			m.applyUserTrade(context.Background(), marketType, evt.Trade)
		}
	}()
	go func() {
		for evt := range accountCh {
			m.applyAccount(context.Background(), marketType, evt.Account)
		}
	}()

	return nil
}

func (m *Manager) trackSymbol(marketType types.MarketType, symbol string) {
	set := m.symbols.LoadOrStore(marketType, func() *shardmap.Map[string, struct{}] {
		return shardmap.New[string, struct{}]()
	})
	set.Store(symbol, struct{}{})
}

func (m *Manager) applyOrder(ctx context.Context, marketType types.MarketType, o types.Order) {
	m.trackSymbol(marketType, o.Symbol)
	if err := m.store.UpsertOrder(ctx, marketType, o); err != nil {
		m.logger.Error("persist order failed", "order_id", o.OrderID, "error", err)
		return
	}
	key := orderKey{marketType, o.ClientOrderID}
	if o.Status.IsTerminal() {
		m.openOrders.Delete(key)
		return
	}
	m.openOrders.Store(key, o)
}

func (m *Manager) applyUserTrade(ctx context.Context, marketType types.MarketType, t types.UserTrade) {
	m.trackSymbol(marketType, t.Symbol)
	if err := m.store.UpsertUserTrade(ctx, marketType, t); err != nil {
		m.logger.Error("persist user trade failed", "trade_id", t.TradeID, "error", err)
	}
}

func (m *Manager) applyAccount(ctx context.Context, marketType types.MarketType, account types.Account) {
	if err := m.store.UpsertAccount(ctx, account); err != nil {
		m.logger.Error("persist account failed", "market_type", marketType, "error", err)
	}
}

// PlaceOrder pre-inserts the order as New into both the open-order cache
// and the store before forwarding it to the provider, so a caller that
// immediately queries OpenOrders sees it even before the venue confirms.
// Final truth still arrives asynchronously via the push stream.
func (m *Manager) PlaceOrder(ctx context.Context, marketType types.MarketType, order types.Order) (types.Order, error) {
	p, ok := m.providers.Load(marketType)
	if !ok {
		return types.Order{}, unknownMarketErr(marketType)
	}

	order.Status = types.OrderStatusNew
	m.applyOrder(ctx, marketType, order)

	placed, err := p.PlaceOrder(ctx, order)
	if err != nil {
		return types.Order{}, err
	}
	m.applyOrder(ctx, marketType, placed)
	return placed, nil
}

// GetAccount prefers the provider's account snapshot (the provider
// fetches it from REST if it holds none yet) and falls back to the store
// when that fails.
func (m *Manager) GetAccount(ctx context.Context, marketType types.MarketType) (types.Account, error) {
	if p, ok := m.providers.Load(marketType); ok {
		if account, err := p.Account(ctx); err == nil {
			return account, nil
		}
	}
	account, ok, err := m.store.GetAccount(ctx, marketType)
	if err != nil {
		return types.Account{}, err
	}
	if !ok {
		return types.Account{}, unknownMarketErr(marketType)
	}
	return account, nil
}

// GetOpenOrders returns the cached open orders for marketType.
func (m *Manager) GetOpenOrders(marketType types.MarketType) []types.Order {
	var out []types.Order
	m.openOrders.Range(func(k orderKey, o types.Order) bool {
		if k.marketType == marketType {
			out = append(out, o)
		}
		return true
	})
	return out
}

// GetOrders is a range read that goes straight to the store.
func (m *Manager) GetOrders(ctx context.Context, marketType types.MarketType, symbol string, startTime uint64, limit int) ([]types.Order, error) {
	return m.store.GetOrders(ctx, marketType, symbol, startTime, limit)
}

// GetUserTrades is a range read that goes straight to the store.
func (m *Manager) GetUserTrades(ctx context.Context, marketType types.MarketType, symbol string, startTime uint64, limit int) ([]types.UserTrade, error) {
	return m.store.GetUserTrades(ctx, marketType, symbol, startTime, limit)
}

func unknownMarketErr(marketType types.MarketType) error {
	return errs.New(errs.KindClient, "tradedata", fmt.Sprintf("no provider registered for market type %q", marketType))
}
