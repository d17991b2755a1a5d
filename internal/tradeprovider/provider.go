// Package tradeprovider implements the private trade-data provider
// (C6): account balances, order lifecycle, and user fills for one
// (exchange, market type). It mirrors marketprovider's shape — WS client
// plus REST plus in-memory order and account state plus broadcast buses —
// but adds newer-wins merge semantics for Account and Order, grounded on
// the teacher's internal/strategy/inventory.go position bookkeeping (there
// keyed by fill timestamp; here generalized to any field's UpdateTime /
// Timestamp token), and an optimistic local write before REST order
// placement, grounded on the teacher's dry-run branch-before-network-call
// idiom in internal/exchange/client.go. Orders are placed and cancelled
// over REST only; there is no WS order-entry path.
package tradeprovider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"marketcore/internal/broadcast"
	"marketcore/internal/shardmap"
	"marketcore/internal/wsclient"
	"marketcore/pkg/types"
)

// RESTCollaborator is the subset of REST calls the provider needs from a
// venue's private trading endpoints.
type RESTCollaborator interface {
	PlaceOrder(ctx context.Context, order types.Order) (types.Order, error)
	CancelOrder(ctx context.Context, symbol, orderID string) (types.Order, error)
	OpenOrders(ctx context.Context, symbol string) ([]types.Order, error)
	Account(ctx context.Context) (types.Account, error)

	// AllOrders pages through every order (any status) for symbol with
	// update_time >= startTime, ascending, used by C8's reconciliation
	// back-fill.
	AllOrders(ctx context.Context, symbol string, startTime uint64, limit int) ([]types.Order, error)
	// UserTradesSince pages through private fills for symbol with
	// timestamp >= startTime, ascending.
	UserTradesSince(ctx context.Context, symbol string, startTime uint64, limit int) ([]types.UserTrade, error)
}

// Dispatcher parses raw WS frames from the private (user) stream and
// routes them into the provider's publish methods.
type Dispatcher interface {
	Dispatch(ctx context.Context, frame []byte)
	Resubscribe(ctx context.Context, client *wsclient.Client) error
}

// Provider is one exchange's private trading surface.
type Provider struct {
	marketType types.MarketType
	rest       RESTCollaborator
	ws         *wsclient.Client
	dispatcher Dispatcher
	logger     *slog.Logger

	orders *shardmap.Map[string, types.Order] // keyed by OrderID

	accountMu sync.RWMutex
	account   types.Account

	orderBus     *broadcast.Bus[types.OrderEvent]
	userTradeBus *broadcast.Bus[types.UserTradeEvent]
	accountBus   *broadcast.Bus[types.AccountEvent]
}

// Config carries what New needs.
type Config struct {
	MarketType  types.MarketType
	BusCapacity int
}

// New creates a Provider. Call Run to start the WS supervisor loop.
func New(cfg Config, rest RESTCollaborator, ws *wsclient.Client, dispatcher Dispatcher, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BusCapacity <= 0 {
		cfg.BusCapacity = 256
	}
	return &Provider{
		marketType:   cfg.MarketType,
		rest:         rest,
		ws:           ws,
		dispatcher:   dispatcher,
		logger:       logger.With("component", "tradeprovider", "market_type", cfg.MarketType),
		orders:       shardmap.New[string, types.Order](),
		orderBus:     broadcast.NewBus[types.OrderEvent](cfg.BusCapacity),
		userTradeBus: broadcast.NewBus[types.UserTradeEvent](cfg.BusCapacity),
		accountBus:   broadcast.NewBus[types.AccountEvent](cfg.BusCapacity),
	}
}

// Run starts the WS client's connection supervisor. Blocks until ctx is
// cancelled.
func (p *Provider) Run(ctx context.Context) error {
	return p.ws.Run(ctx)
}

// PlaceOrder submits an order via REST. No WS order-entry channel is
// used, whether or not the WS client is connected. The order is
// optimistically recorded under StatusPendingNew before the REST call
// returns, so readers never observe a placement gap, matching the
// teacher's write-local-state-before-network-round-trip idiom.
func (p *Provider) PlaceOrder(ctx context.Context, order types.Order) (types.Order, error) {
	order.Status = types.OrderStatusPendingNew
	p.mergeOrder(order)

	placed, err := p.rest.PlaceOrder(ctx, order)
	if err != nil {
		return types.Order{}, fmt.Errorf("tradeprovider: place order: %w", err)
	}
	p.mergeOrder(placed)
	return placed, nil
}

// CancelOrder cancels an order by ID via REST.
func (p *Provider) CancelOrder(ctx context.Context, symbol, orderID string) (types.Order, error) {
	canceled, err := p.rest.CancelOrder(ctx, symbol, orderID)
	if err != nil {
		return types.Order{}, fmt.Errorf("tradeprovider: cancel order: %w", err)
	}
	p.mergeOrder(canceled)
	return canceled, nil
}

// mergeOrder applies newer-wins semantics keyed by UpdateTime: an
// incoming record only replaces the stored one if it is at least as new,
// so a delayed WS echo of an older state can never overwrite a newer
// REST-confirmed state (or vice versa).
func (p *Provider) mergeOrder(order types.Order) {
	existing, ok := p.orders.Load(order.OrderID)
	if ok && order.UpdateTime < existing.UpdateTime {
		return
	}
	p.orders.Store(order.OrderID, order)
	p.orderBus.Publish(types.OrderEvent{MarketType: p.marketType, Order: order})
}

// PublishUserTrade broadcasts a private fill received over WS.
func (p *Provider) PublishUserTrade(trade types.UserTrade) {
	p.userTradeBus.Publish(types.UserTradeEvent{MarketType: p.marketType, Trade: trade})
}

// MergeAccount applies newer-wins semantics keyed by Timestamp across the
// whole balance set: an incoming snapshot only replaces the stored one if
// it is at least as new. Generalizes the teacher's per-asset average-
// entry-price update in inventory.go into a whole-account merge.
func (p *Provider) MergeAccount(account types.Account) {
	p.accountMu.Lock()
	if account.Timestamp < p.account.Timestamp {
		p.accountMu.Unlock()
		return
	}
	p.account = account
	p.accountMu.Unlock()
	p.accountBus.Publish(types.AccountEvent{MarketType: p.marketType, Account: account})
}

// Account returns the current merged account snapshot, refreshing from
// REST first if none has been received yet.
func (p *Provider) Account(ctx context.Context) (types.Account, error) {
	p.accountMu.RLock()
	hasAny := p.account.Timestamp != 0
	cur := p.account
	p.accountMu.RUnlock()
	if hasAny {
		return cur, nil
	}

	account, err := p.rest.Account(ctx)
	if err != nil {
		return types.Account{}, err
	}
	p.MergeAccount(account)
	return account, nil
}

// Order returns the current state of orderID, if known.
func (p *Provider) Order(orderID string) (types.Order, bool) {
	return p.orders.Load(orderID)
}

// OpenOrders returns all non-terminal orders tracked for symbol. Falls
// back to REST if the local cache has none, to cover a process restart.
func (p *Provider) OpenOrders(ctx context.Context, symbol string) ([]types.Order, error) {
	var open []types.Order
	p.orders.Range(func(_ string, o types.Order) bool {
		if o.Symbol == symbol && !o.Status.IsTerminal() {
			open = append(open, o)
		}
		return true
	})
	if len(open) > 0 {
		return open, nil
	}
	return p.rest.OpenOrders(ctx, symbol)
}

// SubscribeOrders returns a channel of order lifecycle events.
func (p *Provider) SubscribeOrders() (<-chan types.OrderEvent, func()) { return p.orderBus.Subscribe() }

// SubscribeUserTrades returns a channel of private fill events.
func (p *Provider) SubscribeUserTrades() (<-chan types.UserTradeEvent, func()) {
	return p.userTradeBus.Subscribe()
}

// SubscribeAccount returns a channel of account/balance update events.
func (p *Provider) SubscribeAccount() (<-chan types.AccountEvent, func()) {
	return p.accountBus.Subscribe()
}
