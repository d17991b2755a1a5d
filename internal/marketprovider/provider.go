// Package marketprovider implements the public market-data provider
// (C5): one instance per (exchange, market type), composing the rate
// limiter, WS client, bounded sequence caches and order-book
// reconstructor into a single read API with cache-first, REST-fallback
// semantics. It generalizes the teacher's cmd/bot + internal/engine
// wiring pattern — one WS feed, one REST client, per-market state, a
// reconnect supervisor goroutine — from "one Polymarket market" to "one
// exchange, many symbols".
package marketprovider

import (
	"context"
	"fmt"
	"log/slog"

	"marketcore/internal/broadcast"
	"marketcore/internal/orderbook"
	"marketcore/internal/restclient"
	"marketcore/internal/seqcache"
	"marketcore/internal/shardmap"
	"marketcore/internal/wsclient"
	"marketcore/pkg/types"
)

// RESTCollaborator is the subset of REST calls the provider needs from a
// venue's market-data endpoints.
type RESTCollaborator interface {
	DepthSnapshot(ctx context.Context, symbol string, limit int) (types.DepthSnapshot, error)
	Klines(ctx context.Context, symbol string, interval string, limit int) ([]types.Candle, error)
	Ticker24h(ctx context.Context, symbol string) (types.Ticker24h, error)
	ExchangeInfo(ctx context.Context) ([]types.ExchangeInfo, error)
}

// Dispatcher is implemented by the venue-specific adapter that knows how
// to turn raw WS frames into typed events and forward subscribe/
// unsubscribe requests on reconnect.
type Dispatcher interface {
	// Dispatch parses one raw WS frame and routes it into the provider's
	// publish methods (PublishKline, PublishTrade, ApplyDepthDelta,
	// PublishTicker). Unrecognized frames are ignored.
	Dispatch(ctx context.Context, frame []byte)
	// Resubscribe resends the provider's tracked symbol subscriptions on
	// (re)connect.
	Resubscribe(ctx context.Context, client *wsclient.Client, symbols []string) error
}

// Provider is one exchange's public market-data surface: symbols,
// caches, order books, and live subscriptions.
type Provider struct {
	marketType types.MarketType
	rest       RESTCollaborator
	ws         *wsclient.Client
	dispatcher Dispatcher
	logger     *slog.Logger

	symbols []string

	klineCaches *shardmap.Map[klineKey, *seqcache.KlineCache]
	tradeCaches *shardmap.Map[string, *seqcache.TradeCache]
	books       *shardmap.Map[string, *orderbook.Reconstructor]

	klineBus  *broadcast.Bus[types.KlineEvent]
	tradeBus  *broadcast.Bus[types.TradeEvent]
	depthBus  *broadcast.Bus[types.DepthEvent]
	tickerBus *broadcast.Bus[types.TickerEvent]

	klineCapacity int
	tradeCapacity int
}

type klineKey struct {
	symbol   string
	interval string
}

// Config carries what New needs beyond the collaborators themselves.
type Config struct {
	MarketType    types.MarketType
	Symbols       []string
	KlineCapacity int
	TradeCapacity int
	BusCapacity   int
}

// New creates a Provider. Call Run to start the WS supervisor loop.
func New(cfg Config, rest RESTCollaborator, ws *wsclient.Client, dispatcher Dispatcher, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.KlineCapacity <= 0 {
		cfg.KlineCapacity = 1000
	}
	if cfg.TradeCapacity <= 0 {
		cfg.TradeCapacity = 5000
	}
	if cfg.BusCapacity <= 0 {
		cfg.BusCapacity = 256
	}

	return &Provider{
		marketType:    cfg.MarketType,
		rest:          rest,
		ws:            ws,
		dispatcher:    dispatcher,
		logger:        logger.With("component", "marketprovider", "market_type", cfg.MarketType),
		symbols:       cfg.Symbols,
		klineCaches:   shardmap.New[klineKey, *seqcache.KlineCache](),
		tradeCaches:   shardmap.New[string, *seqcache.TradeCache](),
		books:         shardmap.New[string, *orderbook.Reconstructor](),
		klineBus:      broadcast.NewBus[types.KlineEvent](cfg.BusCapacity),
		tradeBus:      broadcast.NewBus[types.TradeEvent](cfg.BusCapacity),
		depthBus:      broadcast.NewBus[types.DepthEvent](cfg.BusCapacity),
		tickerBus:     broadcast.NewBus[types.TickerEvent](cfg.BusCapacity),
		klineCapacity: cfg.KlineCapacity,
		tradeCapacity: cfg.TradeCapacity,
	}
}

// Run starts the WS client's connection supervisor. Blocks until ctx is
// cancelled.
func (p *Provider) Run(ctx context.Context) error {
	for _, symbol := range p.symbols {
		p.bookFor(ctx, symbol)
	}
	return p.ws.Run(ctx)
}

func (p *Provider) bookFor(ctx context.Context, symbol string) *orderbook.Reconstructor {
	return p.books.LoadOrStore(symbol, func() *orderbook.Reconstructor {
		fetch := func(ctx context.Context) (types.DepthSnapshot, error) {
			return p.rest.DepthSnapshot(ctx, symbol, 1000)
		}
		rb := orderbook.New(symbol, fetch, func(reason string) {
			p.logger.Warn("order book resync", "symbol", symbol, "reason", reason)
		})
		go rb.Start(ctx)
		return rb
	})
}

// PublishKline stores candle in its (symbol, interval) cache and
// broadcasts it to subscribers. A candle whose symbol/interval disagree
// with the cache already established for key, or whose open_time is
// misaligned to it, is logged and dropped rather than published.
func (p *Provider) PublishKline(interval string, candle types.Candle) {
	key := klineKey{symbol: candle.Symbol, interval: interval}
	cache := p.klineCaches.LoadOrStore(key, func() *seqcache.KlineCache {
		return seqcache.NewKlineCache(p.klineCapacity, candle.Symbol, interval, candle.Interval)
	})
	if _, err := cache.Add(candle); err != nil {
		p.logger.Warn("dropped invalid candle", "symbol", candle.Symbol, "interval", interval, "error", err)
		return
	}
	p.klineBus.Publish(types.KlineEvent{MarketType: p.marketType, Candle: candle})
}

// PublishTrade stores trade in its symbol's cache and broadcasts it.
func (p *Provider) PublishTrade(trade types.Trade) {
	cache := p.tradeCaches.LoadOrStore(trade.Symbol, func() *seqcache.TradeCache {
		return seqcache.NewTradeCache(p.tradeCapacity)
	})
	if _, err := cache.Add(trade); err != nil {
		p.logger.Warn("dropped invalid trade", "symbol", trade.Symbol, "error", err)
		return
	}
	p.tradeBus.Publish(types.TradeEvent{MarketType: p.marketType, Trade: trade})
}

// PublishTicker broadcasts a 24h ticker update. Tickers are not cached by
// sequence; consumers read the live value only.
func (p *Provider) PublishTicker(ticker types.Ticker24h) {
	p.tickerBus.Publish(types.TickerEvent{MarketType: p.marketType, Ticker: ticker})
}

// ApplyDepthDelta merges a WS delta into the named symbol's book and
// broadcasts the resulting snapshot.
func (p *Provider) ApplyDepthDelta(ctx context.Context, delta types.DepthDelta) {
	rb := p.bookFor(ctx, delta.Symbol)
	rb.ApplyDelta(ctx, delta)
	p.depthBus.Publish(types.DepthEvent{MarketType: p.marketType, Snapshot: rb.Snapshot()})
}

// Depth returns the current order book for symbol from the in-memory
// reconstructor; there is no REST fallback because the reconstructor
// itself owns the REST resync path.
func (p *Provider) Depth(symbol string) (types.DepthSnapshot, error) {
	rb, ok := p.books.Load(symbol)
	if !ok {
		return types.DepthSnapshot{}, fmt.Errorf("marketprovider: unknown symbol %q", symbol)
	}
	return rb.Snapshot(), nil
}

// Klines returns up to limit recent candles for (symbol, interval),
// cache-first. A cache miss (no cache yet for this pair) falls back to
// REST.
func (p *Provider) Klines(ctx context.Context, symbol, interval string, limit int) ([]*types.Candle, error) {
	key := klineKey{symbol: symbol, interval: interval}
	if cache, ok := p.klineCaches.Load(key); ok {
		if recent := cache.Recent(limit); recent != nil {
			return recent, nil
		}
	}
	candles, err := p.rest.Klines(ctx, symbol, interval, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*types.Candle, len(candles))
	for i := range candles {
		out[i] = &candles[i]
	}
	return out, nil
}

// Trades returns up to limit recent trades for symbol, cache-first,
// falling back to... nothing: public trade history beyond the cache
// window is intentionally not exposed via REST (§1 scope).
func (p *Provider) Trades(symbol string, limit int) []*types.Trade {
	cache, ok := p.tradeCaches.Load(symbol)
	if !ok {
		return nil
	}
	return cache.Recent(limit)
}

// SubscribeKlines returns a channel of kline events and an unsubscribe
// function.
func (p *Provider) SubscribeKlines() (<-chan types.KlineEvent, func()) { return p.klineBus.Subscribe() }

// SubscribeTrades returns a channel of trade events and an unsubscribe
// function.
func (p *Provider) SubscribeTrades() (<-chan types.TradeEvent, func()) { return p.tradeBus.Subscribe() }

// SubscribeDepth returns a channel of depth events and an unsubscribe
// function.
func (p *Provider) SubscribeDepth() (<-chan types.DepthEvent, func()) { return p.depthBus.Subscribe() }

// SubscribeTickers returns a channel of ticker events and an unsubscribe
// function.
func (p *Provider) SubscribeTickers() (<-chan types.TickerEvent, func()) {
	return p.tickerBus.Subscribe()
}
