// Package types defines the shared data model used across every subsystem:
// the wire-independent representation of order-book levels, candles,
// trades, tickers, orders, balances and accounts. It has no dependency on
// any internal package so any layer can import it.
//
// All prices and quantities are github.com/shopspring/decimal.Decimal to
// avoid floating point error accumulating across long-running caches.
// All timestamps are milliseconds since epoch unless noted.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is BUY or SELL.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderType enumerates supported order lifecycles.
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// OrderStatus is the lifecycle state of an order. Anything other than
// New, PendingNew, PartiallyFilled is terminal.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPendingNew      OrderStatus = "PENDING_NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusPendingCancel   OrderStatus = "PENDING_CANCEL"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
	OrderStatusExpiredInMatch  OrderStatus = "EXPIRED_IN_MATCH"
)

// IsTerminal reports whether the order will never transition further.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusNew, OrderStatusPendingNew, OrderStatusPartiallyFilled:
		return false
	default:
		return true
	}
}

// MarketType tags a venue + product combination (e.g. "spot:binance",
// "perp:bybit"). It is the partition key used throughout C7/C8.
type MarketType string

// ————————————————————————————————————————————————————————————————————————
// Order book
// ————————————————————————————————————————————————————————————————————————

// PriceLevel is a single resting bid or ask. A zero Quantity in a delta
// means "remove this level".
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// DepthSnapshot is a full order-book state as of LastUpdateID.
// Bid-ask crossing is not enforced: raw exchange state is preserved.
type DepthSnapshot struct {
	Symbol       string
	LastUpdateID uint64
	Bids         []PriceLevel // descending by price
	Asks         []PriceLevel // ascending by price
	Timestamp    uint64
}

// DepthDelta is an incremental order-book update. Invariant:
// FirstUpdateID <= LastUpdateID.
type DepthDelta struct {
	Symbol        string
	FirstUpdateID uint64
	LastUpdateID  uint64
	Bids          []PriceLevel
	Asks          []PriceLevel
	Timestamp     uint64
}

// ————————————————————————————————————————————————————————————————————————
// Candles / trades / tickers
// ————————————————————————————————————————————————————————————————————————

// Candle (kline) is an OHLCV bar aligned to Interval.
// Invariants: CloseTime-OpenTime == Interval, OpenTime % Interval == 0.
type Candle struct {
	Symbol      string
	Interval    uint64 // milliseconds
	OpenTime    uint64
	CloseTime   uint64
	Open        decimal.Decimal
	High        decimal.Decimal
	Low         decimal.Decimal
	Close       decimal.Decimal
	Volume      decimal.Decimal
	QuoteVolume decimal.Decimal
}

// Key returns the ring-buffer key for this candle: its aligned open time.
func (c Candle) Key() uint64 { return c.OpenTime }

// Trade is a single executed trade. SeqID is strictly monotone per symbol
// within one exchange and is the ring-buffer key.
type Trade struct {
	Symbol       string
	TradeID      string
	Price        decimal.Decimal
	Quantity     decimal.Decimal
	Timestamp    uint64
	IsBuyerMaker bool
	SeqID        uint64
}

// Key returns the ring-buffer key for this trade: its sequence id.
func (t Trade) Key() uint64 { return t.SeqID }

// Ticker24h is a rolling 24h summary. CloseTime is its freshness token;
// the providers broadcast each ticker as received and apply no
// newer-wins merge on it.
type Ticker24h struct {
	Symbol             string
	PriceChange        decimal.Decimal
	PriceChangePercent decimal.Decimal
	LastPrice          decimal.Decimal
	HighPrice          decimal.Decimal
	LowPrice           decimal.Decimal
	Volume             decimal.Decimal
	QuoteVolume        decimal.Decimal
	OpenTime           uint64
	CloseTime          uint64
}

// ExchangeInfo describes a symbol's trading filters.
type ExchangeInfo struct {
	Symbol        string
	TickSize      decimal.Decimal
	StepSize      decimal.Decimal
	MinNotional   decimal.Decimal
	MinQty        decimal.Decimal
	QuoteAsset    string
	BaseAsset     string
	IsTradingOpen bool
}

// ————————————————————————————————————————————————————————————————————————
// Trading records
// ————————————————————————————————————————————————————————————————————————

// Order is a standard trading record. UpdateTime is the newer-wins token.
type Order struct {
	MarketType    MarketType
	Symbol        string
	OrderID       string
	ClientOrderID string
	Side          Side
	Type          OrderType
	Price         decimal.Decimal
	OrigQuantity  decimal.Decimal
	ExecutedQty   decimal.Decimal
	Status        OrderStatus
	CreateTime    uint64
	UpdateTime    uint64
}

// UserTrade is a fill belonging to one of our own orders.
type UserTrade struct {
	MarketType      MarketType
	Symbol          string
	TradeID         string
	OrderID         string
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	Commission      decimal.Decimal
	CommissionAsset string
	IsMaker         bool
	Timestamp       uint64
}

// Balance is the free/locked amount of one asset.
type Balance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}

// Account is the newer-wins snapshot of balances for one market.
// Timestamp is the newer-wins token.
type Account struct {
	MarketType MarketType
	Balances   []Balance
	Timestamp  uint64
}

// BalanceByAsset finds a balance entry by asset, or returns false.
func (a Account) BalanceByAsset(asset string) (Balance, bool) {
	for _, b := range a.Balances {
		if b.Asset == asset {
			return b, true
		}
	}
	return Balance{}, false
}

// ————————————————————————————————————————————————————————————————————————
// Broadcast event envelopes
// ————————————————————————————————————————————————————————————————————————

// KlineEvent wraps a candle update for broadcast subscribers.
type KlineEvent struct {
	MarketType MarketType
	Candle     Candle
	ReceivedAt time.Time
}

// TradeEvent wraps a public trade for broadcast subscribers.
type TradeEvent struct {
	MarketType MarketType
	Trade      Trade
	ReceivedAt time.Time
}

// DepthEvent wraps a published order-book snapshot for broadcast subscribers.
type DepthEvent struct {
	MarketType MarketType
	Snapshot   DepthSnapshot
	ReceivedAt time.Time
}

// TickerEvent wraps a 24h ticker update for broadcast subscribers.
type TickerEvent struct {
	MarketType MarketType
	Ticker     Ticker24h
	ReceivedAt time.Time
}

// OrderEvent wraps an order lifecycle update for broadcast subscribers.
type OrderEvent struct {
	MarketType MarketType
	Order      Order
	ReceivedAt time.Time
}

// UserTradeEvent wraps a private fill for broadcast subscribers.
type UserTradeEvent struct {
	MarketType MarketType
	Trade      UserTrade
	ReceivedAt time.Time
}

// AccountEvent wraps an account/balance update for broadcast subscribers.
type AccountEvent struct {
	MarketType MarketType
	Account    Account
	ReceivedAt time.Time
}
