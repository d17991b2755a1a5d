package factor

import (
	"context"

	"marketcore/internal/marketdata"
	"marketcore/internal/tradedata"
	"marketcore/pkg/types"
)

// adapter wires the hot tier (marketdata.Manager, C7) and warm tier
// (tradedata.Manager, C8) into a single Facade.
type adapter struct {
	hot  *marketdata.Manager
	warm *tradedata.Manager
}

// New builds a Facade over the given hot and warm tier managers.
func New(hot *marketdata.Manager, warm *tradedata.Manager) Facade {
	return &adapter{hot: hot, warm: warm}
}

func (a *adapter) Klines(ctx context.Context, marketType types.MarketType, symbol, interval string, limit int) ([]*types.Candle, error) {
	return a.hot.Klines(ctx, marketType, symbol, interval, limit)
}

func (a *adapter) Trades(marketType types.MarketType, symbol string, limit int) ([]*types.Trade, error) {
	return a.hot.Trades(marketType, symbol, limit)
}

func (a *adapter) Depth(marketType types.MarketType, symbol string) (types.DepthSnapshot, error) {
	return a.hot.Depth(marketType, symbol)
}

func (a *adapter) OrderHistory(ctx context.Context, marketType types.MarketType, symbol string, startTime uint64, limit int) ([]types.Order, error) {
	return a.warm.GetOrders(ctx, marketType, symbol, startTime, limit)
}

func (a *adapter) UserTradeHistory(ctx context.Context, marketType types.MarketType, symbol string, startTime uint64, limit int) ([]types.UserTrade, error) {
	return a.warm.GetUserTrades(ctx, marketType, symbol, startTime, limit)
}

func (a *adapter) Account(ctx context.Context, marketType types.MarketType) (types.Account, error) {
	return a.warm.GetAccount(ctx, marketType)
}
