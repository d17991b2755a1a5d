package marketprovider

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"marketcore/internal/wsclient"
	"marketcore/pkg/types"
)

type fakeREST struct {
	klines []types.Candle
}

func (f *fakeREST) DepthSnapshot(ctx context.Context, symbol string, limit int) (types.DepthSnapshot, error) {
	return types.DepthSnapshot{Symbol: symbol, LastUpdateID: 1}, nil
}
func (f *fakeREST) Klines(ctx context.Context, symbol, interval string, limit int) ([]types.Candle, error) {
	return f.klines, nil
}
func (f *fakeREST) Ticker24h(ctx context.Context, symbol string) (types.Ticker24h, error) {
	return types.Ticker24h{Symbol: symbol}, nil
}
func (f *fakeREST) ExchangeInfo(ctx context.Context) ([]types.ExchangeInfo, error) { return nil, nil }

func newTestProvider(t *testing.T) (*Provider, *fakeREST) {
	t.Helper()
	rest := &fakeREST{}
	ws := wsclient.New(wsclient.Options{
		URL:         "ws://127.0.0.1:0", // never dialed in these tests
		OnMessage:   func(data []byte) {},
		IDExtractor: func(data []byte) (string, bool) { return "", false },
	})
	p := New(Config{
		MarketType:    "spot:test",
		Symbols:       []string{"BTCUSDT"},
		KlineCapacity: 10,
		TradeCapacity: 10,
		BusCapacity:   4,
	}, rest, ws, nil, nil)
	return p, rest
}

func TestProviderPublishTradeIsReadableViaTradesAndSubscription(t *testing.T) {
	t.Parallel()
	p, _ := newTestProvider(t)

	ch, unsub := p.SubscribeTrades()
	defer unsub()

	trade := types.Trade{Symbol: "BTCUSDT", SeqID: 1, Price: decimal.NewFromInt(100), Quantity: decimal.NewFromInt(1)}
	p.PublishTrade(trade)

	select {
	case evt := <-ch:
		if evt.Trade.SeqID != 1 {
			t.Errorf("evt.Trade.SeqID = %d, want 1", evt.Trade.SeqID)
		}
	case <-time.After(time.Second):
		t.Fatal("did not receive published trade event")
	}

	recent := p.Trades("BTCUSDT", 1)
	if len(recent) != 1 || recent[0] == nil || recent[0].SeqID != 1 {
		t.Errorf("Trades() = %+v, want one trade with SeqID 1", recent)
	}
}

func TestProviderKlinesFallsBackToRESTOnCacheMiss(t *testing.T) {
	t.Parallel()
	p, rest := newTestProvider(t)
	rest.klines = []types.Candle{{Symbol: "BTCUSDT", OpenTime: 60000}}

	got, err := p.Klines(context.Background(), "BTCUSDT", "1m", 10)
	if err != nil {
		t.Fatalf("Klines() error: %v", err)
	}
	if len(got) != 1 || got[0].OpenTime != 60000 {
		t.Errorf("Klines() = %+v, want REST fallback result", got)
	}
}

func TestProviderDepthUnknownSymbolErrors(t *testing.T) {
	t.Parallel()
	p, _ := newTestProvider(t)
	if _, err := p.Depth("NOPE"); err == nil {
		t.Error("Depth() on unknown symbol returned nil error")
	}
}
