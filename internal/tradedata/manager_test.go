package tradedata

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"marketcore/internal/store"
	"marketcore/internal/tradeprovider"
	"marketcore/internal/wsclient"
	"marketcore/pkg/types"
)

type fakeRESTHistory struct {
	orders []types.Order
	trades []types.UserTrade
}

func (f *fakeRESTHistory) PlaceOrder(ctx context.Context, order types.Order) (types.Order, error) {
	order.Status = types.OrderStatusNew
	return order, nil
}
func (f *fakeRESTHistory) CancelOrder(ctx context.Context, symbol, orderID string) (types.Order, error) {
	return types.Order{}, nil
}
func (f *fakeRESTHistory) OpenOrders(ctx context.Context, symbol string) ([]types.Order, error) {
	return nil, nil
}
func (f *fakeRESTHistory) Account(ctx context.Context) (types.Account, error) {
	return types.Account{MarketType: "spot:test", Timestamp: uint64(time.Now().UnixMilli())}, nil
}
func (f *fakeRESTHistory) AllOrders(ctx context.Context, symbol string, startTime uint64, limit int) ([]types.Order, error) {
	return f.orders, nil
}
func (f *fakeRESTHistory) UserTradesSince(ctx context.Context, symbol string, startTime uint64, limit int) ([]types.UserTrade, error) {
	return f.trades, nil
}

func newTestManager(t *testing.T) (*Manager, *tradeprovider.Provider, *fakeRESTHistory) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.duckdb"))
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	rest := &fakeRESTHistory{}
	ws := wsclient.New(wsclient.Options{
		URL:         "ws://127.0.0.1:0",
		OnMessage:   func(data []byte) {},
		IDExtractor: func(data []byte) (string, bool) { return "", false },
	})
	p := tradeprovider.New(tradeprovider.Config{MarketType: "spot:test"}, rest, ws, nil, nil)
	m := New(st, time.Minute, nil)
	return m, p, rest
}

func TestPlaceOrderPreInsertsIntoOpenOrdersAndStore(t *testing.T) {
	t.Parallel()
	m, p, rest := newTestManager(t)
	if err := m.Register(context.Background(), "spot:test", p, rest); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	order := types.Order{OrderID: "o1", ClientOrderID: "c1", Symbol: "BTCUSDT"}
	if _, err := m.PlaceOrder(context.Background(), "spot:test", order); err != nil {
		t.Fatalf("PlaceOrder() error: %v", err)
	}

	open := m.GetOpenOrders("spot:test")
	found := false
	for _, o := range open {
		if o.OrderID == "o1" {
			found = true
		}
	}
	if !found {
		t.Errorf("GetOpenOrders() = %+v, want to contain o1", open)
	}

	stored, ok, err := m.store.GetOrderByID(context.Background(), "spot:test", "o1")
	if err != nil || !ok {
		t.Fatalf("GetOrderByID() = %v, %v, %v", stored, ok, err)
	}
}

func TestReconcileOneAdvancesWatermark(t *testing.T) {
	t.Parallel()
	m, p, rest := newTestManager(t)
	if err := m.Register(context.Background(), "spot:test", p, rest); err != nil {
		t.Fatalf("Register() error: %v", err)
	}
	m.trackSymbol("spot:test", "BTCUSDT")

	if err := m.reconcileOne(context.Background(), "spot:test"); err != nil {
		t.Fatalf("reconcileOne() error: %v", err)
	}

	ts, ok, err := m.store.LastSyncTS(context.Background(), "spot:test")
	if err != nil || !ok || ts == 0 {
		t.Errorf("LastSyncTS() = %d, %v, %v, want a nonzero watermark", ts, ok, err)
	}
}
