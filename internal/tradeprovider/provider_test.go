package tradeprovider

import (
	"context"
	"testing"
	"time"

	"marketcore/internal/wsclient"
	"marketcore/pkg/types"
)

type fakeREST struct {
	placed   types.Order
	canceled types.Order
}

func (f *fakeREST) PlaceOrder(ctx context.Context, order types.Order) (types.Order, error) {
	order.Status = types.OrderStatusNew
	order.UpdateTime = 2
	f.placed = order
	return order, nil
}
func (f *fakeREST) CancelOrder(ctx context.Context, symbol, orderID string) (types.Order, error) {
	f.canceled = types.Order{OrderID: orderID, Symbol: symbol, Status: types.OrderStatusCanceled, UpdateTime: 3}
	return f.canceled, nil
}
func (f *fakeREST) OpenOrders(ctx context.Context, symbol string) ([]types.Order, error) {
	return nil, nil
}
func (f *fakeREST) Account(ctx context.Context) (types.Account, error) {
	return types.Account{MarketType: "spot:test", Timestamp: 1}, nil
}
func (f *fakeREST) AllOrders(ctx context.Context, symbol string, startTime uint64, limit int) ([]types.Order, error) {
	return nil, nil
}
func (f *fakeREST) UserTradesSince(ctx context.Context, symbol string, startTime uint64, limit int) ([]types.UserTrade, error) {
	return nil, nil
}

func newTestProvider() *Provider {
	ws := wsclient.New(wsclient.Options{
		URL:         "ws://127.0.0.1:0",
		OnMessage:   func(data []byte) {},
		IDExtractor: func(data []byte) (string, bool) { return "", false },
	})
	return New(Config{MarketType: "spot:test", BusCapacity: 4}, &fakeREST{}, ws, nil, nil)
}

func TestPlaceOrderOptimisticThenConfirmed(t *testing.T) {
	t.Parallel()
	p := newTestProvider()
	ch, unsub := p.SubscribeOrders()
	defer unsub()

	order := types.Order{OrderID: "o1", Symbol: "BTCUSDT"}
	placed, err := p.PlaceOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("PlaceOrder() error: %v", err)
	}
	if placed.Status != types.OrderStatusNew {
		t.Errorf("placed.Status = %v, want NEW", placed.Status)
	}

	var statuses []types.OrderStatus
	for i := 0; i < 2; i++ {
		select {
		case evt := <-ch:
			statuses = append(statuses, evt.Order.Status)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for order event %d", i)
		}
	}
	if statuses[0] != types.OrderStatusPendingNew || statuses[1] != types.OrderStatusNew {
		t.Errorf("statuses = %v, want [PENDING_NEW, NEW]", statuses)
	}
}

func TestMergeOrderNewerWinsIgnoresStaleUpdate(t *testing.T) {
	t.Parallel()
	p := newTestProvider()

	p.mergeOrder(types.Order{OrderID: "o1", UpdateTime: 10, Status: types.OrderStatusFilled})
	p.mergeOrder(types.Order{OrderID: "o1", UpdateTime: 5, Status: types.OrderStatusCanceled})

	got, ok := p.Order("o1")
	if !ok {
		t.Fatal("Order(o1) not found")
	}
	if got.Status != types.OrderStatusFilled {
		t.Errorf("Status = %v, want FILLED (stale update must be ignored)", got.Status)
	}
}

func TestMergeAccountNewerWins(t *testing.T) {
	t.Parallel()
	p := newTestProvider()

	p.MergeAccount(types.Account{Timestamp: 100, Balances: []types.Balance{{Asset: "USDT"}}})
	p.MergeAccount(types.Account{Timestamp: 50}) // stale, must be ignored

	acc, err := p.Account(context.Background())
	if err != nil {
		t.Fatalf("Account() error: %v", err)
	}
	if acc.Timestamp != 100 {
		t.Errorf("Timestamp = %d, want 100 (stale update must be ignored)", acc.Timestamp)
	}
}
