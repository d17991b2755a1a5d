package types

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestOrderStatusIsTerminal(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status OrderStatus
		want   bool
	}{
		{OrderStatusNew, false},
		{OrderStatusPendingNew, false},
		{OrderStatusPartiallyFilled, false},
		{OrderStatusFilled, true},
		{OrderStatusCanceled, true},
		{OrderStatusPendingCancel, true},
		{OrderStatusRejected, true},
		{OrderStatusExpired, true},
		{OrderStatusExpiredInMatch, true},
	}

	for _, c := range cases {
		if got := c.status.IsTerminal(); got != c.want {
			t.Errorf("%s.IsTerminal() = %v, want %v", c.status, got, c.want)
		}
	}
}

func TestCandleKeyIsOpenTime(t *testing.T) {
	t.Parallel()
	c := Candle{OpenTime: 60_000}
	if c.Key() != 60_000 {
		t.Errorf("Key() = %d, want 60000", c.Key())
	}
}

func TestTradeKeyIsSeqID(t *testing.T) {
	t.Parallel()
	tr := Trade{SeqID: 42}
	if tr.Key() != 42 {
		t.Errorf("Key() = %d, want 42", tr.Key())
	}
}

func TestAccountBalanceByAsset(t *testing.T) {
	t.Parallel()
	acct := Account{Balances: []Balance{{Asset: "USDT", Free: decimal.NewFromInt(100)}}}

	if _, ok := acct.BalanceByAsset("BTC"); ok {
		t.Error("BalanceByAsset(BTC) ok = true, want false")
	}
	b, ok := acct.BalanceByAsset("USDT")
	if !ok {
		t.Fatal("BalanceByAsset(USDT) ok = false, want true")
	}
	if !b.Free.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Free = %s, want 100", b.Free)
	}
}
