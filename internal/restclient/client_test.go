package restclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientGetDecodesJSON(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"symbol": "BTCUSDT"})
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil, nil, nil)

	var result struct {
		Symbol string `json:"symbol"`
	}
	if err := c.Get(context.Background(), "/book", nil, 1, &result); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if result.Symbol != "BTCUSDT" {
		t.Errorf("Symbol = %q, want BTCUSDT", result.Symbol)
	}
}

func TestClientGetNonOKStatusReturnsError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"msg":"bad symbol"}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, RetryCount: 1}, nil, nil, nil)

	var result map[string]any
	err := c.Get(context.Background(), "/book", nil, 1, &result)
	if err == nil {
		t.Fatal("Get() returned nil error, want error for 400 status")
	}
}

func TestClientMutateDryRunSkipsRequest(t *testing.T) {
	t.Parallel()
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, DryRun: true}, nil, nil, nil)

	var result map[string]any
	if err := c.Post(context.Background(), "/orders", map[string]string{"side": "buy"}, 1, &result); err != nil {
		t.Fatalf("Post() error: %v", err)
	}
	if called {
		t.Error("Post() reached the server despite dry-run")
	}
}

func TestDepthWeightTiers(t *testing.T) {
	t.Parallel()
	cases := []struct {
		limit int
		want  float64
	}{
		{1, 5}, {100, 5}, {101, 25}, {500, 25}, {501, 50}, {1000, 50}, {1001, 250}, {5000, 250},
	}
	for _, tc := range cases {
		if got := DepthWeight(tc.limit); got != tc.want {
			t.Errorf("DepthWeight(%d) = %v, want %v", tc.limit, got, tc.want)
		}
	}
}
