// marketcored — the market-data and trading core daemon.
//
// Architecture:
//
//	main.go                    — entry point: loads config, wires every market, waits for SIGINT/SIGTERM
//	internal/config            — YAML + env config
//	internal/ratelimit         — C1: continuous-refill token buckets
//	internal/wsclient          — C2: persistent WS client (connect/subscribe/dispatch/heartbeat/reconnect)
//	internal/seqcache          — C3: bounded sequence-aware ring buffers
//	internal/orderbook         — C4: order-book reconstruction
//	internal/marketprovider    — C5: per-exchange public market-data surface
//	internal/tradeprovider     — C6: per-exchange private trading surface
//	internal/marketdata        — C7: multi-exchange market-data aggregator
//	internal/tradedata         — C8: multi-exchange trade-data aggregator + reconciliation loop
//	internal/store             — C9: embedded relational store (DuckDB)
//	internal/factor            — C10: read-only facade for downstream factor computations
//	internal/venue             — extension seam: exchange-specific REST/WS wiring, registered by name
//
// Exchange-specific request/response parsing is not implemented here: it
// is an external collaborator registered against internal/venue by name
// (the part of a market_type before the colon, e.g. "binance" in
// "spot:binance"), imported for its side effect from a separate binary
// or build tag. A market whose exchange has no registered venue factory
// is logged and skipped rather than failing the whole daemon.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"marketcore/internal/config"
	"marketcore/internal/factor"
	"marketcore/internal/marketdata"
	"marketcore/internal/marketprovider"
	"marketcore/internal/ratelimit"
	"marketcore/internal/store"
	"marketcore/internal/tradedata"
	"marketcore/internal/tradeprovider"
	"marketcore/internal/venue"
	"marketcore/pkg/types"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("MKC_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	st, err := store.Open(cfg.Store.DBPath)
	if err != nil {
		logger.Error("failed to open store", "error", err, "path", cfg.Store.DBPath)
		os.Exit(1)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hot := marketdata.New(cfg.TradeData.GapThreshold, logger)
	warm := tradedata.New(st, cfg.TradeData.RefreshInterval, logger)

	var wg sync.WaitGroup
	active := 0

	for _, mc := range cfg.Markets {
		marketType := types.MarketType(mc.MarketType)
		exchange := exchangeOf(mc.MarketType)

		factoryFn, ok := venue.Lookup(exchange)
		if !ok {
			logger.Error("no venue adapter registered, skipping market",
				"market_type", mc.MarketType, "exchange", exchange)
			continue
		}

		limiter := buildLimiter(cfg.RateLimit)
		collabs, err := factoryFn(ctx, venue.MarketParams{
			APIBaseURL:  mc.APIBaseURL,
			WSMarketURL: mc.WSMarketURL,
			WSUserURL:   mc.WSUserURL,
			ProxyURL:    mc.ProxyURL,
			APIKey:      mc.APIKey,
			APISecret:   mc.APISecret,
			DryRun:      cfg.DryRun,
			Limiter:     limiter,
			Logger:      logger.With("market_type", mc.MarketType),
		})
		if err != nil {
			logger.Error("failed to build venue collaborators", "market_type", mc.MarketType, "error", err)
			continue
		}

		mp := marketprovider.New(marketprovider.Config{
			MarketType:    marketType,
			Symbols:       mc.Symbols,
			KlineCapacity: cfg.Cache.KlineCapacity,
			TradeCapacity: cfg.Cache.TradeCapacity,
			BusCapacity:   cfg.Broadcast.Capacity,
		}, collabs.MarketREST, collabs.MarketWS, collabs.MarketDispatcher, logger)

		tp := tradeprovider.New(tradeprovider.Config{
			MarketType:  marketType,
			BusCapacity: cfg.Broadcast.Capacity,
		}, collabs.TradeREST, collabs.TradeWS, collabs.TradeDispatcher, logger)

		hot.Register(marketType, mp)
		if err := warm.Register(ctx, marketType, tp, collabs.TradeREST); err != nil {
			logger.Error("failed to register trade provider", "market_type", mc.MarketType, "error", err)
			continue
		}

		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := mp.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("market provider stopped", "market_type", mc.MarketType, "error", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := tp.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("trade provider stopped", "market_type", mc.MarketType, "error", err)
			}
		}()
		active++
	}

	if active == 0 {
		logger.Error("no markets were wired, exiting")
		os.Exit(1)
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		hot.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		warm.Run(ctx)
	}()

	// The facade is the read surface downstream factor computations and
	// strategies are built against. The core neither decides what to
	// trade nor renders anything, so nothing here calls into it.
	_ = factor.New(hot, warm)

	logger.Info("marketcore started", "markets_active", active, "dry_run", cfg.DryRun)

	<-ctx.Done()
	logger.Info("received shutdown signal, draining")
	wg.Wait()
	logger.Info("marketcore stopped")
}

// exchangeOf extracts the exchange name from a "product:exchange"
// market type tag, e.g. "binance" from "spot:binance".
func exchangeOf(marketType string) string {
	if i := strings.IndexByte(marketType, ':'); i >= 0 {
		return marketType[i+1:]
	}
	return marketType
}

func buildLimiter(cfg config.RateLimitConfig) *ratelimit.Limiter {
	buckets := make([]*ratelimit.TokenBucket, 0, len(cfg.API)+len(cfg.Stream))
	for _, w := range cfg.API {
		buckets = append(buckets, ratelimit.NewTokenBucketFromWindow(w.WindowMS, w.Capacity))
	}
	for _, w := range cfg.Stream {
		buckets = append(buckets, ratelimit.NewTokenBucketFromWindow(w.WindowMS, w.Capacity))
	}
	return ratelimit.NewLimiter(buckets...)
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
