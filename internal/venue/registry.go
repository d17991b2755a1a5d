// Package venue defines the extension seam between the core and a
// concrete exchange integration. Exchange-specific request/response
// parsing, wire formats and credential signing are external
// collaborators the core only consumes through the
// marketprovider/tradeprovider RESTCollaborator and Dispatcher
// contracts — this package never parses a venue's JSON itself, mirroring
// the teacher's split between internal/engine (orchestration) and
// internal/exchange (Polymarket-specific wire format), generalized so
// the orchestration side no longer needs to know which exchange it is
// talking to.
//
// A deployment registers one Factory per exchange name (the part of a
// MarketType before the colon, e.g. "binance" in "spot:binance") during
// program init, typically from a side package imported for its side
// effect:
//
//	import _ "marketcore/internal/venue/binance"
//
// No concrete exchange is registered by this package.
package venue

import (
	"context"
	"log/slog"

	"marketcore/internal/marketprovider"
	"marketcore/internal/ratelimit"
	"marketcore/internal/tradeprovider"
	"marketcore/internal/wsclient"
)

// Collaborators bundles everything one configured market needs to build
// its marketprovider.Provider and tradeprovider.Provider: the two REST
// collaborators, the two WS clients (market data is public, user data is
// authenticated, so exchanges serve them on different endpoints/auth),
// and the two dispatchers that turn raw frames into typed events.
type Collaborators struct {
	MarketREST       marketprovider.RESTCollaborator
	MarketWS         *wsclient.Client
	MarketDispatcher marketprovider.Dispatcher

	TradeREST       tradeprovider.RESTCollaborator
	TradeWS         *wsclient.Client
	TradeDispatcher tradeprovider.Dispatcher
}

// MarketParams is what a Factory needs from config to build a venue's
// collaborators: base URLs, credentials and the shared rate limiter,
// without the venue package importing the top-level config package.
type MarketParams struct {
	APIBaseURL  string
	WSMarketURL string
	WSUserURL   string
	ProxyURL    string
	APIKey      string
	APISecret   string
	DryRun      bool
	Limiter     *ratelimit.Limiter
	Logger      *slog.Logger
}

// Factory builds the collaborators for one configured market. Factories
// do their own dialing lazily: Collaborators.MarketWS/TradeWS are not
// required to be connected yet, since Provider.Run owns the connect/
// reconnect supervisor loop.
type Factory func(ctx context.Context, params MarketParams) (Collaborators, error)

var registry = map[string]Factory{}

// Register associates a Factory with an exchange name. Call from an
// init() in a venue-specific package. Panics on duplicate registration,
// the same way database/sql drivers panic on duplicate Register calls.
func Register(exchange string, f Factory) {
	if _, exists := registry[exchange]; exists {
		panic("venue: Register called twice for exchange " + exchange)
	}
	registry[exchange] = f
}

// Lookup returns the Factory registered for exchange, if any.
func Lookup(exchange string) (Factory, bool) {
	f, ok := registry[exchange]
	return f, ok
}
