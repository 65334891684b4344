// Package market provides best-effort clients for public market data feeds:
// price history, company fundamentals, and a broad-market index basket.
// Feed failures surface as errors; callers degrade their own output rather
// than aborting.
package market

import (
	"net/http"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Default feed endpoints (Yahoo-compatible chart and summary APIs).
const (
	defaultQuoteEndpoint        = "https://query1.finance.yahoo.com"
	defaultFundamentalsEndpoint = "https://query1.finance.yahoo.com"
)

// Config configures the market data client.
type Config struct {
	// QuoteEndpoint is the chart API base URL.
	QuoteEndpoint string
	// FundamentalsEndpoint is the company summary API base URL.
	FundamentalsEndpoint string
	// Timeout bounds every feed call.
	Timeout time.Duration
	// CacheTTL is how long responses are reused before refetching.
	CacheTTL time.Duration
}

// Client fetches market data with an in-process TTL cache. Quotes move
// slowly enough that repeated pipeline runs within the TTL reuse the same
// response instead of hammering the feed.
type Client struct {
	quoteEndpoint        string
	fundamentalsEndpoint string
	http                 *http.Client
	cache                *gocache.Cache
}

// NewClient creates a market data client.
func NewClient(cfg Config) *Client {
	if cfg.QuoteEndpoint == "" {
		cfg.QuoteEndpoint = defaultQuoteEndpoint
	}
	if cfg.FundamentalsEndpoint == "" {
		cfg.FundamentalsEndpoint = defaultFundamentalsEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 2 * time.Minute
	}

	return &Client{
		quoteEndpoint:        cfg.QuoteEndpoint,
		fundamentalsEndpoint: cfg.FundamentalsEndpoint,
		http:                 &http.Client{Timeout: cfg.Timeout},
		cache:                gocache.New(cfg.CacheTTL, 10*time.Minute),
	}
}
