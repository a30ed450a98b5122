// Package kalshi is a client for the Kalshi trading API: a signed REST
// transport with typed errors, resource services for markets, portfolio,
// exchange and API keys, and a WebSocket feed with local order-book
// reconstruction.
package kalshi

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/tradeforge/kalshi-go/internal/config"
)

// Production and demo hosts. Path structure is identical across
// environments; only the host differs.
const (
	prodBaseURL = "https://trading-api.kalshi.com"
	prodWSURL   = "wss://trading-api.kalshi.com/trade-api/ws/v2"
	demoBaseURL = "https://demo-api.kalshi.co"
	demoWSURL   = "wss://demo-api.kalshi.co/trade-api/ws/v2"

	apiPrefix = "/trade-api/v2"
	wsPathV2  = "/trade-api/ws/v2"
)

// Client is the facade over one set of Kalshi credentials. It owns a
// single signed transport; the resource accessors (Portfolio, Exchange,
// APIKeys, Markets) are built lazily and memoized, while Feed constructs
// a new independent connection on every call.
//
// Construct one Client per process or test; there is no package-level
// shared state, so isolated clients with mock transports compose freely.
type Client struct {
	signer    *Signer
	transport *transport
	baseURL   string
	wsURL     string

	portfolioOnce sync.Once
	portfolio     *PortfolioService
	exchangeOnce  sync.Once
	exchange      *ExchangeService
	apiKeysOnce   sync.Once
	apiKeys       *APIKeysService
	marketsOnce   sync.Once
	markets       *MarketsService
}

// Option customizes a Client at construction.
type Option func(*clientOptions)

type clientOptions struct {
	demo       bool
	baseURL    string
	wsURL      string
	httpClient *http.Client
}

// WithDemo points the client at the demo environment. REST and WebSocket
// hosts switch together.
func WithDemo() Option {
	return func(o *clientOptions) { o.demo = true }
}

// WithBaseURL overrides the REST base URL.
func WithBaseURL(u string) Option {
	return func(o *clientOptions) { o.baseURL = u }
}

// WithWSURL overrides the WebSocket URL.
func WithWSURL(u string) Option {
	return func(o *clientOptions) { o.wsURL = u }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) { o.httpClient = hc }
}

// New builds a Client from an access key id and the path to its RSA
// private key. Key loading happens here, once; a bad key fails
// construction rather than the first call.
func New(keyID, keyPath string, opts ...Option) (*Client, error) {
	signer, err := NewSigner(keyID, keyPath)
	if err != nil {
		return nil, err
	}
	return newClient(signer, opts...)
}

// NewWithSigner builds a Client around an existing signer.
func NewWithSigner(signer *Signer, opts ...Option) (*Client, error) {
	if signer == nil {
		return nil, fmt.Errorf("kalshi: signer is required")
	}
	return newClient(signer, opts...)
}

func newClient(signer *Signer, opts ...Option) (*Client, error) {
	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	baseURL, wsURL := prodBaseURL, prodWSURL
	if o.demo {
		baseURL, wsURL = demoBaseURL, demoWSURL
	}
	if o.baseURL != "" {
		baseURL = o.baseURL
	}
	if o.wsURL != "" {
		wsURL = o.wsURL
	}

	return &Client{
		signer:    signer,
		transport: newTransport(baseURL, signer, o.httpClient),
		baseURL:   baseURL,
		wsURL:     wsURL,
	}, nil
}

// FromEnv builds a Client from the environment (a .env file is honored):
// KALSHI_API_KEY_ID, KALSHI_PRIVATE_KEY_PATH, and KALSHI_DEMO=true for
// the demo environment.
func FromEnv(opts ...Option) (*Client, error) {
	env := config.Load()
	if env.APIKeyID == "" || env.PrivateKeyPath == "" {
		return nil, fmt.Errorf("kalshi: KALSHI_API_KEY_ID and KALSHI_PRIVATE_KEY_PATH must be set")
	}
	if env.Demo {
		opts = append([]Option{WithDemo()}, opts...)
	}
	return New(env.APIKeyID, env.PrivateKeyPath, opts...)
}

// BaseURL returns the REST base URL the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// WSURL returns the WebSocket URL the client targets.
func (c *Client) WSURL() string { return c.wsURL }

// Portfolio returns the account's portfolio service (balance, positions,
// orders, fills). Built on first use, then memoized.
func (c *Client) Portfolio() *PortfolioService {
	c.portfolioOnce.Do(func() {
		c.portfolio = &PortfolioService{transport: c.transport}
	})
	return c.portfolio
}

// Exchange returns the exchange status service.
func (c *Client) Exchange() *ExchangeService {
	c.exchangeOnce.Do(func() {
		c.exchange = &ExchangeService{transport: c.transport}
	})
	return c.exchange
}

// APIKeys returns the API key management service.
func (c *Client) APIKeys() *APIKeysService {
	c.apiKeysOnce.Do(func() {
		c.apiKeys = &APIKeysService{transport: c.transport}
	})
	return c.apiKeys
}

// Markets returns the market data service.
func (c *Client) Markets() *MarketsService {
	c.marketsOnce.Do(func() {
		c.markets = newMarketsService(c.transport)
	})
	return c.markets
}

// Feed returns a new, independent feed connection bound to the client's
// credentials. Feeds are never shared: each call owns its socket,
// subscriptions, and metrics.
func (c *Client) Feed() *Feed {
	return NewFeed(FeedConfig{URL: c.wsURL}, c.signer)
}

// FeedWithConfig returns a new feed with explicit timing configuration.
// cfg.URL defaults to the client's WebSocket URL when empty.
func (c *Client) FeedWithConfig(cfg FeedConfig) *Feed {
	if cfg.URL == "" {
		cfg.URL = c.wsURL
	}
	return NewFeed(cfg, c.signer)
}
