package kalshi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Market is one binary market. Identity (the ticker) is immutable;
// bid/ask move with the quote. Prices are cents.
type Market struct {
	Ticker       string `json:"ticker"`
	EventTicker  string `json:"event_ticker"`
	Title        string `json:"title"`
	Status       string `json:"status"`
	YesBid       int    `json:"yes_bid"`
	YesAsk       int    `json:"yes_ask"`
	LastPrice    int    `json:"last_price"`
	Volume       int64  `json:"volume"`
	OpenInterest int64  `json:"open_interest"`
	Result       string `json:"result"`
	CloseTime    string `json:"close_time"`
}

// NoBid is the no-side bid, complementary to the yes ask.
func (m *Market) NoBid() int { return 100 - m.YesAsk }

// NoAsk is the no-side ask, complementary to the yes bid.
func (m *Market) NoAsk() int { return 100 - m.YesBid }

// OrderbookSnapshot is the REST view of a market's book, in the same
// (price, quantity) level encoding the feed uses.
type OrderbookSnapshot struct {
	Yes [][2]int `json:"yes"`
	No  [][2]int `json:"no"`
}

// Book loads the snapshot into a fresh Orderbook for ticker.
func (s *OrderbookSnapshot) Book(ticker string) *Orderbook {
	b := NewOrderbook(ticker)
	b.ApplySnapshot(s.Yes, s.No)
	return b
}

// MarketsParams filters GetMarkets.
type MarketsParams struct {
	EventTicker  string
	SeriesTicker string
	Status       string
	Limit        int
	Cursor       string
}

// MarketsPage is one page of markets plus the cursor for the next.
type MarketsPage struct {
	Markets []Market `json:"markets"`
	Cursor  string   `json:"cursor"`
}

const marketCacheTTL = 2 * time.Second

type cachedMarket struct {
	market  *Market
	fetched time.Time
}

// MarketsService reads market data over the signed transport. GetMarket
// calls for the same ticker are deduplicated through a singleflight group
// and served from a short-lived cache, so bursts of lookups (one per feed
// message, say) collapse to one request.
type MarketsService struct {
	transport *transport
	group     singleflight.Group

	mu    sync.Mutex
	cache map[string]cachedMarket
}

func newMarketsService(t *transport) *MarketsService {
	return &MarketsService{
		transport: t,
		cache:     make(map[string]cachedMarket),
	}
}

// GetMarket fetches one market by ticker. The result is the caller's to
// mutate: cached state is copied out, never shared.
func (s *MarketsService) GetMarket(ctx context.Context, ticker string) (*Market, error) {
	s.mu.Lock()
	if c, ok := s.cache[ticker]; ok && time.Since(c.fetched) < marketCacheTTL {
		s.mu.Unlock()
		m := *c.market
		return &m, nil
	}
	s.mu.Unlock()

	v, err, _ := s.group.Do(ticker, func() (any, error) {
		var resp struct {
			Market Market `json:"market"`
		}
		path := fmt.Sprintf("%s/markets/%s", apiPrefix, ticker)
		if err := s.transport.get(ctx, path, nil, &resp); err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.cache[ticker] = cachedMarket{market: &resp.Market, fetched: time.Now()}
		s.mu.Unlock()
		return &resp.Market, nil
	})
	if err != nil {
		return nil, err
	}
	m := *v.(*Market)
	return &m, nil
}

// GetMarkets lists markets matching params.
func (s *MarketsService) GetMarkets(ctx context.Context, params MarketsParams) (*MarketsPage, error) {
	query := url.Values{}
	if params.EventTicker != "" {
		query.Set("event_ticker", params.EventTicker)
	}
	if params.SeriesTicker != "" {
		query.Set("series_ticker", params.SeriesTicker)
	}
	if params.Status != "" {
		query.Set("status", params.Status)
	}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Cursor != "" {
		query.Set("cursor", params.Cursor)
	}

	var page MarketsPage
	if err := s.transport.get(ctx, apiPrefix+"/markets", query, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetOrderbook fetches the current resting book for ticker. depth bounds
// the number of levels per side; 0 means the server default.
func (s *MarketsService) GetOrderbook(ctx context.Context, ticker string, depth int) (*OrderbookSnapshot, error) {
	query := url.Values{}
	if depth > 0 {
		query.Set("depth", strconv.Itoa(depth))
	}

	var resp struct {
		Orderbook OrderbookSnapshot `json:"orderbook"`
	}
	path := fmt.Sprintf("%s/markets/%s/orderbook", apiPrefix, ticker)
	if err := s.transport.get(ctx, path, query, &resp); err != nil {
		return nil, err
	}
	return &resp.Orderbook, nil
}
