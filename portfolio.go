package kalshi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
)

// PortfolioService reads and mutates the authenticated account: balance,
// positions, orders, fills. Order state here is a read-mostly snapshot;
// the private fill channel on the feed is the push-side complement.
type PortfolioService struct {
	transport *transport
}

// Balance is the account balance in cents.
type Balance struct {
	Balance int64 `json:"balance"`
	Payout  int64 `json:"payout"`
}

func (s *PortfolioService) GetBalance(ctx context.Context) (*Balance, error) {
	var resp Balance
	if err := s.transport.get(ctx, apiPrefix+"/portfolio/balance", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Position is the account's exposure in one market.
type Position struct {
	Ticker         string `json:"ticker"`
	Position       int    `json:"position"`
	MarketExposure int64  `json:"market_exposure"`
	RealizedPnl    int64  `json:"realized_pnl"`
	RestingOrders  int    `json:"resting_orders_count"`
}

func (s *PortfolioService) GetPositions(ctx context.Context) ([]Position, error) {
	var resp struct {
		MarketPositions []Position `json:"market_positions"`
	}
	if err := s.transport.get(ctx, apiPrefix+"/portfolio/positions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.MarketPositions, nil
}

// CreateOrderRequest is the payload for placing an order. Exactly one of
// YesPrice/NoPrice applies for limit orders; market orders omit both.
type CreateOrderRequest struct {
	Ticker        string `json:"ticker"`
	Action        string `json:"action"` // "buy" or "sell"
	Side          string `json:"side"`   // "yes" or "no"
	Type          string `json:"type"`   // "limit" or "market"
	Count         int    `json:"count"`
	YesPrice      int    `json:"yes_price,omitempty"`
	NoPrice       int    `json:"no_price,omitempty"`
	ClientOrderID string `json:"client_order_id,omitempty"`
	PostOnly      bool   `json:"post_only,omitempty"`
	Expiration    int64  `json:"expiration_ts,omitempty"`
}

// Order is the server's view of one order. Status runs
// resting -> (partially filled) -> executed | canceled.
type Order struct {
	OrderID        string `json:"order_id"`
	ClientOrderID  string `json:"client_order_id"`
	Ticker         string `json:"ticker"`
	Action         string `json:"action"`
	Side           string `json:"side"`
	Type           string `json:"type"`
	Status         string `json:"status"`
	YesPrice       int    `json:"yes_price"`
	NoPrice        int    `json:"no_price"`
	Count          int    `json:"count"`
	RemainingCount int    `json:"remaining_count"`
	CreatedTime    string `json:"created_time"`
}

// PlaceOrder submits an order. A missing ClientOrderID is filled with a
// fresh UUID so retried submissions stay idempotent server-side.
func (s *PortfolioService) PlaceOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if req.ClientOrderID == "" {
		req.ClientOrderID = uuid.NewString()
	}

	var resp struct {
		Order Order `json:"order"`
	}
	if err := s.transport.post(ctx, apiPrefix+"/portfolio/orders", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Order, nil
}

// GetOrder re-fetches one order by server id.
func (s *PortfolioService) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	var resp struct {
		Order Order `json:"order"`
	}
	path := fmt.Sprintf("%s/portfolio/orders/%s", apiPrefix, orderID)
	if err := s.transport.get(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Order, nil
}

// OrdersParams filters GetOrders.
type OrdersParams struct {
	Ticker string
	Status string
	Limit  int
	Cursor string
}

// OrdersPage is one page of orders plus the cursor for the next.
type OrdersPage struct {
	Orders []Order `json:"orders"`
	Cursor string  `json:"cursor"`
}

func (s *PortfolioService) GetOrders(ctx context.Context, params OrdersParams) (*OrdersPage, error) {
	query := url.Values{}
	if params.Ticker != "" {
		query.Set("ticker", params.Ticker)
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

	var page OrdersPage
	if err := s.transport.get(ctx, apiPrefix+"/portfolio/orders", query, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// CancelOrder cancels a resting order.
func (s *PortfolioService) CancelOrder(ctx context.Context, orderID string) error {
	path := fmt.Sprintf("%s/portfolio/orders/%s", apiPrefix, orderID)
	return s.transport.delete(ctx, path)
}

// Fill is one execution against an account order.
type Fill struct {
	TradeID     string `json:"trade_id"`
	OrderID     string `json:"order_id"`
	Ticker      string `json:"ticker"`
	Side        string `json:"side"`
	Action      string `json:"action"`
	Count       int    `json:"count"`
	YesPrice    int    `json:"yes_price"`
	NoPrice     int    `json:"no_price"`
	IsTaker     bool   `json:"is_taker"`
	CreatedTime string `json:"created_time"`
}

// FillsParams filters GetFills.
type FillsParams struct {
	Ticker  string
	OrderID string
	Limit   int
	Cursor  string
}

// FillsPage is one page of fills plus the cursor for the next.
type FillsPage struct {
	Fills  []Fill `json:"fills"`
	Cursor string `json:"cursor"`
}

func (s *PortfolioService) GetFills(ctx context.Context, params FillsParams) (*FillsPage, error) {
	query := url.Values{}
	if params.Ticker != "" {
		query.Set("ticker", params.Ticker)
	}
	if params.OrderID != "" {
		query.Set("order_id", params.OrderID)
	}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Cursor != "" {
		query.Set("cursor", params.Cursor)
	}

	var page FillsPage
	if err := s.transport.get(ctx, apiPrefix+"/portfolio/fills", query, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
