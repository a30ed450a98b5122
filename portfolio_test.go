package kalshi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
)

func TestPlaceOrderFillsClientOrderID(t *testing.T) {
	var sent CreateOrderRequest
	tr := testTransport(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&sent)
		json.NewEncoder(w).Encode(map[string]any{
			"order": Order{OrderID: "srv-1", ClientOrderID: sent.ClientOrderID, Status: "resting"},
		})
	})
	svc := &PortfolioService{transport: tr}

	order, err := svc.PlaceOrder(context.Background(), CreateOrderRequest{
		Ticker:   "INXD-25AUG-B5000",
		Action:   "buy",
		Side:     "yes",
		Type:     "limit",
		Count:    10,
		YesPrice: 44,
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}

	if sent.ClientOrderID == "" {
		t.Fatal("client_order_id not auto-filled")
	}
	if _, err := uuid.Parse(sent.ClientOrderID); err != nil {
		t.Errorf("client_order_id %q is not a UUID", sent.ClientOrderID)
	}
	if order.OrderID != "srv-1" || order.Status != "resting" {
		t.Errorf("order = %+v", order)
	}
}

func TestPlaceOrderKeepsExplicitClientOrderID(t *testing.T) {
	var sent CreateOrderRequest
	tr := testTransport(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&sent)
		json.NewEncoder(w).Encode(map[string]any{"order": Order{OrderID: "srv-2"}})
	})
	svc := &PortfolioService{transport: tr}

	_, err := svc.PlaceOrder(context.Background(), CreateOrderRequest{
		Ticker:        "INXD-25AUG-B5000",
		Action:        "buy",
		Side:          "yes",
		Type:          "market",
		Count:         5,
		ClientOrderID: "my-retry-token",
	})
	if err != nil {
		t.Fatal(err)
	}
	if sent.ClientOrderID != "my-retry-token" {
		t.Errorf("client_order_id = %q, want caller's token", sent.ClientOrderID)
	}
}

func TestGetBalance(t *testing.T) {
	tr := testTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"balance":250000,"payout":1000}`))
	})
	svc := &PortfolioService{transport: tr}

	bal, err := svc.GetBalance(context.Background())
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if bal.Balance != 250000 || bal.Payout != 1000 {
		t.Errorf("balance = %+v", bal)
	}
}

func TestGetPositions(t *testing.T) {
	tr := testTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"market_positions":[
			{"ticker":"A","position":100,"market_exposure":4400},
			{"ticker":"B","position":-50}]}`))
	})
	svc := &PortfolioService{transport: tr}

	positions, err := svc.GetPositions(context.Background())
	if err != nil {
		t.Fatalf("GetPositions: %v", err)
	}
	if len(positions) != 2 || positions[0].Position != 100 || positions[1].Position != -50 {
		t.Errorf("positions = %+v", positions)
	}
}

func TestCancelOrder(t *testing.T) {
	var gotMethod, gotPath string
	tr := testTransport(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.Write([]byte(`{}`))
	})
	svc := &PortfolioService{transport: tr}

	if err := svc.CancelOrder(context.Background(), "srv-1"); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/trade-api/v2/portfolio/orders/srv-1" {
		t.Errorf("%s %s", gotMethod, gotPath)
	}
}

func TestGetFillsQueryParams(t *testing.T) {
	var gotQuery string
	tr := testTransport(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(FillsPage{Fills: []Fill{{TradeID: "t-1", Count: 10}}})
	})
	svc := &PortfolioService{transport: tr}

	page, err := svc.GetFills(context.Background(), FillsParams{OrderID: "srv-1", Limit: 20})
	if err != nil {
		t.Fatalf("GetFills: %v", err)
	}
	if len(page.Fills) != 1 || page.Fills[0].TradeID != "t-1" {
		t.Errorf("fills = %+v", page.Fills)
	}
	if gotQuery != "limit=20&order_id=srv-1" {
		t.Errorf("query = %q", gotQuery)
	}
}
