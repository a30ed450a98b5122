package kalshi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func testTransport(t *testing.T, handler http.HandlerFunc) *transport {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	signer, _ := testSigner(t)
	return newTransport(srv.URL, signer, srv.Client())
}

func TestTransportGetParsesResponse(t *testing.T) {
	var gotPath, gotQuery, gotKey string
	tr := testTransport(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("KALSHI-ACCESS-KEY")
		w.Write([]byte(`{"balance":12345}`))
	})

	var out struct {
		Balance int `json:"balance"`
	}
	q := url.Values{"limit": {"5"}}
	if err := tr.get(context.Background(), "/trade-api/v2/portfolio/balance", q, &out); err != nil {
		t.Fatalf("get: %v", err)
	}

	if out.Balance != 12345 {
		t.Errorf("balance = %d, want 12345", out.Balance)
	}
	if gotPath != "/trade-api/v2/portfolio/balance" {
		t.Errorf("path = %q", gotPath)
	}
	if gotQuery != "limit=5" {
		t.Errorf("query = %q", gotQuery)
	}
	if gotKey != "test-key-id" {
		t.Errorf("access key header = %q; request was not signed", gotKey)
	}
}

func TestTransportAuthenticationError(t *testing.T) {
	tr := testTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":"invalid_signature","message":"signature verification failed"}}`))
	})

	err := tr.get(context.Background(), "/trade-api/v2/portfolio/balance", nil, nil)
	var authErr *AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("error = %v (%T), want *AuthenticationError", err, err)
	}
	if authErr.StatusCode != 401 || authErr.Code != "invalid_signature" {
		t.Errorf("status=%d code=%q", authErr.StatusCode, authErr.Code)
	}
	if authErr.Method != http.MethodGet || authErr.Endpoint != "/trade-api/v2/portfolio/balance" {
		t.Errorf("method=%q endpoint=%q", authErr.Method, authErr.Endpoint)
	}
}

func TestTransportNotFoundError(t *testing.T) {
	tr := testTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":"market_not_found","message":"no such market"}`))
	})

	err := tr.get(context.Background(), "/trade-api/v2/markets/NOPE", nil, nil)
	var nfErr *ResourceNotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("error = %v (%T), want *ResourceNotFoundError", err, err)
	}
	if nfErr.Code != "market_not_found" || nfErr.Message != "no such market" {
		t.Errorf("code=%q message=%q", nfErr.Code, nfErr.Message)
	}
}

func TestTransportInsufficientFundsError(t *testing.T) {
	tr := testTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"insufficient_funds","message":"balance too low"}}`))
	})

	body := map[string]any{"ticker": "TEST-MKT", "count": 10}
	err := tr.post(context.Background(), "/trade-api/v2/portfolio/orders", body, nil)
	var fundsErr *InsufficientFundsError
	if !errors.As(err, &fundsErr) {
		t.Fatalf("error = %v (%T), want *InsufficientFundsError", err, err)
	}

	// The error keeps the outgoing request body for debugging.
	var sent map[string]any
	if err := json.Unmarshal(fundsErr.RequestBody, &sent); err != nil {
		t.Fatalf("request body not preserved: %v", err)
	}
	if sent["ticker"] != "TEST-MKT" {
		t.Errorf("request body = %s", fundsErr.RequestBody)
	}
}

func TestTransportOrderRejectedError(t *testing.T) {
	for _, code := range []string{"self_trade", "market_closed", "invalid_price"} {
		tr := testTransport(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"code": code, "message": "rejected"},
			})
		})

		err := tr.post(context.Background(), "/trade-api/v2/portfolio/orders", map[string]any{}, nil)
		var rejErr *OrderRejectedError
		if !errors.As(err, &rejErr) {
			t.Errorf("code %s: error = %v (%T), want *OrderRejectedError", code, err, err)
			continue
		}
		if rejErr.Code != code {
			t.Errorf("code = %q, want %q", rejErr.Code, code)
		}
	}
}

func TestTransportGenericAPIError(t *testing.T) {
	tr := testTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"code":"internal","message":"boom"}}`))
	})

	err := tr.get(context.Background(), "/trade-api/v2/exchange/status", nil, nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v (%T), want *APIError", err, err)
	}
	if apiErr.StatusCode != 500 {
		t.Errorf("status = %d", apiErr.StatusCode)
	}

	// A 400 with an unrecognized code stays a plain APIError too.
	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		t.Error("500 classified as AuthenticationError")
	}
}

func TestTransportBadRequestUnknownCode(t *testing.T) {
	tr := testTransport(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"missing_parameters","message":"ticker required"}}`))
	})

	err := tr.post(context.Background(), "/trade-api/v2/portfolio/orders", map[string]any{}, nil)
	var rejErr *OrderRejectedError
	if errors.As(err, &rejErr) {
		t.Fatal("unknown 400 code classified as OrderRejectedError")
	}
	var fundsErr *InsufficientFundsError
	if errors.As(err, &fundsErr) {
		t.Fatal("unknown 400 code classified as InsufficientFundsError")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v (%T), want *APIError", err, err)
	}
}

func TestTransportDelete(t *testing.T) {
	var gotMethod string
	tr := testTransport(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.Write([]byte(`{}`))
	})

	if err := tr.delete(context.Background(), "/trade-api/v2/portfolio/orders/abc"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("method = %q", gotMethod)
	}
}
