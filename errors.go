package kalshi

import (
	"encoding/json"
	"fmt"
)

// APIError is the base error for any non-2xx Kalshi response. It carries
// enough context to reproduce the failing call: HTTP status, the server's
// error code and message, the method and endpoint, and the outgoing
// request body for non-GET calls.
type APIError struct {
	StatusCode   int
	Code         string
	Message      string
	Method       string
	Endpoint     string
	RequestBody  []byte
	ResponseBody []byte
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("kalshi: %s %s: %d %s: %s", e.Method, e.Endpoint, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("kalshi: %s %s: %d: %s", e.Method, e.Endpoint, e.StatusCode, e.Message)
}

// AuthenticationError is returned on HTTP 401: invalid or expired
// signature, or a misconfigured key.
type AuthenticationError struct{ APIError }

// ResourceNotFoundError is returned on HTTP 404.
type ResourceNotFoundError struct{ APIError }

// InsufficientFundsError is returned on HTTP 400 when the server reports
// an insufficient balance for the requested order.
type InsufficientFundsError struct{ APIError }

// OrderRejectedError is returned on HTTP 400 with an order-specific
// rejection code (market closed, invalid price, self trade, ...).
type OrderRejectedError struct{ APIError }

var orderRejectionCodes = map[string]bool{
	"order_rejected":     true,
	"market_closed":      true,
	"market_settled":     true,
	"invalid_price":      true,
	"self_trade":         true,
	"post_only_rejected": true,
}

// errorBody matches both shapes Kalshi uses for error payloads:
// {"error":{"code":...,"message":...}} and the flat {"code":...,"message":...}.
type errorBody struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// newAPIError translates a non-2xx response into the typed hierarchy.
func newAPIError(status int, method, endpoint string, reqBody, respBody []byte) error {
	var parsed errorBody
	_ = json.Unmarshal(respBody, &parsed)

	code, message := parsed.Code, parsed.Message
	if parsed.Error != nil {
		code, message = parsed.Error.Code, parsed.Error.Message
	}

	base := APIError{
		StatusCode:   status,
		Code:         code,
		Message:      message,
		Method:       method,
		Endpoint:     endpoint,
		RequestBody:  reqBody,
		ResponseBody: respBody,
	}

	switch {
	case status == 401:
		return &AuthenticationError{base}
	case status == 404:
		return &ResourceNotFoundError{base}
	case status == 400 && (code == "insufficient_funds" || code == "insufficient_balance"):
		return &InsufficientFundsError{base}
	case status == 400 && orderRejectionCodes[code]:
		return &OrderRejectedError{base}
	default:
		return &base
	}
}
