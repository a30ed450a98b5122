package kalshi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/tradeforge/kalshi-go/internal/telemetry"
)

const defaultRequestTimeout = 10 * time.Second

// transport executes signed REST calls against one Kalshi host.
//
// Calls are synchronous and blocking with a fixed per-request timeout.
// The underlying http.Client is safe for concurrent use, so callers may
// issue requests from multiple goroutines; reads and writes go through
// separate rate limiters sized for Kalshi's published limits.
type transport struct {
	baseURL      string
	httpClient   *http.Client
	signer       *Signer
	readLimiter  *rate.Limiter
	writeLimiter *rate.Limiter
}

func newTransport(baseURL string, signer *Signer, httpClient *http.Client) *transport {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &transport{
		baseURL:      baseURL,
		httpClient:   httpClient,
		signer:       signer,
		readLimiter:  rate.NewLimiter(rate.Limit(20), 20),
		writeLimiter: rate.NewLimiter(rate.Limit(10), 10),
	}
}

// do executes one signed request. path may carry a query string; the
// signature covers the path only. Non-2xx responses come back as the
// typed errors in errors.go; the raw body is returned for 2xx.
func (t *transport) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	lim := t.readLimiter
	if method != http.MethodGet {
		lim = t.writeLimiter
	}
	waitStart := time.Now()
	if err := lim.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	telemetry.Metrics.RateLimiterWait.Record(time.Since(waitStart))

	var reqBody []byte
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = data
		bodyReader = bytes.NewReader(data)
	}

	fullURL := t.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if err := t.signer.SignRequest(req); err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		telemetry.Metrics.RequestErrors.Inc()
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	telemetry.Metrics.RequestsSent.Inc()
	telemetry.Debugf("kalshi: %s %s -> %d (%s)", method, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		telemetry.Metrics.RequestErrors.Inc()
		return nil, newAPIError(resp.StatusCode, method, path, reqBody, respBody)
	}

	return respBody, nil
}

// get performs a GET and unmarshals the 2xx response into result.
func (t *transport) get(ctx context.Context, path string, query url.Values, result any) error {
	body, err := t.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// post performs a POST with a JSON body and unmarshals the response.
func (t *transport) post(ctx context.Context, path string, body, result any) error {
	respBody, err := t.do(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// delete performs a DELETE.
func (t *transport) delete(ctx context.Context, path string) error {
	_, err := t.do(ctx, http.MethodDelete, path, nil, nil)
	return err
}
