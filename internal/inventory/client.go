// Package inventory contains the HTTP client for the inventory collaborator.
// It wraps reserve/release in bounded retry: transient failures (transport
// errors, 5xx) are retried with exponential backoff, while a definitive
// rejection such as insufficient stock short-circuits immediately.
package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ecomsagas/fulfillment/internal/pkg/retry"
	"github.com/ecomsagas/fulfillment/internal/saga"
)

const (
	reservePath = "/api/products/reserve"
	releasePath = "/api/products/release"
)

// Error is a reservation call failure.
type Error struct {
	Op         string // "reserve" or "release"
	StatusCode int    // 0 when the transport failed before a response
	Transient  bool
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("inventory %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("inventory %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type commandRequest struct {
	OrderID string        `json:"orderId"`
	Items   []reserveItem `json:"items"`
}

type reserveItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type commandResponse struct {
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// Client talks to the inventory collaborator over HTTP JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retryCfg   retry.Config
	logger     *slog.Logger
}

// NewClient builds a Client for the collaborator at baseURL (no trailing
// slash required). Outbound requests carry OTel spans via otelhttp.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   5 * time.Second,
		},
		retryCfg: retry.DefaultConfig(),
		logger:   logger,
	}
}

// NewClientWithHTTPClient injects a custom http.Client and retry policy (tests).
func NewClientWithHTTPClient(baseURL string, httpClient *http.Client, cfg retry.Config, logger *slog.Logger) *Client {
	return &Client{baseURL: baseURL, httpClient: httpClient, retryCfg: cfg, logger: logger}
}

var _ saga.ReservationClient = (*Client)(nil)

// Reserve asks the collaborator to reserve stock for the order's line items.
// A nil return means every item was reserved.
func (c *Client) Reserve(ctx context.Context, orderID string, items []saga.LineItem) error {
	return retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		return c.post(ctx, "reserve", reservePath, orderID, items)
	})
}

// Release returns previously reserved stock. A collaborator that has no
// reservation on record reports success=false; that is treated as a no-op so
// a redelivered release cannot double-restore stock.
func (c *Client) Release(ctx context.Context, orderID string, items []saga.LineItem) error {
	return retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		return c.post(ctx, "release", releasePath, orderID, items)
	})
}

func (c *Client) post(ctx context.Context, op, path, orderID string, items []saga.LineItem) error {
	reqItems := make([]reserveItem, len(items))
	for i, it := range items {
		reqItems[i] = reserveItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	body, err := json.Marshal(commandRequest{OrderID: orderID, Items: reqItems})
	if err != nil {
		return retry.Permanent(&Error{Op: op, Err: fmt.Errorf("marshal request: %w", err)})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(&Error{Op: op, Err: fmt.Errorf("build request: %w", err)})
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Transport-level failure: retryable.
		return &Error{Op: op, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		respBody, _ := io.ReadAll(resp.Body)
		return &Error{Op: op, StatusCode: resp.StatusCode, Transient: true, Err: fmt.Errorf("%s", string(respBody))}
	case resp.StatusCode >= 400:
		respBody, _ := io.ReadAll(resp.Body)
		return retry.Permanent(&Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", string(respBody))})
	}

	var result commandResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return retry.Permanent(&Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)})
	}

	if !result.Success {
		if op == "release" {
			c.logger.WarnContext(ctx, "nothing to release for order", "order_id", orderID)
			return nil
		}
		msg := result.ErrorMessage
		if msg == "" {
			msg = "reservation rejected"
		}
		return retry.Permanent(&Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", msg)})
	}

	return nil
}
