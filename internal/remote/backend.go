// Package remote holds the clients for the collaborators of the sync
// core: the authoritative order backend and the kitchen printer service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tabletrack/api/internal/model"
)

// ErrUnavailable covers every remote failure mode the same way: network
// error, timeout, non-2xx, success:false, or no backend configured at
// all. Callers never surface it as a hard failure; it triggers the local
// fallback path exactly once (no automatic retry, to avoid duplicate
// order numbers).
var ErrUnavailable = errors.New("remote backend unavailable")

// PlaceOrderRequest is the payload sent to the place-order function. The
// order carries no number yet; the backend assigns the authoritative one.
type PlaceOrderRequest struct {
	BranchID      string            `json:"branch_id"`
	Order         model.ActiveOrder `json:"order"`
	SendToKitchen bool              `json:"send_to_kitchen"`
}

// ConfirmPaymentRequest asks the backend to atomically move an order from
// the active to the completed store.
type ConfirmPaymentRequest struct {
	BranchID string               `json:"branch_id"`
	OrderID  string               `json:"order_id"`
	Order    model.CompletedOrder `json:"order"`
}

// Backend is the remote order authority.
type Backend interface {
	// PlaceOrder returns the authoritative, globally-unique order number.
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (int, error)
	ConfirmPayment(ctx context.Context, req ConfirmPaymentRequest) error
}

type backendResponse struct {
	Success     bool   `json:"success"`
	OrderNumber int    `json:"order_number,omitempty"`
	Error       string `json:"error,omitempty"`
}

// HTTPBackend calls the order backend over HTTP with a per-call timeout.
type HTTPBackend struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPBackend creates a backend client. An empty baseURL yields a
// client whose calls always fail with ErrUnavailable, which puts the
// whole station in permanent local-fallback mode.
func NewHTTPBackend(baseURL string, timeout time.Duration) *HTTPBackend {
	return &HTTPBackend{
		baseURL: baseURL,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

func (b *HTTPBackend) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (int, error) {
	var resp backendResponse
	if err := b.call(ctx, "/placeOrder", req, &resp); err != nil {
		return 0, err
	}
	if resp.OrderNumber <= 0 {
		return 0, fmt.Errorf("%w: backend returned no order number", ErrUnavailable)
	}
	return resp.OrderNumber, nil
}

func (b *HTTPBackend) ConfirmPayment(ctx context.Context, req ConfirmPaymentRequest) error {
	var resp backendResponse
	return b.call(ctx, "/confirmPayment", req, &resp)
}

func (b *HTTPBackend) call(ctx context.Context, path string, payload any, out *backendResponse) error {
	if b.baseURL == "" {
		return fmt.Errorf("%w: no backend configured", ErrUnavailable)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := b.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return fmt.Errorf("%w: %s returned %d", ErrUnavailable, path, httpResp.StatusCode)
	}
	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", ErrUnavailable, path, err)
	}
	if !out.Success {
		return fmt.Errorf("%w: %s", ErrUnavailable, out.Error)
	}
	return nil
}
