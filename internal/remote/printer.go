package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tabletrack/api/internal/model"
)

// Printer sends kitchen tickets. A print failure never affects order
// state; the service surfaces it as a warning only.
type Printer interface {
	PrintKitchenOrder(ctx context.Context, order model.ActiveOrder, cfg model.PrinterConfig) error
}

// HTTPPrinter posts the order to the printer service endpoint configured
// per branch.
type HTTPPrinter struct {
	timeout time.Duration
	client  *http.Client
}

func NewHTTPPrinter(timeout time.Duration) *HTTPPrinter {
	return &HTTPPrinter{
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *HTTPPrinter) PrintKitchenOrder(ctx context.Context, order model.ActiveOrder, cfg model.PrinterConfig) error {
	body, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encode kitchen ticket: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build print request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("print to %s: %w", cfg.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("printer %s returned %d", cfg.Name, resp.StatusCode)
	}
	return nil
}
