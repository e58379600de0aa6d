// Package niftipay is a minimal client for the Niftipay crypto payment
// provider: listing the networks/assets enabled for the tenant and creating
// invoices during checkout.
package niftipay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"tokodesk/backend/internal/domain"
)

var ErrNotConfigured = errors.New("niftipay not configured for tenant")

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func New(baseURL string, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.baseURL != "" && c.apiKey != ""
}

// Networks returns the chain/asset combinations the tenant may charge in.
func (c *Client) Networks(ctx context.Context) ([]domain.NiftipayNetwork, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	var payload struct {
		Networks []domain.NiftipayNetwork `json:"networks"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/networks", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Networks, nil
}

type invoiceRequest struct {
	Network     string `json:"network"`
	Asset       string `json:"asset"`
	AmountCents int64  `json:"amount_cents"`
	Reference   string `json:"reference,omitempty"`
}

// CreateInvoice opens a crypto invoice for one payment split.
func (c *Client) CreateInvoice(ctx context.Context, network string, asset string, amountCents int64, reference string) (*domain.NiftipayInvoice, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if network == "" || asset == "" || amountCents < 1 {
		return nil, fmt.Errorf("niftipay: invalid invoice request")
	}

	var invoice domain.NiftipayInvoice
	req := invoiceRequest{
		Network:     network,
		Asset:       asset,
		AmountCents: amountCents,
		Reference:   reference,
	}
	if err := c.do(ctx, http.MethodPost, "/v1/invoices", req, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (c *Client) do(ctx context.Context, method string, path string, body any, dest any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrNotConfigured
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("niftipay: %s", apiErr.Error)
		}
		return fmt.Errorf("niftipay: unexpected status %d", resp.StatusCode)
	}

	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
