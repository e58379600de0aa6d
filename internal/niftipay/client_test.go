package niftipay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestUnconfiguredClientShortCircuits(t *testing.T) {
	c := New("", "")

	if c.Configured() {
		t.Fatalf("client without credentials must not report configured")
	}
	if _, err := c.Networks(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := c.CreateInvoice(context.Background(), "polygon", "usdc", 1000, "ref"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestNetworks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/networks" || r.Method != http.MethodGet {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key-123" {
			t.Fatalf("missing bearer auth, got %q", r.Header.Get("Authorization"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"networks": []map[string]string{
				{"network": "polygon", "asset": "usdc", "label": "USDC on Polygon"},
				{"network": "ethereum", "asset": "usdt"},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "key-123")
	networks, err := c.Networks(context.Background())
	if err != nil {
		t.Fatalf("networks: %v", err)
	}
	if len(networks) != 2 {
		t.Fatalf("expected 2 networks, got %d", len(networks))
	}
	if networks[0].Network != "polygon" || networks[0].Asset != "usdc" {
		t.Fatalf("unexpected first network %+v", networks[0])
	}
}

func TestCreateInvoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/invoices" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req invoiceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Network != "polygon" || req.AmountCents != 75000 || req.Reference != "idem-9" {
			t.Fatalf("unexpected invoice request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":           "inv-1",
			"network":      req.Network,
			"asset":        req.Asset,
			"amount_cents": req.AmountCents,
			"address":      "0xabc123",
			"status":       "pending",
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "key-123")
	invoice, err := c.CreateInvoice(context.Background(), "polygon", "usdc", 75000, "idem-9")
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	if invoice.ID != "inv-1" {
		t.Fatalf("expected invoice inv-1, got %+v", invoice)
	}
}

func TestCreateInvoiceValidatesInput(t *testing.T) {
	c := New("http://unused.invalid", "key-123")
	if _, err := c.CreateInvoice(context.Background(), "", "usdc", 1000, ""); err == nil {
		t.Fatalf("expected rejection of empty network")
	}
	if _, err := c.CreateInvoice(context.Background(), "polygon", "usdc", 0, ""); err == nil {
		t.Fatalf("expected rejection of zero amount")
	}
}

func TestAPIKeyRejectionMapsToNotConfigured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, "revoked-key")
	if _, err := c.Networks(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured on 401, got %v", err)
	}
}

func TestAPIErrorBodySurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "asset not enabled"})
	}))
	defer srv.Close()

	c := New(srv.URL, "key-123")
	_, err := c.CreateInvoice(context.Background(), "polygon", "dai", 1000, "")
	if err == nil || err.Error() != "niftipay: asset not enabled" {
		t.Fatalf("expected surfaced api error, got %v", err)
	}
}
