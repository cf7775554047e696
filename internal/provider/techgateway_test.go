package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kursadbilgin/delivery-router/internal/domain"
)

func TestTechGatewayAdapterSendSuccess(t *testing.T) {
	t.Parallel()

	var gotBody techGatewayRequest
	var gotAPIKey string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("X-Api-Key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"messageId":"gw-42","data":{"queued":true}}`))
	}))
	defer server.Close()

	adapter, err := NewTechGatewayAdapter()
	if err != nil {
		t.Fatalf("NewTechGatewayAdapter() error = %v", err)
	}

	cfg := domain.TenantConfig{
		TechGateway: domain.TechGatewayCredentials{Endpoint: server.URL, APIKey: "key-1"},
	}
	resp, err := adapter.Send(context.Background(), cfg, "+919876543210", domain.DeliveryRequest{
		Body:  "your order shipped",
		Media: domain.RichMedia{ImageURL: "https://cdn.example/i.png"},
		Template: &domain.Template{
			Name:     "shipping_update",
			Language: "en",
		},
		Metadata: map[string]any{"orderId": "o-1"},
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if resp.MessageID != "gw-42" {
		t.Fatalf("MessageID = %q, want gw-42", resp.MessageID)
	}
	if gotAPIKey != "key-1" {
		t.Fatalf("api key = %q, want key-1", gotAPIKey)
	}
	if gotBody.To != "+919876543210" {
		t.Fatalf("to = %q", gotBody.To)
	}
	if gotBody.Message != "your order shipped" {
		t.Fatalf("message = %q", gotBody.Message)
	}
	if gotBody.Template == nil || gotBody.Template.Name != "shipping_update" {
		t.Fatalf("template = %+v", gotBody.Template)
	}
	if gotBody.Options.ImageURL != "https://cdn.example/i.png" {
		t.Fatalf("options.imageUrl = %q", gotBody.Options.ImageURL)
	}
	if gotBody.Options.Metadata["orderId"] != "o-1" {
		t.Fatalf("options.metadata = %+v", gotBody.Options.Metadata)
	}
}

func TestTechGatewayAdapterRejection(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":false,"error":"tenant quota exhausted"}`))
	}))
	defer server.Close()

	adapter, err := NewTechGatewayAdapter()
	if err != nil {
		t.Fatalf("NewTechGatewayAdapter() error = %v", err)
	}

	cfg := domain.TenantConfig{TechGateway: domain.TechGatewayCredentials{Endpoint: server.URL}}
	_, sendErr := adapter.Send(context.Background(), cfg, "+919876543210", domain.DeliveryRequest{Body: "hi"})
	if sendErr == nil {
		t.Fatal("Send() expected error when gateway reports success=false")
	}
	if got := sendErr.Error(); !strings.Contains(got, "quota exhausted") {
		t.Fatalf("error = %q, want gateway message surfaced", got)
	}
}
