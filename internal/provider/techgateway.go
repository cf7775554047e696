package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/delivery-router/internal/domain"
)

type techGatewayRequest struct {
	To       string               `json:"to"`
	Message  string               `json:"message"`
	Template *techGatewayTemplate `json:"template,omitempty"`
	Options  techGatewayOptions   `json:"options"`
}

type techGatewayTemplate struct {
	Name       string           `json:"name"`
	Language   string           `json:"language"`
	Components []map[string]any `json:"components,omitempty"`
}

type techGatewayOptions struct {
	ImageURL    string         `json:"imageUrl,omitempty"`
	DocumentURL string         `json:"documentUrl,omitempty"`
	Filename    string         `json:"filename,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type techGatewayResponse struct {
	Success   bool            `json:"success"`
	MessageID string          `json:"messageId"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
}

// TechGatewayAdapter delegates delivery to an externally managed gateway that
// talks to the messaging platform on the tenant's behalf.
type TechGatewayAdapter struct {
	client *resty.Client
}

func NewTechGatewayAdapter() (*TechGatewayAdapter, error) {
	client := resty.New()
	client.SetTimeout(defaultSendTimeout)
	client.SetRetryCount(0)

	return NewTechGatewayAdapterWithClient(client)
}

func NewTechGatewayAdapterWithClient(client *resty.Client) (*TechGatewayAdapter, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultSendTimeout)
	}
	client.SetRetryCount(0)

	return &TechGatewayAdapter{client: client}, nil
}

func (a *TechGatewayAdapter) Send(ctx context.Context, cfg domain.TenantConfig, to string, req domain.DeliveryRequest) (*Response, error) {
	if a == nil || a.client == nil {
		return nil, fmt.Errorf("adapter is not initialized")
	}

	endpoint := strings.TrimSpace(cfg.TechGateway.Endpoint)
	if endpoint == "" {
		return nil, &Error{Message: "tech provider gateway endpoint is not configured"}
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, &Error{Message: "invalid tech provider gateway endpoint", Cause: err}
	}

	body := techGatewayRequest{
		To:      to,
		Message: req.Body,
		Options: techGatewayOptions{
			ImageURL:    req.Media.ImageURL,
			DocumentURL: req.Media.DocumentURL,
			Filename:    req.Media.Filename,
			Metadata:    req.Metadata,
		},
	}
	if req.Template != nil {
		body.Template = &techGatewayTemplate{
			Name:       req.Template.Name,
			Language:   req.Template.Language,
			Components: req.Template.Components,
		}
	}

	response, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Api-Key", cfg.TechGateway.APIKey).
		SetBody(body).
		Post(endpoint)
	if err != nil {
		return nil, &Error{
			Message:   "tech provider gateway request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode < http.StatusOK || statusCode >= http.StatusMultipleChoices {
		return nil, &Error{
			StatusCode: statusCode,
			Message:    fmt.Sprintf("tech provider gateway returned status %d", statusCode),
			Transient:  isTransientHTTPStatus(statusCode),
		}
	}

	var parsed techGatewayResponse
	if err := json.Unmarshal(response.Body(), &parsed); err != nil {
		return nil, &Error{
			StatusCode: statusCode,
			Message:    "tech provider gateway returned malformed response",
			Cause:      err,
		}
	}
	if !parsed.Success {
		message := strings.TrimSpace(parsed.Error)
		if message == "" {
			message = "tech provider gateway rejected the message"
		}
		return nil, &Error{StatusCode: statusCode, Message: message}
	}

	return &Response{
		StatusCode: statusCode,
		Body:       responseBody,
		MessageID:  parsed.MessageID,
	}, nil
}
