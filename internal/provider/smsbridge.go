package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/delivery-router/internal/domain"
)

// SMSBridgeAdapter transmits plain-text messages through a generic HTTP SMS
// bridge with basic-auth credentials and a form-encoded body. Rich media and
// templates are flattened to the text body; the bridge carries text only.
type SMSBridgeAdapter struct {
	client *resty.Client
}

func NewSMSBridgeAdapter() (*SMSBridgeAdapter, error) {
	client := resty.New()
	client.SetTimeout(defaultSendTimeout)
	client.SetRetryCount(0)

	return NewSMSBridgeAdapterWithClient(client)
}

func NewSMSBridgeAdapterWithClient(client *resty.Client) (*SMSBridgeAdapter, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultSendTimeout)
	}
	client.SetRetryCount(0)

	return &SMSBridgeAdapter{client: client}, nil
}

func (a *SMSBridgeAdapter) Send(ctx context.Context, cfg domain.TenantConfig, to string, req domain.DeliveryRequest) (*Response, error) {
	if a == nil || a.client == nil {
		return nil, fmt.Errorf("adapter is not initialized")
	}

	endpoint := strings.TrimSpace(cfg.SMSBridge.Endpoint)
	if endpoint == "" {
		return nil, &Error{Message: "sms bridge endpoint is not configured"}
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, &Error{Message: "invalid sms bridge endpoint", Cause: err}
	}

	response, err := a.client.R().
		SetContext(ctx).
		SetBasicAuth(cfg.SMSBridge.AccountSID, cfg.SMSBridge.AuthToken).
		SetFormData(map[string]string{
			"From": cfg.SMSBridge.From,
			"To":   to,
			"Body": req.Body,
		}).
		Post(endpoint)
	if err != nil {
		return nil, &Error{
			Message:   "sms bridge request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &Response{
			StatusCode: statusCode,
			Body:       responseBody,
			MessageID:  bridgeMessageID(response),
		}, nil
	}

	return nil, &Error{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("sms bridge returned status %d", statusCode),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func bridgeMessageID(response *resty.Response) string {
	if response == nil {
		return ""
	}

	for _, key := range []string{"X-Message-ID", "X-Message-Id", "X-Request-ID", "X-Request-Id"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
