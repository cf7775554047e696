package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/delivery-router/internal/domain"
)

const (
	// DefaultMetaGraphBaseURL is the Cloud API root; override in tests.
	DefaultMetaGraphBaseURL = "https://graph.facebook.com/v19.0"

	defaultSendTimeout = 15 * time.Second

	metaMessagingProduct = "whatsapp"

	// Platform error codes with a stable classification.
	metaCodePermissionDenied    = 10
	metaCodeRecipientNotAllowed = 131030
)

// Wire shapes are bit-exact Cloud API field names; do not rename.
type metaMessagePayload struct {
	MessagingProduct string        `json:"messaging_product"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Text             *metaText     `json:"text,omitempty"`
	Image            *metaMedia    `json:"image,omitempty"`
	Document         *metaDocument `json:"document,omitempty"`
	Template         *metaTemplate `json:"template,omitempty"`
}

type metaText struct {
	Body string `json:"body"`
}

type metaMedia struct {
	Link    string `json:"link"`
	Caption string `json:"caption,omitempty"`
}

type metaDocument struct {
	Link     string `json:"link"`
	Filename string `json:"filename,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

type metaTemplate struct {
	Name       string           `json:"name"`
	Language   metaTemplateLang `json:"language"`
	Components []map[string]any `json:"components,omitempty"`
}

type metaTemplateLang struct {
	Code string `json:"code"`
}

type metaSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type metaErrorResponse struct {
	Error struct {
		Message      string `json:"message"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
	} `json:"error"`
}

// MetaGraphAdapter delivers messages through the Meta Graph Cloud API using
// per-tenant access tokens and phone-number IDs.
type MetaGraphAdapter struct {
	client  *resty.Client
	baseURL string
}

func NewMetaGraphAdapter(baseURL string) (*MetaGraphAdapter, error) {
	client := resty.New()
	client.SetTimeout(defaultSendTimeout)
	client.SetRetryCount(0)

	return NewMetaGraphAdapterWithClient(baseURL, client)
}

func NewMetaGraphAdapterWithClient(baseURL string, client *resty.Client) (*MetaGraphAdapter, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		trimmed = DefaultMetaGraphBaseURL
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultSendTimeout)
	}
	client.SetRetryCount(0)

	return &MetaGraphAdapter{client: client, baseURL: trimmed}, nil
}

func (a *MetaGraphAdapter) Send(ctx context.Context, cfg domain.TenantConfig, to string, req domain.DeliveryRequest) (*Response, error) {
	if a == nil || a.client == nil {
		return nil, fmt.Errorf("adapter is not initialized")
	}
	if strings.TrimSpace(cfg.MetaGraph.AccessToken) == "" || strings.TrimSpace(cfg.MetaGraph.PhoneNumberID) == "" {
		return nil, &Error{Message: "meta graph credentials are not configured"}
	}

	payload := buildMetaPayload(to, req)
	endpoint := fmt.Sprintf("%s/%s/messages", a.baseURL, cfg.MetaGraph.PhoneNumberID)

	response, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(cfg.MetaGraph.AccessToken).
		SetBody(payload).
		Post(endpoint)
	if err != nil {
		return nil, &Error{
			Message:   "meta graph request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		var parsed metaSendResponse
		messageID := ""
		if err := json.Unmarshal(response.Body(), &parsed); err == nil && len(parsed.Messages) > 0 {
			messageID = parsed.Messages[0].ID
		}
		return &Response{
			StatusCode: statusCode,
			Body:       responseBody,
			MessageID:  messageID,
		}, nil
	}

	return nil, metaErrorFromResponse(statusCode, response.Body(), responseBody)
}

// buildMetaPayload selects exactly one payload shape by priority
// image > document > template > text; the first present field wins.
func buildMetaPayload(to string, req domain.DeliveryRequest) metaMessagePayload {
	payload := metaMessagePayload{
		MessagingProduct: metaMessagingProduct,
		To:               strings.TrimPrefix(to, "+"),
	}

	switch {
	case req.Media.ImageURL != "":
		payload.Type = "image"
		payload.Image = &metaMedia{Link: req.Media.ImageURL, Caption: req.Body}
	case req.Media.DocumentURL != "":
		payload.Type = "document"
		payload.Document = &metaDocument{
			Link:     req.Media.DocumentURL,
			Filename: req.Media.Filename,
			Caption:  req.Body,
		}
	case req.Template != nil:
		payload.Type = "template"
		payload.Template = &metaTemplate{
			Name:       req.Template.Name,
			Language:   metaTemplateLang{Code: req.Template.Language},
			Components: req.Template.Components,
		}
	default:
		payload.Type = "text"
		payload.Text = &metaText{Body: req.Body}
	}

	return payload
}

func metaErrorFromResponse(statusCode int, rawBody []byte, body string) *Error {
	providerErr := &Error{
		StatusCode: statusCode,
		Message:    fmt.Sprintf("meta graph returned status %d", statusCode),
		Transient:  isTransientHTTPStatus(statusCode),
	}

	var parsed metaErrorResponse
	if err := json.Unmarshal(rawBody, &parsed); err == nil && parsed.Error.Message != "" {
		providerErr.Message = parsed.Error.Message
		providerErr.Code = parsed.Error.Code
		providerErr.Subcode = parsed.Error.ErrorSubcode
		providerErr.PermissionDenied = parsed.Error.Code == metaCodePermissionDenied
		providerErr.RecipientNotAllowed = parsed.Error.Code == metaCodeRecipientNotAllowed
	} else if body != "" {
		providerErr.Message = fmt.Sprintf("meta graph returned status %d: %s", statusCode, body)
	}

	return providerErr
}
