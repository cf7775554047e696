package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/delivery-router/internal/domain"
	"github.com/kursadbilgin/delivery-router/internal/repository"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
)

type DeliveryService interface {
	Send(ctx context.Context, tenantID string, req domain.DeliveryRequest) (domain.DeliveryResult, error)
}

type BroadcastRunner interface {
	Broadcast(ctx context.Context, tenantID string, recipients []string, body string) (*domain.BroadcastOutcome, error)
}

type Verifier interface {
	Verify(ctx context.Context, tenantID string) (domain.VerificationState, error)
}

type DeliveryHandler struct {
	deliveries DeliveryService
	broadcasts BroadcastRunner
	verifier   Verifier
	logs       repository.DeliveryLogRepository
}

func NewDeliveryHandler(
	deliveries DeliveryService,
	broadcasts BroadcastRunner,
	verifier Verifier,
	logs repository.DeliveryLogRepository,
) (*DeliveryHandler, error) {
	if deliveries == nil {
		return nil, fmt.Errorf("delivery service is required")
	}
	if broadcasts == nil {
		return nil, fmt.Errorf("broadcast service is required")
	}
	if verifier == nil {
		return nil, fmt.Errorf("verify service is required")
	}
	if logs == nil {
		return nil, fmt.Errorf("delivery log repository is required")
	}
	return &DeliveryHandler{
		deliveries: deliveries,
		broadcasts: broadcasts,
		verifier:   verifier,
		logs:       logs,
	}, nil
}

func RegisterDeliveryRoutes(
	router fiber.Router,
	deliveries DeliveryService,
	broadcasts BroadcastRunner,
	verifier Verifier,
	logs repository.DeliveryLogRepository,
) error {
	h, err := NewDeliveryHandler(deliveries, broadcasts, verifier, logs)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/tenants/:tenantId/messages", h.SendMessage)
	v1.Post("/tenants/:tenantId/broadcasts", h.Broadcast)
	v1.Post("/tenants/:tenantId/verify", h.Verify)
	v1.Get("/tenants/:tenantId/deliveries", h.ListDeliveries)

	return nil
}

type templateRequest struct {
	Name       string           `json:"name"`
	Language   string           `json:"language"`
	Components []map[string]any `json:"components,omitempty"`
}

type sendMessageRequest struct {
	To          string           `json:"to"`
	Message     string           `json:"message"`
	ImageURL    string           `json:"imageUrl,omitempty"`
	DocumentURL string           `json:"documentUrl,omitempty"`
	Filename    string           `json:"filename,omitempty"`
	Template    *templateRequest `json:"template,omitempty"`
	OrderID     string           `json:"orderId,omitempty"`
	MessageType string           `json:"messageType,omitempty"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
}

type deliveryResultResponse struct {
	Success           bool   `json:"success"`
	ArtifactProduced  bool   `json:"artifactProduced"`
	ConfirmedSent     bool   `json:"confirmedSent"`
	Method            string `json:"method"`
	ProviderMessageID string `json:"providerMessageId,omitempty"`
	ErrorCode         string `json:"errorCode,omitempty"`
	ErrorMessage      string `json:"errorMessage,omitempty"`
	FallbackLink      string `json:"fallbackLink,omitempty"`
}

type broadcastRequest struct {
	Recipients []string `json:"recipients"`
	Message    string   `json:"message"`
}

type broadcastResponse struct {
	Total      int                      `json:"total"`
	Successful int                      `json:"successful"`
	Confirmed  int                      `json:"confirmed"`
	Results    []deliveryResultResponse `json:"results"`
}

type verifyResponse struct {
	State string `json:"state"`
}

type deliveryLogResponse struct {
	ID          string         `json:"id"`
	TenantID    string         `json:"tenantId"`
	To          string         `json:"to"`
	Message     string         `json:"message"`
	Status      string         `json:"status"`
	Method      string         `json:"method"`
	MessageID   string         `json:"messageId,omitempty"`
	OrderID     string         `json:"orderId,omitempty"`
	MessageType string         `json:"messageType,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

type listDeliveriesResponse struct {
	Data []deliveryLogResponse `json:"data"`
	Meta listMeta              `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *DeliveryHandler) SendMessage(c *fiber.Ctx) error {
	tenantID := strings.TrimSpace(c.Params("tenantId"))

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.deliveries.Send(c.Context(), tenantID, toDomainDeliveryRequest(req))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toDeliveryResultResponse(result))
}

func (h *DeliveryHandler) Broadcast(c *fiber.Ctx) error {
	tenantID := strings.TrimSpace(c.Params("tenantId"))

	var req broadcastRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	outcome, err := h.broadcasts.Broadcast(c.Context(), tenantID, req.Recipients, req.Message)
	if err != nil {
		return toHTTPError(err)
	}

	results := make([]deliveryResultResponse, 0, len(outcome.Results))
	for _, result := range outcome.Results {
		results = append(results, toDeliveryResultResponse(result))
	}

	return c.Status(fiber.StatusOK).JSON(broadcastResponse{
		Total:      outcome.Total,
		Successful: outcome.Successful,
		Confirmed:  outcome.Confirmed,
		Results:    results,
	})
}

func (h *DeliveryHandler) Verify(c *fiber.Ctx) error {
	tenantID := strings.TrimSpace(c.Params("tenantId"))
	if tenantID == "" {
		return toHTTPError(fmt.Errorf("%w: tenant id is required", domain.ErrValidation))
	}

	state, err := h.verifier.Verify(c.Context(), tenantID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(verifyResponse{State: state.String()})
}

func (h *DeliveryHandler) ListDeliveries(c *fiber.Ctx) error {
	tenantID := strings.TrimSpace(c.Params("tenantId"))
	if tenantID == "" {
		return toHTTPError(fmt.Errorf("%w: tenant id is required", domain.ErrValidation))
	}

	params, err := parseListParams(c, tenantID)
	if err != nil {
		return toHTTPError(err)
	}

	entries, total, err := h.logs.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]deliveryLogResponse, 0, len(entries))
	for _, entry := range entries {
		data = append(data, toDeliveryLogResponse(entry))
	}

	return c.Status(fiber.StatusOK).JSON(listDeliveriesResponse{
		Data: data,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func parseListParams(c *fiber.Ctx, tenantID string) (repository.ListParams, error) {
	params := repository.ListParams{
		TenantID: tenantID,
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status := domain.DeliveryStatus(rawStatus)
		if status != domain.DeliveryStatusSent && status != domain.DeliveryStatusFailed {
			return repository.ListParams{}, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, rawStatus)
		}
		params.Status = &status
	}

	if rawMethod := strings.TrimSpace(c.Query("method")); rawMethod != "" {
		params.Method = &rawMethod
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.ListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.ListParams{}, err
	}
	params.From = from
	params.To = to

	return params, nil
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

func toDomainDeliveryRequest(req sendMessageRequest) domain.DeliveryRequest {
	out := domain.DeliveryRequest{
		Recipient: strings.TrimSpace(req.To),
		Body:      req.Message,
		Media: domain.RichMedia{
			ImageURL:    strings.TrimSpace(req.ImageURL),
			DocumentURL: strings.TrimSpace(req.DocumentURL),
			Filename:    strings.TrimSpace(req.Filename),
		},
		OrderID:     strings.TrimSpace(req.OrderID),
		MessageType: strings.TrimSpace(req.MessageType),
		Metadata:    req.Metadata,
	}
	if req.Template != nil {
		out.Template = &domain.Template{
			Name:       strings.TrimSpace(req.Template.Name),
			Language:   strings.TrimSpace(req.Template.Language),
			Components: req.Template.Components,
		}
	}
	return out
}

func toDeliveryResultResponse(result domain.DeliveryResult) deliveryResultResponse {
	return deliveryResultResponse{
		Success:           result.Success(),
		ArtifactProduced:  result.ArtifactProduced,
		ConfirmedSent:     result.ConfirmedSent,
		Method:            result.Method,
		ProviderMessageID: result.ProviderMessageID,
		ErrorCode:         result.ErrorCode.String(),
		ErrorMessage:      result.ErrorMessage,
		FallbackLink:      result.FallbackLink,
	}
}

func toDeliveryLogResponse(entry domain.DeliveryLogEntry) deliveryLogResponse {
	return deliveryLogResponse{
		ID:          entry.ID,
		TenantID:    entry.TenantID,
		To:          entry.To,
		Message:     entry.Message,
		Status:      entry.Status.String(),
		Method:      entry.Method,
		MessageID:   entry.MessageID,
		OrderID:     entry.OrderID,
		MessageType: entry.MessageType,
		Metadata:    entry.Metadata,
		CreatedAt:   entry.CreatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrNotConfigured):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConfigUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}
