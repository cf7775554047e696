package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/delivery-router/internal/audit"
	"github.com/kursadbilgin/delivery-router/internal/domain"
	"github.com/kursadbilgin/delivery-router/internal/observability"
	"github.com/kursadbilgin/delivery-router/internal/provider"
	"github.com/kursadbilgin/delivery-router/internal/recipient"
	"github.com/kursadbilgin/delivery-router/internal/repository"
	"go.uber.org/zap"
)

const defaultSendTimeout = 15 * time.Second

// RouterService routes a delivery request to the tenant's configured backend
// and guarantees a usable DeliveryResult on every path: recipient, config,
// and provider failures all degrade to a wa.me artifact instead of raising.
type RouterService struct {
	tenants     repository.TenantConfigRepository
	registry    *provider.Registry
	audit       *audit.Logger
	logger      *zap.Logger
	metrics     *observability.Metrics
	sendTimeout time.Duration
	now         func() time.Time
}

func NewRouterService(
	tenants repository.TenantConfigRepository,
	registry *provider.Registry,
	auditLogger *audit.Logger,
	sendTimeout time.Duration,
	logger *zap.Logger,
) (*RouterService, error) {
	if tenants == nil {
		return nil, fmt.Errorf("tenant config repository is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("provider registry is required")
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RouterService{
		tenants:     tenants,
		registry:    registry,
		audit:       auditLogger,
		logger:      logger,
		sendTimeout: sendTimeout,
		now:         time.Now,
	}, nil
}

func (s *RouterService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Send performs a single delivery and returns its result. The error is
// non-nil only when the request envelope itself is invalid; delivery
// failures never surface as errors.
func (s *RouterService) Send(ctx context.Context, tenantID string, req domain.DeliveryRequest) (domain.DeliveryResult, error) {
	if strings.TrimSpace(tenantID) == "" {
		return domain.DeliveryResult{}, fmt.Errorf("%w: tenant id is required", domain.ErrValidation)
	}
	if err := req.Validate(); err != nil {
		return domain.DeliveryResult{}, err
	}

	result, _ := s.Deliver(ctx, tenantID, req)
	return result, nil
}

// Deliver runs one full delivery attempt and audits it. The returned result
// is always complete and usable; the error, when non-nil, is the underlying
// adapter or store failure that forced the fallback, exposed so retrying
// callers can ask provider.IsTransient about it.
func (s *RouterService) Deliver(ctx context.Context, tenantID string, req domain.DeliveryRequest) (domain.DeliveryResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := observability.WithContextLogger(s.logger, ctx).With(
		zap.String("tenantId", tenantID),
	)

	result, sendErr := s.route(ctx, tenantID, req, logger)

	if s.metrics != nil {
		s.metrics.IncDelivery(result.Method)
		if result.Method == domain.MethodDirectFallback {
			s.metrics.IncDeliveryFallback(result.ErrorCode.String())
		}
	}

	if s.audit != nil {
		s.audit.Log(ctx, audit.Record{
			TenantID:    tenantID,
			To:          auditRecipient(req.Recipient),
			Body:        req.Body,
			Result:      result,
			OrderID:     req.OrderID,
			MessageType: req.MessageType,
			Metadata:    req.Metadata,
		})
	}

	return result, sendErr
}

// route is the fallback controller: it decides between a real provider
// attempt and the direct-link degradation, and converts every adapter
// failure into a fallback result.
func (s *RouterService) route(ctx context.Context, tenantID string, req domain.DeliveryRequest, logger *zap.Logger) (domain.DeliveryResult, error) {
	canonical, normErr := recipient.Normalize(req.Recipient)
	if normErr != nil {
		// Nothing is ever passed to a backend in this state; the raw
		// digits still make a best-effort artifact.
		logger.Warn("recipient could not be canonicalized, producing direct link",
			zap.String("recipient", req.Recipient),
		)
		return directResult(req.Recipient, req.Body), nil
	}

	cfg, err := s.tenants.Get(ctx, tenantID)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotConfigured):
		return directResult(canonical, req.Body), nil
	default:
		logger.Warn("tenant config read failed, degrading to fallback link", zap.Error(err))
		return fallbackResult(canonical, req.Body, "", err.Error()), err
	}

	if !cfg.Enabled {
		return directResult(canonical, req.Body), nil
	}

	adapter, ok := s.registry.Lookup(cfg.Provider)
	if !ok {
		message := fmt.Sprintf("no adapter registered for provider %q", cfg.Provider)
		logger.Error("delivery degraded", zap.String("provider", cfg.Provider.String()), zap.String("reason", message))
		return fallbackResult(canonical, req.Body, "", message), nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	sendStart := s.now()
	resp, sendErr := adapter.Send(sendCtx, *cfg, canonical, req)
	if s.metrics != nil {
		s.metrics.ObserveSendDuration(cfg.Provider.String(), s.now().Sub(sendStart))
	}

	if sendErr != nil {
		code, _ := provider.Classify(sendErr)
		logger.Warn("provider send failed, degrading to fallback link",
			zap.String("provider", cfg.Provider.String()),
			zap.String("code", code.String()),
			zap.Error(sendErr),
		)
		return fallbackResult(canonical, req.Body, code, sendErr.Error()), sendErr
	}

	if cfg.Provider == domain.ProviderDirectLink {
		result := directResult(canonical, req.Body)
		if resp != nil && resp.Link != "" {
			result.FallbackLink = resp.Link
		}
		return result, nil
	}

	result := domain.DeliveryResult{
		ConfirmedSent: true,
		Method:        cfg.Provider.String(),
	}
	if resp != nil {
		result.ProviderMessageID = resp.MessageID
	}
	return result, nil
}

func directResult(to, body string) domain.DeliveryResult {
	return domain.DeliveryResult{
		ArtifactProduced: true,
		Method:           domain.MethodDirect,
		FallbackLink:     provider.BuildDirectLink(to, body),
	}
}

func fallbackResult(to, body string, code domain.ErrorCode, message string) domain.DeliveryResult {
	return domain.DeliveryResult{
		ArtifactProduced: true,
		Method:           domain.MethodDirectFallback,
		ErrorCode:        code,
		ErrorMessage:     message,
		FallbackLink:     provider.BuildDirectLink(to, body),
	}
}

// auditRecipient prefers the canonical number for the log record but keeps
// the raw input when canonicalization failed.
func auditRecipient(raw string) string {
	if canonical, err := recipient.Normalize(raw); err == nil {
		return canonical
	}
	return raw
}
