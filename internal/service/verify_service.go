package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/delivery-router/internal/domain"
	"github.com/kursadbilgin/delivery-router/internal/observability"
	"github.com/kursadbilgin/delivery-router/internal/provider"
	"github.com/kursadbilgin/delivery-router/internal/recipient"
	"github.com/kursadbilgin/delivery-router/internal/repository"
	"go.uber.org/zap"
)

const selfTestBody = "Connectivity check: your delivery settings are working."

// VerifyService drives the connectivity verification state machine. For
// API-backed providers it sends a self-test message to the tenant's own
// on-file number; only a confirmed successful self-test persists the
// verified flag.
type VerifyService struct {
	tenants     repository.TenantConfigRepository
	registry    *provider.Registry
	logger      *zap.Logger
	metrics     *observability.Metrics
	sendTimeout time.Duration
	now         func() time.Time
}

func NewVerifyService(
	tenants repository.TenantConfigRepository,
	registry *provider.Registry,
	sendTimeout time.Duration,
	logger *zap.Logger,
) (*VerifyService, error) {
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

	return &VerifyService{
		tenants:     tenants,
		registry:    registry,
		logger:      logger,
		sendTimeout: sendTimeout,
		now:         time.Now,
	}, nil
}

func (s *VerifyService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Verify runs the self-test and returns the resulting state. The error is
// non-nil only when the settings store itself failed (read or persist); the
// provider outcome is always expressed through the state.
func (s *VerifyService) Verify(ctx context.Context, tenantID string) (domain.VerificationState, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	state, err := s.verify(ctx, tenantID)
	if s.metrics != nil && state != "" {
		s.metrics.IncVerification(state.String())
	}
	return state, err
}

func (s *VerifyService) verify(ctx context.Context, tenantID string) (domain.VerificationState, error) {
	cfg, err := s.tenants.Get(ctx, tenantID)
	if errors.Is(err, domain.ErrNotConfigured) {
		return domain.VerificationUnconfigured, nil
	}
	if err != nil {
		return "", err
	}

	logger := s.logger.With(
		zap.String("tenantId", tenantID),
		zap.String("provider", cfg.Provider.String()),
	)

	// Direct link needs no credentials and no network test.
	if cfg.Provider == domain.ProviderDirectLink {
		if err := s.tenants.SetVerified(ctx, tenantID, s.now()); err != nil {
			return domain.VerificationDirectLinkOK, err
		}
		return domain.VerificationDirectLinkOK, nil
	}

	canonical, normErr := recipient.Normalize(cfg.PhoneNumber)
	if normErr != nil {
		logger.Warn("tenant phone number unusable for self-test", zap.String("phoneNumber", cfg.PhoneNumber))
		return domain.VerificationGenericFailure, nil
	}

	adapter, ok := s.registry.Lookup(cfg.Provider)
	if !ok {
		logger.Error("no adapter registered for provider")
		return domain.VerificationGenericFailure, nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	_, sendErr := adapter.Send(sendCtx, *cfg, canonical, domain.DeliveryRequest{
		Recipient:   cfg.PhoneNumber,
		Body:        selfTestBody,
		MessageType: "connectivity_check",
	})
	if sendErr != nil {
		logger.Warn("self-test send failed", zap.Error(sendErr))
		if code, ok := provider.Classify(sendErr); ok {
			switch code {
			case domain.ErrorCodePermissionDenied:
				return domain.VerificationPermissionDenied, nil
			case domain.ErrorCodeRecipientNotAllowed:
				return domain.VerificationRecipientNotAllowed, nil
			}
		}
		return domain.VerificationGenericFailure, nil
	}

	if err := s.tenants.SetVerified(ctx, tenantID, s.now()); err != nil {
		return domain.VerificationVerified, err
	}

	logger.Info("tenant delivery settings verified")
	return domain.VerificationVerified, nil
}
