package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/kursadbilgin/delivery-router/internal/domain"
	"github.com/kursadbilgin/delivery-router/internal/observability"
	"github.com/kursadbilgin/delivery-router/internal/provider"
	"github.com/kursadbilgin/delivery-router/internal/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minBroadcastConcurrency = 1
	maxBroadcastSize        = 1000
	maxSendAttempts         = 3
	baseRetryDelay          = time.Second
	maxRetryDelay           = 30 * time.Second
	maxRetryJitterMillis    = 250
)

// Deliverer is the per-recipient delivery port the aggregator fans out over.
type Deliverer interface {
	Deliver(ctx context.Context, tenantID string, req domain.DeliveryRequest) (domain.DeliveryResult, error)
}

// BroadcastService fans one message out to many recipients through a bounded
// worker pool. Results stay index-aligned with the input slice and one
// recipient's failure never drops or reorders another recipient's result.
type BroadcastService struct {
	deliverer   Deliverer
	rateLimiter ratelimit.RateLimiter
	logger      *zap.Logger
	metrics     *observability.Metrics
	concurrency int
	now         func() time.Time
	randIntn    func(n int) int
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewBroadcastService(
	deliverer Deliverer,
	rateLimiter ratelimit.RateLimiter,
	concurrency int,
	logger *zap.Logger,
) (*BroadcastService, error) {
	if deliverer == nil {
		return nil, fmt.Errorf("deliverer is required")
	}
	if concurrency < minBroadcastConcurrency {
		concurrency = minBroadcastConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BroadcastService{
		deliverer:   deliverer,
		rateLimiter: rateLimiter,
		logger:      logger,
		concurrency: concurrency,
		now:         time.Now,
		randIntn:    rand.Intn,
		sleep:       sleepWithContext,
	}, nil
}

func (s *BroadcastService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Broadcast sends body to every recipient and tallies the outcomes. The
// returned error covers only an invalid envelope; per-recipient failures are
// visible solely through their result entries.
func (s *BroadcastService) Broadcast(ctx context.Context, tenantID string, recipients []string, body string) (*domain.BroadcastOutcome, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(tenantID) == "" {
		return nil, fmt.Errorf("%w: tenant id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: message body is required", domain.ErrValidation)
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", domain.ErrValidation)
	}
	if len(recipients) > maxBroadcastSize {
		return nil, fmt.Errorf("%w: broadcast size exceeds %d", domain.ErrValidation, maxBroadcastSize)
	}

	results := make([]domain.DeliveryResult, len(recipients))

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)

	for i, to := range recipients {
		g.Go(func() error {
			if s.metrics != nil {
				s.metrics.IncBroadcastInFlight()
				defer s.metrics.DecBroadcastInFlight()
			}
			results[i] = s.deliverOne(ctx, tenantID, to, body)
			return nil
		})
	}

	// Workers never return errors; Wait only fences completion.
	_ = g.Wait()

	outcome := &domain.BroadcastOutcome{
		Results: results,
		Total:   len(recipients),
	}
	for _, result := range results {
		if result.Success() {
			outcome.Successful++
		}
		if result.ConfirmedSent {
			outcome.Confirmed++
		}
	}

	s.logger.Info("broadcast completed",
		zap.String("tenantId", tenantID),
		zap.Int("total", outcome.Total),
		zap.Int("successful", outcome.Successful),
		zap.Int("confirmed", outcome.Confirmed),
	)

	return outcome, nil
}

// deliverOne sends to a single recipient, retrying transient provider
// failures with exponential backoff. The last attempt's result always wins,
// so the recipient ends up with exactly one entry.
func (s *BroadcastService) deliverOne(ctx context.Context, tenantID, to, body string) domain.DeliveryResult {
	req := domain.DeliveryRequest{
		Recipient:   to,
		Body:        body,
		MessageType: "broadcast",
	}

	var result domain.DeliveryResult
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		if s.rateLimiter != nil {
			if err := s.rateLimiter.Wait(ctx, tenantID); err != nil {
				s.logger.Warn("rate limiter wait failed",
					zap.String("tenantId", tenantID),
					zap.Error(err),
				)
				// Still hand the recipient a usable artifact.
				result = fallbackResult(to, body, "", err.Error())
				break
			}
		}

		var sendErr error
		result, sendErr = s.deliverer.Deliver(ctx, tenantID, req)
		if sendErr == nil || !provider.IsTransient(sendErr) || attempt == maxSendAttempts {
			break
		}

		if s.metrics != nil {
			s.metrics.IncBroadcastRetry(result.Method)
		}
		if err := s.sleep(ctx, s.retryDelay(attempt)); err != nil {
			break
		}
	}

	return result
}

func (s *BroadcastService) retryDelay(attemptNumber int) time.Duration {
	if attemptNumber < 1 {
		attemptNumber = 1
	}

	delay := baseRetryDelay
	for i := 1; i < attemptNumber; i++ {
		delay *= 2
		if delay >= maxRetryDelay {
			delay = maxRetryDelay
			break
		}
	}

	jitterMillis := 0
	if s.randIntn != nil && maxRetryJitterMillis > 0 {
		jitterMillis = s.randIntn(maxRetryJitterMillis + 1)
	}

	return delay + time.Duration(jitterMillis)*time.Millisecond
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
