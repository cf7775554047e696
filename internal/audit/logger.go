// Package audit persists the append-only delivery log. Writes are strictly
// best-effort: a failing store degrades observability, never delivery.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/delivery-router/internal/domain"
	"github.com/kursadbilgin/delivery-router/internal/repository"
	"go.uber.org/zap"
)

// Record is one delivery attempt to be audited.
type Record struct {
	TenantID    string
	To          string
	Body        string
	Result      domain.DeliveryResult
	OrderID     string
	MessageType string
	Metadata    map[string]any
}

type Logger struct {
	logs   repository.DeliveryLogRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewLogger(logs repository.DeliveryLogRepository, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{
		logs:   logs,
		logger: logger,
		now:    time.Now,
	}
}

// Log writes one audit record. It never returns an error and never panics;
// store failures are reported to operator diagnostics only, so the
// DeliveryResult already produced for the caller is unaffected.
func (l *Logger) Log(ctx context.Context, rec Record) {
	if l == nil || l.logs == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	entry := &domain.DeliveryLogEntry{
		ID:          uuid.NewString(),
		TenantID:    rec.TenantID,
		To:          rec.To,
		Message:     rec.Body,
		Status:      rec.Result.Status(),
		Method:      rec.Result.Method,
		MessageID:   rec.Result.ProviderMessageID,
		OrderID:     rec.OrderID,
		MessageType: rec.MessageType,
		Metadata:    PruneMetadata(rec.Metadata),
		CreatedAt:   l.now().UTC(),
	}

	if err := l.logs.Create(ctx, entry); err != nil {
		l.logger.Warn("delivery log write failed",
			zap.String("tenantId", rec.TenantID),
			zap.String("method", rec.Result.Method),
			zap.Error(err),
		)
	}
}
