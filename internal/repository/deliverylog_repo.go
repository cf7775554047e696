package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/delivery-router/internal/domain"
	"gorm.io/gorm"
)

type ListParams struct {
	TenantID string
	Status   *domain.DeliveryStatus
	Method   *string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// DeliveryLogRepository persists the append-only delivery audit trail.
type DeliveryLogRepository interface {
	Create(ctx context.Context, entry *domain.DeliveryLogEntry) error
	List(ctx context.Context, params ListParams) ([]domain.DeliveryLogEntry, int64, error)
}

type GormDeliveryLogRepo struct {
	db *gorm.DB
}

func NewGormDeliveryLogRepo(db *gorm.DB) *GormDeliveryLogRepo {
	return &GormDeliveryLogRepo{db: db}
}

func (r *GormDeliveryLogRepo) Create(ctx context.Context, entry *domain.DeliveryLogEntry) error {
	model, err := deliveryLogModelFromDomain(entry)
	if err != nil {
		return fmt.Errorf("failed to encode delivery log metadata: %w", err)
	}
	if model == nil {
		return fmt.Errorf("%w: delivery log entry is required", domain.ErrValidation)
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if entry != nil {
		entry.CreatedAt = model.CreatedAt
	}
	return nil
}

func (r *GormDeliveryLogRepo) List(ctx context.Context, params ListParams) ([]domain.DeliveryLogEntry, int64, error) {
	query := r.db.WithContext(ctx).Model(&DeliveryLogModel{})

	if params.TenantID != "" {
		query = query.Where("tenant_id = ?", params.TenantID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Method != nil {
		query = query.Where("method = ?", *params.Method)
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_at <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}

	var models []DeliveryLogModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	entries := make([]domain.DeliveryLogEntry, 0, len(models))
	for i := range models {
		entries = append(entries, *deliveryLogModelToDomain(&models[i]))
	}
	return entries, total, nil
}
