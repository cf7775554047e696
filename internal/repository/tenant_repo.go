package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/delivery-router/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TenantConfigRepository is the tenant delivery-settings store. Reads are
// uncached: every send observes a fresh snapshot.
type TenantConfigRepository interface {
	Get(ctx context.Context, tenantID string) (*domain.TenantConfig, error)
	Upsert(ctx context.Context, cfg *domain.TenantConfig) error
	Update(ctx context.Context, tenantID string, update domain.TenantConfigUpdate) error
	SetVerified(ctx context.Context, tenantID string, verifiedAt time.Time) error
}

type GormTenantConfigRepo struct {
	db *gorm.DB
}

func NewGormTenantConfigRepo(db *gorm.DB) *GormTenantConfigRepo {
	return &GormTenantConfigRepo{db: db}
}

// Get returns domain.ErrNotConfigured for a missing row and wraps any other
// store failure in domain.ErrConfigUnavailable so callers can tell "no
// settings yet" from "store is down".
func (r *GormTenantConfigRepo) Get(ctx context.Context, tenantID string) (*domain.TenantConfig, error) {
	var model TenantConfigModel
	err := r.db.WithContext(ctx).First(&model, "tenant_id = ?", tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: tenant %q", domain.ErrNotConfigured, tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfigUnavailable, err)
	}
	return tenantConfigModelToDomain(&model), nil
}

func (r *GormTenantConfigRepo) Upsert(ctx context.Context, cfg *domain.TenantConfig) error {
	model := tenantConfigModelFromDomain(cfg)
	if model == nil {
		return fmt.Errorf("%w: tenant config is required", domain.ErrValidation)
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}},
			UpdateAll: true,
		}).
		Create(model).Error
	if err != nil {
		return err
	}

	if cfg != nil {
		*cfg = *tenantConfigModelToDomain(model)
	}
	return nil
}

func (r *GormTenantConfigRepo) Update(ctx context.Context, tenantID string, update domain.TenantConfigUpdate) error {
	values := map[string]any{}
	if update.Enabled != nil {
		values["enabled"] = *update.Enabled
	}
	if update.Provider != nil {
		values["provider"] = *update.Provider
	}
	if update.PhoneNumber != nil {
		values["phone_number"] = *update.PhoneNumber
	}
	if update.MetaGraph != nil {
		values["meta_token"] = update.MetaGraph.AccessToken
		values["meta_phone_id"] = update.MetaGraph.PhoneNumberID
	}
	if update.TechGateway != nil {
		values["gateway_url"] = update.TechGateway.Endpoint
		values["gateway_api_key"] = update.TechGateway.APIKey
	}
	if update.SMSBridge != nil {
		values["bridge_url"] = update.SMSBridge.Endpoint
		values["bridge_sid"] = update.SMSBridge.AccountSID
		values["bridge_token"] = update.SMSBridge.AuthToken
		values["bridge_from"] = update.SMSBridge.From
	}
	if update.Verified != nil {
		values["verified"] = *update.Verified
	}
	if update.LastVerifiedAt != nil {
		values["last_verified_at"] = *update.LastVerifiedAt
	}
	if len(values) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).
		Model(&TenantConfigModel{}).
		Where("tenant_id = ?", tenantID).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: tenant %q", domain.ErrNotConfigured, tenantID)
	}
	return nil
}

func (r *GormTenantConfigRepo) SetVerified(ctx context.Context, tenantID string, verifiedAt time.Time) error {
	verified := true
	at := verifiedAt.UTC()
	return r.Update(ctx, tenantID, domain.TenantConfigUpdate{
		Verified:       &verified,
		LastVerifiedAt: &at,
	})
}
