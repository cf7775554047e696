package repository

import (
	"encoding/json"
	"time"

	"github.com/kursadbilgin/delivery-router/internal/domain"
)

// TenantConfigModel is the persistence model for the tenant_configs table.
type TenantConfigModel struct {
	TenantID       string              `gorm:"type:varchar(64);primaryKey"`
	Enabled        bool                `gorm:"not null;default:false"`
	Provider       domain.ProviderKind `gorm:"type:varchar(20);not null;default:'direct_link'"`
	PhoneNumber    string              `gorm:"type:varchar(20)"`
	MetaToken      string              `gorm:"type:text"`
	MetaPhoneID    string              `gorm:"type:varchar(64)"`
	GatewayURL     string              `gorm:"type:text"`
	GatewayAPIKey  string              `gorm:"type:text"`
	BridgeURL      string              `gorm:"type:text"`
	BridgeSID      string              `gorm:"type:varchar(64)"`
	BridgeToken    string              `gorm:"type:text"`
	BridgeFrom     string              `gorm:"type:varchar(20)"`
	Verified       bool                `gorm:"not null;default:false"`
	LastVerifiedAt *time.Time          `gorm:"type:timestamptz"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (TenantConfigModel) TableName() string {
	return "tenant_configs"
}

// DeliveryLogModel is the persistence model for the append-only delivery_logs
// table. Rows are created once per send attempt and never updated.
type DeliveryLogModel struct {
	ID          string                `gorm:"type:uuid;primaryKey"`
	TenantID    string                `gorm:"type:varchar(64);not null"`
	To          string                `gorm:"type:varchar(20);not null"`
	Message     string                `gorm:"type:text;not null"`
	Status      domain.DeliveryStatus `gorm:"type:varchar(10);not null"`
	Method      string                `gorm:"type:varchar(20);not null"`
	MessageID   string                `gorm:"type:varchar(255)"`
	OrderID     string                `gorm:"type:varchar(64)"`
	MessageType string                `gorm:"type:varchar(64)"`
	Metadata    []byte                `gorm:"type:jsonb"`
	CreatedAt   time.Time
}

func (DeliveryLogModel) TableName() string {
	return "delivery_logs"
}

func tenantConfigModelFromDomain(c *domain.TenantConfig) *TenantConfigModel {
	if c == nil {
		return nil
	}

	return &TenantConfigModel{
		TenantID:       c.TenantID,
		Enabled:        c.Enabled,
		Provider:       c.Provider,
		PhoneNumber:    c.PhoneNumber,
		MetaToken:      c.MetaGraph.AccessToken,
		MetaPhoneID:    c.MetaGraph.PhoneNumberID,
		GatewayURL:     c.TechGateway.Endpoint,
		GatewayAPIKey:  c.TechGateway.APIKey,
		BridgeURL:      c.SMSBridge.Endpoint,
		BridgeSID:      c.SMSBridge.AccountSID,
		BridgeToken:    c.SMSBridge.AuthToken,
		BridgeFrom:     c.SMSBridge.From,
		Verified:       c.Verified,
		LastVerifiedAt: c.LastVerifiedAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func tenantConfigModelToDomain(m *TenantConfigModel) *domain.TenantConfig {
	if m == nil {
		return nil
	}

	cfg := &domain.TenantConfig{
		TenantID:    m.TenantID,
		Enabled:     m.Enabled,
		Provider:    m.Provider,
		PhoneNumber: m.PhoneNumber,
		MetaGraph: domain.MetaGraphCredentials{
			AccessToken:   m.MetaToken,
			PhoneNumberID: m.MetaPhoneID,
		},
		TechGateway: domain.TechGatewayCredentials{
			Endpoint: m.GatewayURL,
			APIKey:   m.GatewayAPIKey,
		},
		SMSBridge: domain.SMSBridgeCredentials{
			Endpoint:   m.BridgeURL,
			AccountSID: m.BridgeSID,
			AuthToken:  m.BridgeToken,
			From:       m.BridgeFrom,
		},
		Verified:       m.Verified,
		LastVerifiedAt: m.LastVerifiedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	cfg.ApplyDefaults()
	return cfg
}

func deliveryLogModelFromDomain(e *domain.DeliveryLogEntry) (*DeliveryLogModel, error) {
	if e == nil {
		return nil, nil
	}

	var metadata []byte
	if len(e.Metadata) > 0 {
		encoded, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, err
		}
		metadata = encoded
	}

	return &DeliveryLogModel{
		ID:          e.ID,
		TenantID:    e.TenantID,
		To:          e.To,
		Message:     e.Message,
		Status:      e.Status,
		Method:      e.Method,
		MessageID:   e.MessageID,
		OrderID:     e.OrderID,
		MessageType: e.MessageType,
		Metadata:    metadata,
		CreatedAt:   e.CreatedAt,
	}, nil
}

func deliveryLogModelToDomain(m *DeliveryLogModel) *domain.DeliveryLogEntry {
	if m == nil {
		return nil
	}

	entry := &domain.DeliveryLogEntry{
		ID:          m.ID,
		TenantID:    m.TenantID,
		To:          m.To,
		Message:     m.Message,
		Status:      m.Status,
		Method:      m.Method,
		MessageID:   m.MessageID,
		OrderID:     m.OrderID,
		MessageType: m.MessageType,
		CreatedAt:   m.CreatedAt,
	}
	if len(m.Metadata) > 0 {
		var metadata map[string]any
		if err := json.Unmarshal(m.Metadata, &metadata); err == nil {
			entry.Metadata = metadata
		}
	}
	return entry
}
