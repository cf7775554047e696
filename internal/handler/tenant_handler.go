package handler

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/delivery-router/internal/domain"
	"github.com/kursadbilgin/delivery-router/internal/repository"
)

type TenantHandler struct {
	tenants repository.TenantConfigRepository
}

func NewTenantHandler(tenants repository.TenantConfigRepository) (*TenantHandler, error) {
	if tenants == nil {
		return nil, fmt.Errorf("tenant config repository is required")
	}
	return &TenantHandler{tenants: tenants}, nil
}

func RegisterTenantRoutes(router fiber.Router, tenants repository.TenantConfigRepository) error {
	h, err := NewTenantHandler(tenants)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/tenants/:tenantId/config", h.GetConfig)
	v1.Put("/tenants/:tenantId/config", h.PutConfig)

	return nil
}

type metaGraphCredentialsBody struct {
	AccessToken   string `json:"accessToken"`
	PhoneNumberID string `json:"phoneNumberId"`
}

type techGatewayCredentialsBody struct {
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"apiKey"`
}

type smsBridgeCredentialsBody struct {
	Endpoint   string `json:"endpoint"`
	AccountSID string `json:"accountSid"`
	AuthToken  string `json:"authToken"`
	From       string `json:"from"`
}

type putConfigRequest struct {
	Enabled     *bool                       `json:"enabled"`
	Provider    *string                     `json:"provider"`
	PhoneNumber *string                     `json:"phoneNumber"`
	MetaGraph   *metaGraphCredentialsBody   `json:"metaGraph"`
	TechGateway *techGatewayCredentialsBody `json:"techGateway"`
	SMSBridge   *smsBridgeCredentialsBody   `json:"smsBridge"`
}

type tenantConfigResponse struct {
	TenantID       string                      `json:"tenantId"`
	Enabled        bool                        `json:"enabled"`
	Provider       string                      `json:"provider"`
	PhoneNumber    string                      `json:"phoneNumber,omitempty"`
	MetaGraph      *metaGraphCredentialsBody   `json:"metaGraph,omitempty"`
	TechGateway    *techGatewayCredentialsBody `json:"techGateway,omitempty"`
	SMSBridge      *smsBridgeCredentialsBody   `json:"smsBridge,omitempty"`
	Verified       bool                        `json:"verified"`
	LastVerifiedAt *time.Time                  `json:"lastVerifiedAt,omitempty"`
	UpdatedAt      time.Time                   `json:"updatedAt,omitempty"`
}

func (h *TenantHandler) GetConfig(c *fiber.Ctx) error {
	tenantID := strings.TrimSpace(c.Params("tenantId"))
	if tenantID == "" {
		return toHTTPError(fmt.Errorf("%w: tenant id is required", domain.ErrValidation))
	}

	cfg, err := h.tenants.Get(c.Context(), tenantID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toTenantConfigResponse(cfg))
}

// PutConfig creates the tenant's settings on first write and replaces the
// supplied fields on later writes. Changing any field clears the verified
// flag; a fresh self-test is the only way to set it back.
func (h *TenantHandler) PutConfig(c *fiber.Ctx) error {
	tenantID := strings.TrimSpace(c.Params("tenantId"))
	if tenantID == "" {
		return toHTTPError(fmt.Errorf("%w: tenant id is required", domain.ErrValidation))
	}

	var req putConfigRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	cfg, err := requestToTenantConfig(tenantID, req)
	if err != nil {
		return toHTTPError(err)
	}

	if err := h.tenants.Upsert(c.Context(), cfg); err != nil {
		return toHTTPError(err)
	}

	stored, err := h.tenants.Get(c.Context(), tenantID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toTenantConfigResponse(stored))
}

func requestToTenantConfig(tenantID string, req putConfigRequest) (*domain.TenantConfig, error) {
	cfg := &domain.TenantConfig{
		TenantID: tenantID,
		Enabled:  true,
		Provider: domain.ProviderDirectLink,
	}

	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	if req.Provider != nil {
		kind, err := domain.ParseProviderKindFromString(*req.Provider)
		if err != nil {
			return nil, err
		}
		cfg.Provider = kind
	}
	if req.PhoneNumber != nil {
		cfg.PhoneNumber = strings.TrimSpace(*req.PhoneNumber)
	}
	if req.MetaGraph != nil {
		cfg.MetaGraph = domain.MetaGraphCredentials{
			AccessToken:   strings.TrimSpace(req.MetaGraph.AccessToken),
			PhoneNumberID: strings.TrimSpace(req.MetaGraph.PhoneNumberID),
		}
	}
	if req.TechGateway != nil {
		cfg.TechGateway = domain.TechGatewayCredentials{
			Endpoint: strings.TrimSpace(req.TechGateway.Endpoint),
			APIKey:   strings.TrimSpace(req.TechGateway.APIKey),
		}
	}
	if req.SMSBridge != nil {
		cfg.SMSBridge = domain.SMSBridgeCredentials{
			Endpoint:   strings.TrimSpace(req.SMSBridge.Endpoint),
			AccountSID: strings.TrimSpace(req.SMSBridge.AccountSID),
			AuthToken:  strings.TrimSpace(req.SMSBridge.AuthToken),
			From:       strings.TrimSpace(req.SMSBridge.From),
		}
	}

	return cfg, nil
}

func toTenantConfigResponse(cfg *domain.TenantConfig) tenantConfigResponse {
	if cfg == nil {
		return tenantConfigResponse{}
	}

	resp := tenantConfigResponse{
		TenantID:       cfg.TenantID,
		Enabled:        cfg.Enabled,
		Provider:       cfg.Provider.String(),
		PhoneNumber:    cfg.PhoneNumber,
		Verified:       cfg.Verified,
		LastVerifiedAt: cfg.LastVerifiedAt,
		UpdatedAt:      cfg.UpdatedAt,
	}
	if cfg.MetaGraph != (domain.MetaGraphCredentials{}) {
		resp.MetaGraph = &metaGraphCredentialsBody{
			AccessToken:   maskSecret(cfg.MetaGraph.AccessToken),
			PhoneNumberID: cfg.MetaGraph.PhoneNumberID,
		}
	}
	if cfg.TechGateway != (domain.TechGatewayCredentials{}) {
		resp.TechGateway = &techGatewayCredentialsBody{
			Endpoint: cfg.TechGateway.Endpoint,
			APIKey:   maskSecret(cfg.TechGateway.APIKey),
		}
	}
	if cfg.SMSBridge != (domain.SMSBridgeCredentials{}) {
		resp.SMSBridge = &smsBridgeCredentialsBody{
			Endpoint:   cfg.SMSBridge.Endpoint,
			AccountSID: cfg.SMSBridge.AccountSID,
			AuthToken:  maskSecret(cfg.SMSBridge.AuthToken),
			From:       cfg.SMSBridge.From,
		}
	}

	return resp
}

// maskSecret keeps only the last four characters so operators can tell
// credentials apart without the API echoing them back whole.
func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****"
	}
	return "****" + value[len(value)-4:]
}
