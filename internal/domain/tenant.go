package domain

import "time"

// MetaGraphCredentials are the Cloud API credentials for a tenant.
type MetaGraphCredentials struct {
	AccessToken   string
	PhoneNumberID string
}

// TechGatewayCredentials identify the tenant at the managed gateway.
type TechGatewayCredentials struct {
	Endpoint string
	APIKey   string
}

// SMSBridgeCredentials are basic-auth style credentials for the HTTP bridge.
type SMSBridgeCredentials struct {
	Endpoint   string
	AccountSID string
	AuthToken  string
	From       string
}

// TenantConfig is the per-tenant delivery configuration. It is read fresh on
// every send; two consecutive sends may observe different snapshots.
type TenantConfig struct {
	TenantID       string
	Enabled        bool
	Provider       ProviderKind
	PhoneNumber    string // tenant's own on-file number, used as self-test recipient
	MetaGraph      MetaGraphCredentials
	TechGateway    TechGatewayCredentials
	SMSBridge      SMSBridgeCredentials
	Verified       bool
	LastVerifiedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ApplyDefaults fills zero-value sub-fields with the documented defaults.
func (c *TenantConfig) ApplyDefaults() {
	if c == nil {
		return
	}
	if !c.Provider.IsValid() {
		c.Provider = ProviderDirectLink
	}
}

// TenantConfigUpdate is a partial update to a tenant's delivery settings.
// Nil fields are left untouched.
type TenantConfigUpdate struct {
	Enabled        *bool
	Provider       *ProviderKind
	PhoneNumber    *string
	MetaGraph      *MetaGraphCredentials
	TechGateway    *TechGatewayCredentials
	SMSBridge      *SMSBridgeCredentials
	Verified       *bool
	LastVerifiedAt *time.Time
}

// VerificationState is the outcome of a connectivity self-test.
type VerificationState string

const (
	VerificationUnconfigured        VerificationState = "UNCONFIGURED"
	VerificationDirectLinkOK        VerificationState = "DIRECT_LINK_OK"
	VerificationVerified            VerificationState = "VERIFIED"
	VerificationPermissionDenied    VerificationState = "PERMISSION_DENIED"
	VerificationRecipientNotAllowed VerificationState = "RECIPIENT_NOT_ALLOWED"
	VerificationGenericFailure      VerificationState = "GENERIC_FAILURE"
)

func (s VerificationState) String() string { return string(s) }
