package domain

import (
	"fmt"
	"strings"
)

// ProviderKind identifies the messaging backend a tenant routes through.
type ProviderKind string

const (
	ProviderMetaGraph   ProviderKind = "meta_graph"
	ProviderTechGateway ProviderKind = "tech_provider"
	ProviderSMSBridge   ProviderKind = "sms_bridge"
	ProviderDirectLink  ProviderKind = "direct_link"
)

func (p ProviderKind) String() string { return string(p) }

func (p ProviderKind) IsValid() bool {
	switch p {
	case ProviderMetaGraph, ProviderTechGateway, ProviderSMSBridge, ProviderDirectLink:
		return true
	}
	return false
}

func ParseProviderKindFromString(s string) (ProviderKind, error) {
	p := ProviderKind(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("%w: invalid provider %q", ErrValidation, s)
	}
	return p, nil
}

// ErrorCode is the stable classification attached to degraded delivery results.
type ErrorCode string

const (
	ErrorCodePermissionDenied    ErrorCode = "PERMISSION_DENIED"
	ErrorCodeRecipientNotAllowed ErrorCode = "RECIPIENT_NOT_ALLOWED"
)

func (c ErrorCode) String() string { return string(c) }
