package domain

import (
	"fmt"
	"strings"
	"time"
)

// DeliveryStatus is the persisted outcome of a single send attempt.
type DeliveryStatus string

const (
	DeliveryStatusSent   DeliveryStatus = "sent"
	DeliveryStatusFailed DeliveryStatus = "failed"
)

func (s DeliveryStatus) String() string { return string(s) }

// Result methods beyond the provider kinds themselves.
const (
	// MethodDirect marks a wa.me link produced without attempting a provider.
	MethodDirect = "direct"
	// MethodDirectFallback marks a wa.me link produced after a provider failure.
	MethodDirectFallback = "direct_fallback"
)

// RichMedia carries optional media attachments for a delivery.
type RichMedia struct {
	ImageURL    string
	DocumentURL string
	Filename    string
}

// Template references a pre-approved provider-side message template.
type Template struct {
	Name       string
	Language   string
	Components []map[string]any
}

// DeliveryRequest is a single "send this message to this recipient" request.
type DeliveryRequest struct {
	Recipient   string // raw, as supplied by the caller
	Body        string
	Media       RichMedia
	Template    *Template
	OrderID     string
	MessageType string
	Metadata    map[string]any
}

func (r *DeliveryRequest) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: delivery request is required", ErrValidation)
	}
	if strings.TrimSpace(r.Recipient) == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if strings.TrimSpace(r.Body) == "" && r.Template == nil && r.Media.ImageURL == "" && r.Media.DocumentURL == "" {
		return fmt.Errorf("%w: message body is required", ErrValidation)
	}
	if r.Template != nil && strings.TrimSpace(r.Template.Name) == "" {
		return fmt.Errorf("%w: template name is required", ErrValidation)
	}
	return nil
}

// DeliveryResult is the single, always-produced outcome of a DeliveryRequest.
//
// ArtifactProduced and ConfirmedSent are deliberately distinct: a direct-link
// result produces an artifact the user can open manually without any provider
// confirming transmission. Collapsing the two into one flag would make
// delivery-rate metrics count manual links as delivered messages.
type DeliveryResult struct {
	ArtifactProduced  bool
	ConfirmedSent     bool
	Method            string // provider kind, MethodDirect, or MethodDirectFallback
	ProviderMessageID string
	ErrorCode         ErrorCode
	ErrorMessage      string
	FallbackLink      string
}

// Success reports the legacy scalar outcome: a confirmed provider send, or a
// clean direct link produced without any recorded failure.
func (r DeliveryResult) Success() bool {
	if r.ConfirmedSent {
		return true
	}
	return r.ArtifactProduced && r.ErrorCode == "" && r.ErrorMessage == ""
}

// Status maps the result onto the persisted delivery status.
func (r DeliveryResult) Status() DeliveryStatus {
	if r.Success() {
		return DeliveryStatusSent
	}
	return DeliveryStatusFailed
}

// BroadcastOutcome aggregates per-recipient results of a broadcast.
// Results is index-aligned with the input recipient slice.
type BroadcastOutcome struct {
	Results    []DeliveryResult
	Total      int
	Successful int // results where Success() is true, soft successes included
	Confirmed  int // results where a provider confirmed transmission
}

// DeliveryLogEntry is the append-only audit record of one send attempt.
type DeliveryLogEntry struct {
	ID          string
	TenantID    string
	To          string
	Message     string
	Status      DeliveryStatus
	Method      string
	MessageID   string
	OrderID     string
	MessageType string
	Metadata    map[string]any
	CreatedAt   time.Time
}
