package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/kursadbilgin/delivery-router/internal/domain"
)

// Error classifies a provider call failure. PermissionDenied and
// RecipientNotAllowed carry the platform error-code taxonomy alongside the
// raw provider error so the router can map them to stable result codes.
type Error struct {
	StatusCode          int
	Code                int
	Subcode             int
	Message             string
	PermissionDenied    bool
	RecipientNotAllowed bool
	Transient           bool
	Cause               error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "provider error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if e.Code > 0 {
		parts = append(parts, fmt.Sprintf("code=%d", e.Code))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransient reports whether an error is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var providerErr *Error
	if errors.As(err, &providerErr) {
		return providerErr.Transient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// Classify maps a provider failure onto the stable result error code.
// The second return is false when no stable code applies and only the
// generic message should be surfaced.
func Classify(err error) (domain.ErrorCode, bool) {
	var providerErr *Error
	if !errors.As(err, &providerErr) {
		return "", false
	}
	switch {
	case providerErr.PermissionDenied:
		return domain.ErrorCodePermissionDenied, true
	case providerErr.RecipientNotAllowed:
		return domain.ErrorCodeRecipientNotAllowed, true
	}
	return "", false
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == 429 || (statusCode >= 500 && statusCode <= 599)
}
