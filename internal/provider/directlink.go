package provider

import (
	"context"
	"net/url"

	"github.com/kursadbilgin/delivery-router/internal/domain"
	"github.com/kursadbilgin/delivery-router/internal/recipient"
)

// BuildDirectLink builds a pre-filled wa.me URL for manual sending. The
// recipient is reduced to bare digits (no leading +), the body is
// query-escaped. Requires no credentials and no network call.
func BuildDirectLink(to, body string) string {
	return "https://wa.me/" + recipient.Digits(to) + "?text=" + url.QueryEscape(body)
}

// DirectLinkAdapter is the universal fallback backend. It never fails and
// never touches the network; its Response carries the link instead of a
// provider message id.
type DirectLinkAdapter struct{}

func NewDirectLinkAdapter() *DirectLinkAdapter {
	return &DirectLinkAdapter{}
}

func (a *DirectLinkAdapter) Send(_ context.Context, _ domain.TenantConfig, to string, req domain.DeliveryRequest) (*Response, error) {
	return &Response{Link: BuildDirectLink(to, req.Body)}, nil
}
