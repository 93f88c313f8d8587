package services

import (
	"context"
	"net/url"
)

// URLQRRenderer builds image URLs for a QR rendering endpoint that takes
// the payload as its trailing query parameter (e.g. "...&data=").
type URLQRRenderer struct {
	baseURL string
}

func NewURLQRRenderer(baseURL string) *URLQRRenderer {
	return &URLQRRenderer{baseURL: baseURL}
}

func (r *URLQRRenderer) Render(ctx context.Context, payload string) string {
	if r.baseURL == "" || payload == "" {
		return ""
	}
	return r.baseURL + url.QueryEscape(payload)
}
