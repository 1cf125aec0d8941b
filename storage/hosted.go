package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Hosted is a write-only storage backend for an operator's SHL files
// fronted by a hosted service the SDK does not otherwise control: store
// and delete route through HTTPS PUT/DELETE carrying an API key in the
// Authorization header as a "Bearer <token>".
//
// The hosted service enforces its own access control; this backend
// intentionally has no ServerStorage implementation (no Read, no
// UpdateMetadata) because there is nothing for this SDK's
// access-control engine to operate on here.
type Hosted struct {
	Endpoint string
	APIKey   string
	Base     string
	HTTP     *http.Client
}

// NewHosted constructs a Hosted backend. endpoint is the hosted
// service's API origin (where store/delete requests are sent); baseURL
// is the public origin under which the hosted service serves the
// resulting manifest/content/attachment files.
func NewHosted(endpoint, apiKey, baseURL string) *Hosted {
	return &Hosted{
		Endpoint: strings.TrimSuffix(endpoint, "/"),
		APIKey:   apiKey,
		Base:     strings.TrimSuffix(baseURL, "/"),
		HTTP:     http.DefaultClient,
	}
}

func (h *Hosted) BaseURL() string { return h.Base }

func (h *Hosted) client() *http.Client {
	if h.HTTP != nil {
		return h.HTTP
	}
	return http.DefaultClient
}

func (h *Hosted) do(ctx context.Context, method, key string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, method, h.Endpoint+"/"+key, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := h.client().Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: unexpected status %d", method, key, resp.StatusCode)
	}
	return nil
}

func (h *Hosted) Store(ctx context.Context, key string, blob []byte) error {
	return h.do(ctx, http.MethodPut, key, blob)
}

func (h *Hosted) Delete(ctx context.Context, prefix string) error {
	return h.do(ctx, http.MethodDelete, prefix, nil)
}
