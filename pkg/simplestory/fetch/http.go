// Package fetch provides asset fetchers used to inline remote SVG markup.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tendant/simple-story/pkg/simplestory"
)

// DefaultMaxBytes bounds the size of a fetched asset.
const DefaultMaxBytes = 1 << 20

// HTTP fetches assets over HTTP(S)
type HTTP struct {
	client   *http.Client
	maxBytes int64
}

// HTTPOption configures an HTTP fetcher
type HTTPOption func(*HTTP)

// WithClient sets the HTTP client
func WithClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		h.client = c
	}
}

// WithMaxBytes sets the maximum accepted body size
func WithMaxBytes(n int64) HTTPOption {
	return func(h *HTTP) {
		h.maxBytes = n
	}
}

// NewHTTP creates an HTTP fetcher with a 10s timeout
func NewHTTP(opts ...HTTPOption) *HTTP {
	h := &HTTP{
		client:   &http.Client{Timeout: 10 * time.Second},
		maxBytes: DefaultMaxBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Fetch downloads src. Non-2xx responses yield a *simplestory.FetchError.
func (h *HTTP) Fetch(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &simplestory.FetchError{URL: src, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, h.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src, err)
	}
	if int64(len(body)) > h.maxBytes {
		return nil, fmt.Errorf("read %s: body exceeds %d bytes", src, h.maxBytes)
	}
	return body, nil
}
