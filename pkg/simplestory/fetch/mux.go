package fetch

import (
	"context"
	"fmt"
	"net/url"

	"github.com/tendant/simple-story/pkg/simplestory"
)

// Mux dispatches fetches by URL scheme
type Mux struct {
	fetchers map[string]simplestory.AssetFetcher
}

// NewMux creates an empty mux
func NewMux() *Mux {
	return &Mux{fetchers: make(map[string]simplestory.AssetFetcher)}
}

// Handle registers f for scheme
func (m *Mux) Handle(scheme string, f simplestory.AssetFetcher) *Mux {
	m.fetchers[scheme] = f
	return m
}

// Fetch forwards src to the fetcher registered for its scheme. Protocol
// relative URLs are fetched over https.
func (m *Mux) Fetch(ctx context.Context, src string) ([]byte, error) {
	u, err := url.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", src, err)
	}
	scheme := u.Scheme
	if scheme == "" && u.Host != "" {
		scheme = "https"
		src = "https:" + src
	}
	f, ok := m.fetchers[scheme]
	if !ok {
		return nil, fmt.Errorf("no fetcher for scheme %q", scheme)
	}
	return f.Fetch(ctx, src)
}
