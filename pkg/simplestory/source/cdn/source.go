// Package cdn implements a story source backed by a headless CMS content
// delivery API. Published responses are cached under the cache tags derived
// from their request URL, so webhook invalidation can evict them.
package cdn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tendant/simple-story/pkg/simplestory"
	"github.com/tendant/simple-story/pkg/simplestory/cache"
)

// DefaultBaseURL is the delivery API endpoint
const DefaultBaseURL = "https://api.storyblok.com/v2"

// Source implements simplestory.StorySource over the delivery API
type Source struct {
	baseURL string
	token   string
	client  *http.Client
	cache   *cache.Tagged[[]byte]
	logger  *slog.Logger
}

// Option configures the source
type Option func(*Source)

// WithBaseURL sets the API endpoint
func WithBaseURL(u string) Option {
	return func(s *Source) {
		s.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient sets the HTTP client. Its transport is wrapped so the
// content version parameter never reaches the API.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) {
		s.client = c
	}
}

// WithCache caches non-dynamic responses in c
func WithCache(c *cache.Tagged[[]byte]) Option {
	return func(s *Source) {
		s.cache = c
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a delivery API source authenticated with token
func New(token string, opts ...Option) *Source {
	s := &Source{
		baseURL: DefaultBaseURL,
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	c := *s.client
	c.Transport = &stripContentVersion{next: c.Transport}
	s.client = &c
	return s
}

// GetStory fetches a single story by full slug
func (s *Source) GetStory(ctx context.Context, slug string, params simplestory.StoryParams) (simplestory.Node, error) {
	var resp struct {
		Story simplestory.Node `json:"story"`
	}
	if err := s.get(ctx, "cdn/stories/"+simplestory.StripStartingSlash(slug), params.Values(), &resp); err != nil {
		var fe *simplestory.FetchError
		if errors.As(err, &fe) && fe.Status == http.StatusNotFound {
			return nil, simplestory.ErrStoryNotFound
		}
		return nil, &simplestory.SourceError{Source: "cdn", Slug: slug, Op: "get", Err: err}
	}
	if resp.Story == nil {
		return nil, simplestory.ErrStoryNotFound
	}
	return resp.Story, nil
}

// ListStories fetches the stories matching params
func (s *Source) ListStories(ctx context.Context, params simplestory.StoriesParams) ([]simplestory.Node, error) {
	var resp struct {
		Stories []simplestory.Node `json:"stories"`
	}
	if err := s.get(ctx, "cdn/stories", params.Values(), &resp); err != nil {
		return nil, &simplestory.SourceError{Source: "cdn", Slug: params.StartsWith, Op: "list", Err: err}
	}
	if resp.Stories == nil {
		resp.Stories = []simplestory.Node{}
	}
	return resp.Stories, nil
}

func (s *Source) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u, err := url.Parse(s.baseURL + "/" + path)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	query.Set("token", s.token)
	u.RawQuery = query.Encode()

	body, err := s.fetch(ctx, u)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// fetch performs the request, serving and filling the tagged cache for
// published content. Draft and search requests bypass the cache unless
// cv=-1 forces it.
func (s *Source) fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	q := u.Query()
	dynamic := q.Get("version") == simplestory.VersionDraft || q.Has("search_term")
	cacheable := s.cache != nil && (!dynamic || q.Get("cv") == "-1")

	key := cacheKey(u)
	if cacheable {
		if body, ok := s.cache.Get(key); ok {
			return body, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.WarnContext(ctx, "Delivery API response status", "status", resp.StatusCode, "path", u.Path)
		return nil, &simplestory.FetchError{URL: u.Path, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if cacheable {
		s.cache.Add(key, body, simplestory.RequestTags(u)...)
	}
	return body, nil
}

// cacheKey identifies a request independent of its content version
func cacheKey(u *url.URL) string {
	c := *u
	q := c.Query()
	q.Del("cv")
	c.RawQuery = q.Encode()
	return c.String()
}

// stripContentVersion removes the cv parameter so the API always serves the
// latest content version.
type stripContentVersion struct {
	next http.RoundTripper
}

func (t *stripContentVersion) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	if !req.URL.Query().Has("cv") {
		return next.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	q := r.URL.Query()
	q.Del("cv")
	r.URL.RawQuery = q.Encode()
	return next.RoundTrip(r)
}
