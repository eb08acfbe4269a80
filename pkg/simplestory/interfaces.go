package simplestory

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// StorySource defines the interface for story stores
type StorySource interface {
	// GetStory returns the raw story tree for a full slug
	GetStory(ctx context.Context, slug string, params StoryParams) (Node, error)

	// ListStories returns the raw stories matching params
	ListStories(ctx context.Context, params StoriesParams) ([]Node, error)
}

// StoryWriter stores raw stories under their full slug
type StoryWriter interface {
	Put(ctx context.Context, story Node) error
}

// AssetFetcher fetches the raw bytes of a remote asset
type AssetFetcher interface {
	Fetch(ctx context.Context, src string) ([]byte, error)
}

// AssetFetcherFunc adapts a function to AssetFetcher
type AssetFetcherFunc func(ctx context.Context, src string) ([]byte, error)

// Fetch calls f(ctx, src)
func (f AssetFetcherFunc) Fetch(ctx context.Context, src string) ([]byte, error) {
	return f(ctx, src)
}

// Invalidator performs host specific invalidation of one cache tag
type Invalidator interface {
	Invalidate(ctx context.Context, tag string) error
}

// InvalidatorFunc adapts a function to Invalidator
type InvalidatorFunc func(ctx context.Context, tag string) error

// Invalidate calls f(ctx, tag)
func (f InvalidatorFunc) Invalidate(ctx context.Context, tag string) error {
	return f(ctx, tag)
}

// Resolver augments a block with externally fetched fields. It returns nil
// when there is nothing to merge. The block and ancestors must be treated as
// read-only and must not be retained after the resolver returns.
type Resolver func(ctx context.Context, block Node, rc *ResolverContext, ancestors []interface{}) (Node, error)

// Registry maps block components to their resolvers
type Registry map[string]Resolver

// ResolverContext is passed unchanged to every resolver of a pass
type ResolverContext struct {
	// Locale is the language the story was requested in
	Locale string
	// Prefix is the public URL prefix of the pass
	Prefix string
	// Story is the story being resolved
	Story Node
	// GetStories loads sibling stories with links rewritten for the same prefix
	GetStories func(ctx context.Context, params StoriesParams) ([]Node, error)
	// Values carries host specific capabilities
	Values map[string]interface{}
}

// Value returns a host specific value by key
func (rc *ResolverContext) Value(key string) interface{} {
	if rc == nil || rc.Values == nil {
		return nil
	}
	return rc.Values[key]
}

// Story versions
const (
	VersionPublished = "published"
	VersionDraft     = "draft"
)

// StoryParams are query options for loading a single story
type StoryParams struct {
	Version          string
	Language         string
	FallbackLang     string
	ResolveLinks     string
	ResolveRelations []string
	FromRelease      string
}

// Merge returns p with every non-empty field of override applied
func (p StoryParams) Merge(override StoryParams) StoryParams {
	if override.Version != "" {
		p.Version = override.Version
	}
	if override.Language != "" {
		p.Language = override.Language
	}
	if override.FallbackLang != "" {
		p.FallbackLang = override.FallbackLang
	}
	if override.ResolveLinks != "" {
		p.ResolveLinks = override.ResolveLinks
	}
	if len(override.ResolveRelations) > 0 {
		p.ResolveRelations = override.ResolveRelations
	}
	if override.FromRelease != "" {
		p.FromRelease = override.FromRelease
	}
	return p
}

// Values encodes the params as delivery API query parameters
func (p StoryParams) Values() url.Values {
	v := url.Values{}
	setNonEmpty(v, "version", p.Version)
	setNonEmpty(v, "language", p.Language)
	setNonEmpty(v, "fallback_lang", p.FallbackLang)
	setNonEmpty(v, "resolve_links", p.ResolveLinks)
	setNonEmpty(v, "resolve_relations", strings.Join(p.ResolveRelations, ","))
	setNonEmpty(v, "from_release", p.FromRelease)
	return v
}

// StoriesParams are query options for listing stories
type StoriesParams struct {
	StoryParams
	StartsWith  string
	ContentType string
	BySlugs     []string
	SearchTerm  string
	SortBy      string
	Page        int
	PerPage     int
}

// Values encodes the params as delivery API query parameters
func (p StoriesParams) Values() url.Values {
	v := p.StoryParams.Values()
	setNonEmpty(v, "starts_with", p.StartsWith)
	setNonEmpty(v, "content_type", p.ContentType)
	setNonEmpty(v, "by_slugs", strings.Join(p.BySlugs, ","))
	setNonEmpty(v, "search_term", p.SearchTerm)
	setNonEmpty(v, "sort_by", p.SortBy)
	if p.Page > 0 {
		v.Set("page", strconv.Itoa(p.Page))
	}
	if p.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(p.PerPage))
	}
	return v
}

// MatchSlug reports whether a full slug satisfies the starts_with and
// by_slugs filters. Wildcards in by_slugs match a folder prefix.
func (p StoriesParams) MatchSlug(fullSlug string) bool {
	if p.StartsWith != "" && !strings.HasPrefix(fullSlug, p.StartsWith) {
		return false
	}
	if len(p.BySlugs) == 0 {
		return true
	}
	for _, slug := range p.BySlugs {
		if prefix, ok := strings.CutSuffix(slug, "*"); ok {
			if strings.HasPrefix(fullSlug, prefix) {
				return true
			}
		} else if fullSlug == slug {
			return true
		}
	}
	return false
}

// Match reports whether a story satisfies the slug, content type and search
// filters of p.
func (p StoriesParams) Match(story Node) bool {
	if !p.MatchSlug(stringField(story, "full_slug")) {
		return false
	}
	if p.ContentType != "" && ContentType(story) != p.ContentType {
		return false
	}
	if p.SearchTerm != "" {
		name := strings.ToLower(stringField(story, "name"))
		if !strings.Contains(name, strings.ToLower(p.SearchTerm)) {
			return false
		}
	}
	return true
}

// Paginate returns the page of stories selected by p. Without PerPage every
// story is returned.
func (p StoriesParams) Paginate(stories []Node) []Node {
	if p.PerPage <= 0 {
		return stories
	}
	page := p.Page
	if page < 1 {
		page = 1
	}
	start := (page - 1) * p.PerPage
	if start >= len(stories) {
		return []Node{}
	}
	end := start + p.PerPage
	if end > len(stories) {
		end = len(stories)
	}
	return stories[start:end]
}

func setNonEmpty(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

// Metrics receives observations of resolution passes and invalidations
type Metrics interface {
	// PassCompleted is called once per resolution pass
	PassCompleted(duration time.Duration, tasks int, failed bool)

	// ResolverCompleted is called after every resolver invocation
	ResolverCompleted(component string, err error)

	// AssetFetched is called after every inline asset lookup
	AssetFetched(outcome AssetOutcome)

	// TagInvalidated is called after every invalidation call
	TagInvalidated(tag string, err error)
}

// AssetOutcome classifies an inline asset lookup
type AssetOutcome string

// Asset lookup outcomes
const (
	AssetFetchedRemote AssetOutcome = "fetched"
	AssetMemoHit       AssetOutcome = "memo"
	AssetShared        AssetOutcome = "shared"
	AssetFailed        AssetOutcome = "failed"
)
