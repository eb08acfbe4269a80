package simplestory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
)

// Loader fetches stories from a source and runs them through the resolution
// pipeline.
type Loader struct {
	source          StorySource
	registry        Registry
	fetcher         AssetFetcher
	prefix          string
	defaultLanguage string
	previewParams   url.Values
	defaults        StoryParams
	logger          *slog.Logger
	metrics         Metrics
	limit           int
	dedupeFetches   bool
	values          map[string]interface{}
}

// Option represents a functional option for configuring the loader
type Option func(*Loader)

// WithSource sets the story source
func WithSource(source StorySource) Option {
	return func(l *Loader) {
		l.source = source
	}
}

// WithResolvers registers resolvers by component. Later registrations for the
// same component win.
func WithResolvers(registry Registry) Option {
	return func(l *Loader) {
		if l.registry == nil {
			l.registry = make(Registry)
		}
		for component, resolver := range registry {
			l.registry[component] = resolver
		}
	}
}

// WithAssetFetcher sets the fetcher used to inline SVG assets
func WithAssetFetcher(f AssetFetcher) Option {
	return func(l *Loader) {
		l.fetcher = f
	}
}

// WithPrefix sets the public URL prefix
func WithPrefix(prefix string) Option {
	return func(l *Loader) {
		l.prefix = prefix
	}
}

// WithDefaultLanguage sets the site default language
func WithDefaultLanguage(lang string) Option {
	return func(l *Loader) {
		l.defaultLanguage = lang
	}
}

// WithPreviewParams sets query parameters carried on every story URL
func WithPreviewParams(params url.Values) Option {
	return func(l *Loader) {
		l.previewParams = params
	}
}

// WithDefaults sets the story params every request starts from
func WithDefaults(params StoryParams) Option {
	return func(l *Loader) {
		l.defaults = params
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) Option {
	return func(l *Loader) {
		if m != nil {
			l.metrics = m
		}
	}
}

// WithConcurrencyLimit bounds the number of tasks a pass runs at once
func WithConcurrencyLimit(n int) Option {
	return func(l *Loader) {
		l.limit = n
	}
}

// WithFetchDedupe controls whether concurrent fetches of the same SVG within
// a pass share one request. Enabled by default.
func WithFetchDedupe(enabled bool) Option {
	return func(l *Loader) {
		l.dedupeFetches = enabled
	}
}

// WithContextValues sets host specific values handed to every resolver
// through ResolverContext.Value
func WithContextValues(values map[string]interface{}) Option {
	return func(l *Loader) {
		l.values = values
	}
}

// New creates a new loader with the given options
func New(options ...Option) (*Loader, error) {
	l := &Loader{
		registry:      make(Registry),
		logger:        slog.Default(),
		metrics:       NewNoopMetrics(),
		defaults:      StoryParams{Version: VersionPublished},
		dedupeFetches: true,
	}
	for _, option := range options {
		option(l)
	}
	if l.source == nil {
		return nil, ErrSourceRequired
	}
	return l, nil
}

// ForLanguage returns a loader that requests stories in lang. Languages other
// than the site default get their code appended to the public URL prefix.
func (l *Loader) ForLanguage(lang string) *Loader {
	if lang == "" {
		return l
	}
	c := *l
	c.defaults.Language = lang
	if !isDefaultLanguage(lang, l.defaultLanguage) {
		c.prefix = JoinPath(l.prefix, lang)
	}
	return &c
}

// Prefix returns the public URL prefix of the loader
func (l *Loader) Prefix() string {
	return l.prefix
}

func (l *Loader) links() *LinkRewriter {
	return NewLinkRewriter(l.prefix, l.previewParams, l.defaultLanguage)
}

// GetStory loads a story, rewrites its links and resolves its blocks. The
// returned story carries resolved_data, public_url_prefix and preview_params.
func (l *Loader) GetStory(ctx context.Context, slug string, params StoryParams) (Node, error) {
	params = l.defaults.Merge(params)
	story, err := l.source.GetStory(ctx, slug, params)
	if err != nil {
		if errors.Is(err, ErrStoryNotFound) {
			return nil, fmt.Errorf("get story %s: %w", slug, ErrStoryNotFound)
		}
		return nil, fmt.Errorf("get story %s: %w", slug, err)
	}

	links := l.links()
	links.RewriteLinks(story)

	rc := &ResolverContext{
		Locale:     params.Language,
		Prefix:     l.prefix,
		Story:      story,
		GetStories: l.GetStories,
		Values:     l.values,
	}
	resolved := Resolve(ctx, story, l.registry, rc,
		WithLinkRewriter(links),
		WithFetcher(l.fetcher),
		WithPassLogger(l.logger.With("slug", slug)),
		WithPassMetrics(l.metrics),
		WithTaskLimit(l.limit),
		WithSharedAssetFetches(l.dedupeFetches),
	)

	story[FieldResolvedData] = resolved
	story[FieldPublicURLPrefix] = l.prefix
	if len(l.previewParams) > 0 {
		story[FieldPreviewParams] = l.previewParams.Encode()
	}
	return story, nil
}

// GetStories lists stories and rewrites their links. Resolvers do not run on
// listed stories.
func (l *Loader) GetStories(ctx context.Context, params StoriesParams) ([]Node, error) {
	params.StoryParams = l.defaults.Merge(params.StoryParams)
	stories, err := l.source.ListStories(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	links := l.links()
	for _, story := range stories {
		links.RewriteLinks(story)
	}
	return stories, nil
}

// Tags loads a story and returns its cache tags
func (l *Loader) Tags(ctx context.Context, slug string) ([]string, error) {
	story, err := l.source.GetStory(ctx, slug, l.defaults)
	if err != nil {
		return nil, fmt.Errorf("get story %s: %w", slug, err)
	}
	return PageTags(story), nil
}
