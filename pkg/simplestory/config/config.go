package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-story/pkg/simplestory"
	"github.com/tendant/simple-story/pkg/simplestory/cache"
	"github.com/tendant/simple-story/pkg/simplestory/fetch"
	"github.com/tendant/simple-story/pkg/simplestory/source/cdn"
	"github.com/tendant/simple-story/pkg/simplestory/source/memory"
	pgsource "github.com/tendant/simple-story/pkg/simplestory/source/postgres"
	s3source "github.com/tendant/simple-story/pkg/simplestory/source/s3"
	"github.com/tendant/simple-story/pkg/simplestory/webhook"
)

// Story source types
const (
	SourceMemory   = "memory"
	SourcePostgres = "postgres"
	SourceS3       = "s3"
	SourceCDN      = "cdn"
)

// Option applies configuration to a Config instance.
type Option func(*Config) error

// Load constructs a Config by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*Config, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() Config {
	return Config{
		Port:            "8080",
		Environment:     "development",
		Source:          SourceMemory,
		DBSchema:        "story",
		DefaultLanguage: "default",
		Version:         simplestory.VersionPublished,
		S3: S3Config{
			Region: "us-east-1",
			Prefix: "stories",
		},
		CDN: CDNConfig{
			BaseURL:   cdn.DefaultBaseURL,
			CacheSize: 1024,
			CacheTTL:  time.Hour,
		},
		Assets: AssetConfig{
			CacheSize:     256,
			CacheTTL:      10 * time.Minute,
			MaxBytes:      fetch.DefaultMaxBytes,
			DedupeFetches: true,
		},
	}
}

// Config represents the configuration of a story loading service. The env
// tags are read by FromEnv.
type Config struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`

	// Story source: memory, postgres, s3 or cdn
	Source      string `env:"STORY_SOURCE" env-default:"memory"`
	DatabaseURL string `env:"DATABASE_URL"`
	DBSchema    string `env:"STORY_DB_SCHEMA" env-default:"story"`
	DBMigrate   bool   `env:"STORY_DB_MIGRATE" env-default:"false"`
	S3          S3Config
	CDN         CDNConfig

	// Resolution
	Prefix           string `env:"PUBLIC_URL_PREFIX"`
	DefaultLanguage  string `env:"DEFAULT_LANGUAGE" env-default:"default"`
	Version          string `env:"STORY_VERSION" env-default:"published"`
	PreviewParams    string `env:"PREVIEW_PARAMS"`
	ConcurrencyLimit int    `env:"RESOLVE_CONCURRENCY" env-default:"0"`
	Assets           AssetConfig

	WebhookSecret string `env:"WEBHOOK_SECRET"`
}

// S3Config locates story objects in a bucket
type S3Config struct {
	Region                 string `env:"AWS_S3_REGION" env-default:"us-east-1"`
	Bucket                 string `env:"AWS_S3_BUCKET"`
	Prefix                 string `env:"AWS_S3_PREFIX" env-default:"stories"`
	AccessKeyID            string `env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey        string `env:"AWS_SECRET_ACCESS_KEY"`
	Endpoint               string `env:"AWS_S3_ENDPOINT"`
	UsePathStyle           bool   `env:"AWS_S3_USE_PATH_STYLE" env-default:"false"`
	CreateBucketIfNotExist bool   `env:"AWS_S3_CREATE_BUCKET" env-default:"false"`
}

// CDNConfig configures the delivery API source
type CDNConfig struct {
	Token     string        `env:"CDN_TOKEN"`
	BaseURL   string        `env:"CDN_BASE_URL" env-default:"https://api.storyblok.com/v2"`
	CacheSize int           `env:"CDN_CACHE_SIZE" env-default:"1024"`
	CacheTTL  time.Duration `env:"CDN_CACHE_TTL" env-default:"1h"`
}

// AssetConfig configures inline SVG fetching
type AssetConfig struct {
	Disabled      bool          `env:"ASSET_INLINE_DISABLED" env-default:"false"`
	CacheSize     int           `env:"ASSET_CACHE_SIZE" env-default:"256"`
	CacheTTL      time.Duration `env:"ASSET_CACHE_TTL" env-default:"10m"`
	MaxBytes      int64         `env:"ASSET_MAX_BYTES" env-default:"1048576"`
	DedupeFetches bool          `env:"ASSET_DEDUPE_FETCHES" env-default:"true"`
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	switch c.Source {
	case SourceMemory:
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database_url is required when using postgres")
		}
	case SourceS3:
		if c.S3.Bucket == "" {
			return errors.New("s3 bucket is required when using s3")
		}
	case SourceCDN:
		if c.CDN.Token == "" {
			return errors.New("cdn token is required when using cdn")
		}
	default:
		return fmt.Errorf("unsupported story source: %s", c.Source)
	}

	if c.Version != simplestory.VersionPublished && c.Version != simplestory.VersionDraft {
		return fmt.Errorf("version must be '%s' or '%s', got: %s", simplestory.VersionPublished, simplestory.VersionDraft, c.Version)
	}
	if c.ConcurrencyLimit < 0 {
		return fmt.Errorf("concurrency limit must not be negative, got: %d", c.ConcurrencyLimit)
	}
	if _, err := url.ParseQuery(c.PreviewParams); err != nil {
		return fmt.Errorf("invalid preview params: %w", err)
	}
	return nil
}

// Stack is the runtime wired from a Config
type Stack struct {
	Loader      *simplestory.Loader
	Source      simplestory.StorySource
	Invalidator simplestory.Invalidator
	Webhook     *webhook.Invalidator

	closers []func()
}

// Close releases the connections held by the stack
func (s *Stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// BuildOption customizes Build
type BuildOption func(*buildOptions)

type buildOptions struct {
	logger    *slog.Logger
	metrics   simplestory.Metrics
	resolvers simplestory.Registry
	source    simplestory.StorySource
	values    map[string]interface{}
}

// WithLogger sets the logger of the built components
func WithLogger(logger *slog.Logger) BuildOption {
	return func(o *buildOptions) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics sink of the built components
func WithMetrics(m simplestory.Metrics) BuildOption {
	return func(o *buildOptions) {
		o.metrics = m
	}
}

// WithResolvers registers block resolvers on the loader
func WithResolvers(registry simplestory.Registry) BuildOption {
	return func(o *buildOptions) {
		o.resolvers = registry
	}
}

// WithContextValues hands host specific values to every resolver
func WithContextValues(values map[string]interface{}) BuildOption {
	return func(o *buildOptions) {
		o.values = values
	}
}

// WithSource uses source instead of building one from the configuration
func WithSource(source simplestory.StorySource) BuildOption {
	return func(o *buildOptions) {
		o.source = source
	}
}

// Build creates the story source, asset fetcher, loader and webhook
// invalidator described by the configuration.
func (c *Config) Build(ctx context.Context, opts ...BuildOption) (*Stack, error) {
	o := buildOptions{logger: slog.Default(), metrics: simplestory.NewNoopMetrics()}
	for _, opt := range opts {
		opt(&o)
	}

	stack := &Stack{}
	var invalidators simplestory.MultiInvalidator

	source := o.source
	if source == nil {
		var err error
		source, err = c.buildSource(ctx, o.logger, stack, &invalidators)
		if err != nil {
			stack.Close()
			return nil, fmt.Errorf("failed to build story source: %w", err)
		}
	}

	loaderOpts := []simplestory.Option{
		simplestory.WithSource(source),
		simplestory.WithPrefix(c.Prefix),
		simplestory.WithDefaultLanguage(c.DefaultLanguage),
		simplestory.WithDefaults(simplestory.StoryParams{Version: c.Version}),
		simplestory.WithLogger(o.logger),
		simplestory.WithMetrics(o.metrics),
		simplestory.WithConcurrencyLimit(c.ConcurrencyLimit),
		simplestory.WithFetchDedupe(c.Assets.DedupeFetches),
		simplestory.WithContextValues(o.values),
	}
	if o.resolvers != nil {
		loaderOpts = append(loaderOpts, simplestory.WithResolvers(o.resolvers))
	}
	if c.PreviewParams != "" {
		params, _ := url.ParseQuery(c.PreviewParams)
		loaderOpts = append(loaderOpts, simplestory.WithPreviewParams(params))
	}
	if !c.Assets.Disabled {
		fetcher, err := c.buildFetcher(ctx, source)
		if err != nil {
			stack.Close()
			return nil, fmt.Errorf("failed to build asset fetcher: %w", err)
		}
		loaderOpts = append(loaderOpts, simplestory.WithAssetFetcher(fetcher))
	}

	loader, err := simplestory.New(loaderOpts...)
	if err != nil {
		stack.Close()
		return nil, err
	}

	stack.Loader = loader
	stack.Source = source
	stack.Invalidator = invalidators
	stack.Webhook = webhook.New(source, invalidators,
		webhook.WithLogger(o.logger),
		webhook.WithMetrics(o.metrics),
	)
	return stack, nil
}

func (c *Config) buildSource(ctx context.Context, logger *slog.Logger, stack *Stack, invalidators *simplestory.MultiInvalidator) (simplestory.StorySource, error) {
	switch c.Source {
	case SourceMemory:
		return memory.New(), nil
	case SourcePostgres:
		pool, err := NewPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, err
		}
		stack.closers = append(stack.closers, pool.Close)
		src := pgsource.NewWithPool(pool)
		if c.DBMigrate {
			if err := src.Migrate(ctx); err != nil {
				return nil, err
			}
		}
		return src, nil
	case SourceS3:
		return s3source.NewFromConfig(ctx, c.s3Config())
	case SourceCDN:
		responses := cache.NewTagged[[]byte](c.CDN.CacheSize, c.CDN.CacheTTL)
		*invalidators = append(*invalidators, responses)
		return cdn.New(c.CDN.Token,
			cdn.WithBaseURL(c.CDN.BaseURL),
			cdn.WithCache(responses),
			cdn.WithLogger(logger),
		), nil
	default:
		return nil, fmt.Errorf("unsupported story source: %s", c.Source)
	}
}

// buildFetcher serves https and s3 asset URLs through a shared LRU. The S3
// client of an S3 story source is reused.
func (c *Config) buildFetcher(ctx context.Context, source simplestory.StorySource) (simplestory.AssetFetcher, error) {
	remote := fetch.NewHTTP(fetch.WithMaxBytes(c.Assets.MaxBytes))
	mux := fetch.NewMux().Handle("https", remote).Handle("http", remote)

	if _, ok := source.(*s3source.Source); ok || c.S3.Bucket != "" {
		client, err := s3source.NewClient(ctx, c.s3Config())
		if err != nil {
			return nil, err
		}
		mux.Handle("s3", fetch.NewS3(client))
	}

	return fetch.NewCached(mux, c.Assets.CacheSize, c.Assets.CacheTTL), nil
}

func (c *Config) s3Config() s3source.Config {
	return s3source.Config{
		Region:                 c.S3.Region,
		Bucket:                 c.S3.Bucket,
		Prefix:                 c.S3.Prefix,
		AccessKeyID:            c.S3.AccessKeyID,
		SecretAccessKey:        c.S3.SecretAccessKey,
		Endpoint:               c.S3.Endpoint,
		UsePathStyle:           c.S3.UsePathStyle,
		CreateBucketIfNotExist: c.S3.CreateBucketIfNotExist,
	}
}

// NewPool creates a pgx pool whose sessions use schema as search_path, and
// verifies connectivity.
func NewPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, errors.New("database_url is required")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET search_path TO "+pgx.Identifier{schema}.Sanitize())
			return err
		}
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return pool, nil
}
