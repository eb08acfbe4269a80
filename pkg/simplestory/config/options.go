package config

import (
	"fmt"
	"time"

	"github.com/tendant/simple-story/pkg/simplestory"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *Config) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithMemorySource serves stories from memory
func WithMemorySource() Option {
	return func(c *Config) error {
		c.Source = SourceMemory
		return nil
	}
}

// WithPostgresSource reads stories from the stories table of a Postgres database
func WithPostgresSource(databaseURL, schema string) Option {
	return func(c *Config) error {
		if databaseURL == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.Source = SourcePostgres
		c.DatabaseURL = databaseURL
		if schema != "" {
			c.DBSchema = schema
		}
		return nil
	}
}

// WithS3Source reads stories stored as JSON objects below prefix in bucket
func WithS3Source(bucket, region, prefix string) Option {
	return func(c *Config) error {
		if bucket == "" {
			return fmt.Errorf("S3 bucket cannot be empty")
		}
		c.Source = SourceS3
		c.S3.Bucket = bucket
		if region != "" {
			c.S3.Region = region
		}
		if prefix != "" {
			c.S3.Prefix = prefix
		}
		return nil
	}
}

// WithS3Endpoint sets a custom S3 endpoint (for MinIO, LocalStack, etc.)
func WithS3Endpoint(endpoint string, usePathStyle bool) Option {
	return func(c *Config) error {
		c.S3.Endpoint = endpoint
		c.S3.UsePathStyle = usePathStyle
		return nil
	}
}

// WithS3Credentials sets static credentials for S3
func WithS3Credentials(accessKeyID, secretAccessKey string) Option {
	return func(c *Config) error {
		c.S3.AccessKeyID = accessKeyID
		c.S3.SecretAccessKey = secretAccessKey
		return nil
	}
}

// WithCDNSource reads stories from the delivery API with token
func WithCDNSource(token string) Option {
	return func(c *Config) error {
		if token == "" {
			return fmt.Errorf("CDN token cannot be empty")
		}
		c.Source = SourceCDN
		c.CDN.Token = token
		return nil
	}
}

// WithCDNCache sizes the tagged response cache of the delivery API source
func WithCDNCache(size int, ttl time.Duration) Option {
	return func(c *Config) error {
		if size < 0 || ttl < 0 {
			return fmt.Errorf("cache size and ttl must not be negative")
		}
		c.CDN.CacheSize = size
		c.CDN.CacheTTL = ttl
		return nil
	}
}

// WithPrefix sets the public URL prefix
func WithPrefix(prefix string) Option {
	return func(c *Config) error {
		c.Prefix = prefix
		return nil
	}
}

// WithDefaultLanguage sets the language whose URLs carry no language folder
func WithDefaultLanguage(lang string) Option {
	return func(c *Config) error {
		if lang == "" {
			return fmt.Errorf("default language cannot be empty")
		}
		c.DefaultLanguage = lang
		return nil
	}
}

// WithDraft loads draft versions and appends params to every public URL
func WithDraft(previewParams string) Option {
	return func(c *Config) error {
		c.Version = simplestory.VersionDraft
		c.PreviewParams = previewParams
		return nil
	}
}

// WithConcurrencyLimit bounds concurrent resolvers per pass
func WithConcurrencyLimit(n int) Option {
	return func(c *Config) error {
		if n < 0 {
			return fmt.Errorf("concurrency limit must not be negative, got: %d", n)
		}
		c.ConcurrencyLimit = n
		return nil
	}
}

// WithAssetInlining enables or disables inline SVG fetching
func WithAssetInlining(enabled bool) Option {
	return func(c *Config) error {
		c.Assets.Disabled = !enabled
		return nil
	}
}

// WithWebhookSecret sets the webhook signature secret
func WithWebhookSecret(secret string) Option {
	return func(c *Config) error {
		c.WebhookSecret = secret
		return nil
	}
}
