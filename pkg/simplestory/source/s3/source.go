package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/tendant/simple-story/pkg/simplestory"
)

// Config options for the S3 story source
type Config struct {
	Region          string // AWS region
	Bucket          string // S3 bucket name
	Prefix          string // Key prefix of story objects
	AccessKeyID     string // AWS access key ID
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing (default: false)

	// MinIO/S3-compatible service options
	CreateBucketIfNotExist bool // Create bucket if it doesn't exist
}

// API is the subset of the S3 client used by the source
type API interface {
	s3.ListObjectsV2APIClient
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// Source implements simplestory.StorySource on top of JSON objects stored at
// <prefix>/<full_slug>.json
type Source struct {
	client API
	bucket string
	prefix string
}

// NewClient creates an S3 client from config
func NewClient(ctx context.Context, config Config) (*s3.Client, error) {
	if config.Region == "" {
		config.Region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(config.Region)}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			config.AccessKeyID,
			config.SecretAccessKey,
			"",
		)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Options []func(*s3.Options)
	if config.Endpoint != "" {
		s3Options = append(s3Options, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(config.Endpoint)
			o.UsePathStyle = config.UsePathStyle
		})
	}
	return s3.NewFromConfig(awsCfg, s3Options...), nil
}

// NewFromConfig creates a client from config and a source on top of it
func NewFromConfig(ctx context.Context, config Config) (*Source, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	client, err := NewClient(ctx, config)
	if err != nil {
		return nil, err
	}
	src := New(client, config.Bucket, config.Prefix)
	if config.CreateBucketIfNotExist {
		if err := src.createBucketIfNotExists(ctx); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return src, nil
}

// New creates a source reading from bucket below prefix
func New(client API, bucket, prefix string) *Source {
	return &Source{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (s *Source) createBucketIfNotExists(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return err
	}
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

// Key returns the object key of a story
func (s *Source) Key(fullSlug string) string {
	return path.Join(s.prefix, simplestory.StripStartingSlash(fullSlug)) + ".json"
}

func (s *Source) slugOf(key string) string {
	slug := strings.TrimSuffix(key, ".json")
	if s.prefix != "" {
		slug = strings.TrimPrefix(slug, s.prefix+"/")
	}
	return slug
}

// Put stores story as JSON under its full slug
func (s *Source) Put(ctx context.Context, story simplestory.Node) error {
	slug, _ := story["full_slug"].(string)
	if slug == "" {
		return &simplestory.ValidationError{Field: "full_slug", Err: simplestory.ErrInvalidPayload}
	}
	data, err := json.Marshal(story)
	if err != nil {
		return fmt.Errorf("encode story %s: %w", slug, err)
	}

	uploader := manager.NewUploader(s.client)
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.Key(slug)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return &simplestory.SourceError{Source: "s3", Slug: slug, Op: "put", Err: err}
	}
	return nil
}

// GetStory downloads and decodes the story stored under slug
func (s *Source) GetStory(ctx context.Context, slug string, params simplestory.StoryParams) (simplestory.Node, error) {
	story, err := s.get(ctx, s.Key(slug))
	if err != nil {
		if isNotFound(err) {
			return nil, simplestory.ErrStoryNotFound
		}
		return nil, &simplestory.SourceError{Source: "s3", Slug: slug, Op: "get", Err: err}
	}
	return story, nil
}

func (s *Source) get(ctx context.Context, key string) (simplestory.Node, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	story := simplestory.Node{}
	if err := json.Unmarshal(data, &story); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	if _, ok := story["full_slug"]; !ok {
		story["full_slug"] = s.slugOf(key)
	}
	return story, nil
}

// isNotFound reports a missing object. S3-compatible services do not all
// return the typed NoSuchKey error, so the error code is checked as well.
func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NoSuchKey" || apiErr.ErrorCode() == "NotFound")
}

// ListStories lists the objects below the starts_with folder and returns the
// stories matching params ordered by full slug
func (s *Source) ListStories(ctx context.Context, params simplestory.StoriesParams) ([]simplestory.Node, error) {
	listPrefix := s.prefix
	if listPrefix != "" {
		listPrefix += "/"
	}
	listPrefix += params.StartsWith

	var stories []simplestory.Node
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(listPrefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, &simplestory.SourceError{Source: "s3", Slug: params.StartsWith, Op: "list", Err: err}
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".json") || !params.MatchSlug(s.slugOf(key)) {
				continue
			}
			story, err := s.get(ctx, key)
			if err != nil {
				return nil, &simplestory.SourceError{Source: "s3", Slug: s.slugOf(key), Op: "list", Err: err}
			}
			if params.Match(story) {
				stories = append(stories, story)
			}
		}
	}

	sort.Slice(stories, func(i, j int) bool {
		a, _ := stories[i]["full_slug"].(string)
		b, _ := stories[j]["full_slug"].(string)
		return a < b
	})
	if stories == nil {
		stories = []simplestory.Node{}
	}
	return params.Paginate(stories), nil
}

var _ simplestory.StoryWriter = (*Source)(nil)
