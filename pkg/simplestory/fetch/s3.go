package fetch

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// GetObjectAPI is the part of the S3 client used by the S3 fetcher
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3 fetches assets addressed as s3://bucket/key
type S3 struct {
	client GetObjectAPI
}

// NewS3 creates an S3 fetcher
func NewS3(client GetObjectAPI) *S3 {
	return &S3{client: client}
}

// Fetch downloads the object named by src
func (f *S3) Fetch(ctx context.Context, src string) ([]byte, error) {
	u, err := url.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", src, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return nil, fmt.Errorf("not an s3 url: %s", src)
	}
	result, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(strings.TrimPrefix(u.Path, "/")),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", src, err)
	}
	defer result.Body.Close()
	return io.ReadAll(result.Body)
}
