// Package webhook turns CMS publish events into cache-tag invalidations.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tendant/simple-story/pkg/simplestory"
)

// SignatureHeader carries the hex HMAC-SHA1 of the request body
const SignatureHeader = "webhook-signature"

// Payload is the part of a CMS webhook body used for invalidation
type Payload struct {
	Action   string `json:"action"`
	FullSlug string `json:"full_slug"`
}

// Lister lists the stories below a slug
type Lister interface {
	ListStories(ctx context.Context, params simplestory.StoriesParams) ([]simplestory.Node, error)
}

// ProcessTag maps one derived tag to the tags actually invalidated
type ProcessTag func(tag string) []string

// Identity invalidates every derived tag as is
func Identity(tag string) []string {
	return []string{tag}
}

// Invalidator fans a webhook payload out to tag invalidations
type Invalidator struct {
	lister      Lister
	invalidator simplestory.Invalidator
	processTag  ProcessTag
	logger      *slog.Logger
	metrics     simplestory.Metrics
}

// Option configures an Invalidator
type Option func(*Invalidator)

// WithProcessTag sets the tag mapping
func WithProcessTag(fn ProcessTag) Option {
	return func(i *Invalidator) {
		if fn != nil {
			i.processTag = fn
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(i *Invalidator) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m simplestory.Metrics) Option {
	return func(i *Invalidator) {
		if m != nil {
			i.metrics = m
		}
	}
}

// New creates an Invalidator
func New(lister Lister, invalidator simplestory.Invalidator, opts ...Option) *Invalidator {
	i := &Invalidator{
		lister:      lister,
		invalidator: invalidator,
		processTag:  Identity,
		logger:      slog.Default(),
		metrics:     simplestory.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Invalidate validates a raw webhook body and invalidates the tags of every
// story under its full slug. It returns the invalidated tags.
func (i *Invalidator) Invalidate(ctx context.Context, body []byte) ([]string, error) {
	payload, err := Parse(body)
	if err != nil {
		return nil, err
	}
	return i.InvalidatePayload(ctx, payload)
}

// InvalidatePayload invalidates the tags of every story under
// payload.FullSlug, calling the invalidator once per distinct tag.
func (i *Invalidator) InvalidatePayload(ctx context.Context, payload Payload) ([]string, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	stories, err := i.lister.ListStories(ctx, simplestory.StoriesParams{StartsWith: payload.FullSlug})
	if err != nil {
		if errors.Is(err, simplestory.ErrStoryNotFound) {
			i.logger.InfoContext(ctx, "Stories not found", "slug", payload.FullSlug)
		}
		return nil, fmt.Errorf("list stories %s: %w", payload.FullSlug, err)
	}
	if len(stories) == 0 {
		i.logger.WarnContext(ctx, "Not revalidating, no stories found", "slug", payload.FullSlug)
		return []string{}, nil
	}

	seen := make(map[string]struct{})
	tags := []string{}
	for _, story := range stories {
		for _, derived := range simplestory.PageTags(story) {
			for _, tag := range i.processTag(derived) {
				if _, ok := seen[tag]; ok || tag == "" {
					continue
				}
				seen[tag] = struct{}{}
				tags = append(tags, tag)
			}
		}
	}

	var errs []error
	for _, tag := range tags {
		i.logger.InfoContext(ctx, "Revalidate tag", "tag", tag, "action", payload.Action)
		err := i.invalidator.Invalidate(ctx, tag)
		i.metrics.TagInvalidated(tag, err)
		if err != nil {
			i.logger.ErrorContext(ctx, "Failed to revalidate tag", "tag", tag, "err", err)
			errs = append(errs, fmt.Errorf("invalidate %s: %w", tag, err))
		}
	}
	return tags, errors.Join(errs...)
}

// Invalidate is the functional form of Invalidator.Invalidate
func Invalidate(ctx context.Context, body []byte, lister Lister, invalidator simplestory.Invalidator, processTag ProcessTag) ([]string, error) {
	return New(lister, invalidator, WithProcessTag(processTag)).Invalidate(ctx, body)
}

// Parse decodes and validates a webhook body
func Parse(body []byte) (Payload, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Payload{}, &simplestory.ValidationError{Field: "body", Err: fmt.Errorf("%w: %v", simplestory.ErrInvalidPayload, err)}
	}
	var p Payload
	fields := []struct {
		name string
		dst  *string
	}{
		{"action", &p.Action},
		{"full_slug", &p.FullSlug},
	}
	for _, f := range fields {
		s, ok := raw[f.name].(string)
		if !ok {
			return Payload{}, &simplestory.ValidationError{Field: f.name, Err: simplestory.ErrInvalidPayload}
		}
		*f.dst = s
	}
	return p, p.Validate()
}

// Validate reports a ValidationError for empty fields
func (p Payload) Validate() error {
	if p.Action == "" {
		return &simplestory.ValidationError{Field: "action", Err: simplestory.ErrInvalidPayload}
	}
	if p.FullSlug == "" {
		return &simplestory.ValidationError{Field: "full_slug", Err: simplestory.ErrInvalidPayload}
	}
	return nil
}

// SignatureVerifier checks a webhook signature against its payload
type SignatureVerifier interface {
	Verify(signature string, payload []byte) bool
}

// HMACVerifier verifies hex HMAC-SHA1 signatures with a shared secret
type HMACVerifier struct {
	Secret string
}

// Verify implements SignatureVerifier
func (v HMACVerifier) Verify(signature string, payload []byte) bool {
	return VerifySignature(v.Secret, signature, payload)
}

// VerifySignature reports whether signature is the hex HMAC-SHA1 of payload
// under secret.
func VerifySignature(secret, signature string, payload []byte) bool {
	return hmac.Equal([]byte(Sign(secret, payload)), []byte(signature))
}

// Sign returns the signature VerifySignature accepts for payload
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
