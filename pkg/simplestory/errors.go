package simplestory

import (
	"errors"
	"fmt"
)

// Error types
var (
	// ErrStoryNotFound indicates the source has no story for a slug
	ErrStoryNotFound = errors.New("story not found")

	// ErrInvalidPayload indicates a webhook payload failed validation
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrMissingSecret indicates a signed webhook arrived without a configured secret
	ErrMissingSecret = errors.New("missing webhook secret")

	// ErrInvalidSignature indicates a webhook signature mismatch
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrSourceRequired indicates a loader was built without a story source
	ErrSourceRequired = errors.New("story source is required")
)

// ResolverError represents a failed resolver invocation for one block
type ResolverError struct {
	Component string
	UID       string
	Err       error
}

func (e *ResolverError) Error() string {
	return fmt.Sprintf("resolver for component %s failed on block %s: %v", e.Component, e.UID, e.Err)
}

func (e *ResolverError) Unwrap() error {
	return e.Err
}

// AssetError represents a failed inline fetch of an asset
type AssetError struct {
	ID  string
	Src string
	Err error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("inline fetch failed for asset %s (%s): %v", e.ID, e.Src, e.Err)
}

func (e *AssetError) Unwrap() error {
	return e.Err
}

// FetchError represents a non-success response from a remote fetch
type FetchError struct {
	URL    string
	Status int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Status)
}

// ValidationError represents a rejected external payload
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// SourceError represents a failed story source operation
type SourceError struct {
	Source string
	Slug   string
	Op     string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source operation %s failed for slug %s on source %s: %v", e.Op, e.Slug, e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}
