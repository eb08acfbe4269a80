package simplestory

import (
	"context"
	"time"
)

// NoopMetrics is a no-operation implementation of Metrics
type NoopMetrics struct{}

// NewNoopMetrics creates a new no-operation metrics sink
func NewNoopMetrics() Metrics {
	return &NoopMetrics{}
}

// PassCompleted does nothing
func (n *NoopMetrics) PassCompleted(duration time.Duration, tasks int, failed bool) {}

// ResolverCompleted does nothing
func (n *NoopMetrics) ResolverCompleted(component string, err error) {}

// AssetFetched does nothing
func (n *NoopMetrics) AssetFetched(outcome AssetOutcome) {}

// TagInvalidated does nothing
func (n *NoopMetrics) TagInvalidated(tag string, err error) {}

// NoopInvalidator is a no-operation implementation of Invalidator
type NoopInvalidator struct{}

// NewNoopInvalidator creates a new no-operation invalidator
func NewNoopInvalidator() Invalidator {
	return &NoopInvalidator{}
}

// Invalidate does nothing and returns nil
func (n *NoopInvalidator) Invalidate(ctx context.Context, tag string) error {
	return nil
}

// MultiInvalidator fans one tag out to several invalidators
type MultiInvalidator []Invalidator

// Invalidate calls every invalidator and returns the first error
func (m MultiInvalidator) Invalidate(ctx context.Context, tag string) error {
	var first error
	for _, inv := range m {
		if err := inv.Invalidate(ctx, tag); err != nil && first == nil {
			first = err
		}
	}
	return first
}
