// Package cache provides a response cache addressed by cache tags.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type entry[V any] struct {
	value V
	tags  []string
}

// Tagged is an expiring LRU whose entries carry cache tags. Invalidating a
// tag evicts every entry carrying it. Tagged implements
// simplestory.Invalidator.
type Tagged[V any] struct {
	lru *expirable.LRU[string, entry[V]]

	// mu guards byTag. It is never held while calling into lru, which calls
	// back into onEvict under its own lock.
	mu    sync.Mutex
	byTag map[string]map[string]struct{}
}

// NewTagged creates a cache holding at most size entries for at most ttl.
// A size of zero means unlimited and a ttl of zero means no expiry.
func NewTagged[V any](size int, ttl time.Duration) *Tagged[V] {
	t := &Tagged[V]{byTag: make(map[string]map[string]struct{})}
	t.lru = expirable.NewLRU[string, entry[V]](size, t.onEvict, ttl)
	return t
}

// Add stores value under key, tagged with tags
func (t *Tagged[V]) Add(key string, value V, tags ...string) {
	t.lru.Add(key, entry[V]{value: value, tags: tags})

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tag := range tags {
		keys, ok := t.byTag[tag]
		if !ok {
			keys = make(map[string]struct{})
			t.byTag[tag] = keys
		}
		keys[key] = struct{}{}
	}
}

// Get returns the value stored under key
func (t *Tagged[V]) Get(key string) (V, bool) {
	e, ok := t.lru.Get(key)
	return e.value, ok
}

// Invalidate evicts every entry tagged with tag
func (t *Tagged[V]) Invalidate(ctx context.Context, tag string) error {
	t.mu.Lock()
	keys := make([]string, 0, len(t.byTag[tag]))
	for key := range t.byTag[tag] {
		keys = append(keys, key)
	}
	delete(t.byTag, tag)
	t.mu.Unlock()

	for _, key := range keys {
		t.lru.Remove(key)
	}
	return nil
}

// Len returns the number of cached entries
func (t *Tagged[V]) Len() int {
	return t.lru.Len()
}

// Purge evicts everything
func (t *Tagged[V]) Purge() {
	t.lru.Purge()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byTag = make(map[string]map[string]struct{})
}

func (t *Tagged[V]) onEvict(key string, e entry[V]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tag := range e.tags {
		if keys, ok := t.byTag[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(t.byTag, tag)
			}
		}
	}
}
