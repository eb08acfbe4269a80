package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/tendant/simple-story/pkg/simplestory"
)

// Source implements simplestory.StorySource using in-memory storage
type Source struct {
	mu      sync.RWMutex
	stories map[string]simplestory.Node // full_slug -> story
}

// New creates a new in-memory story source
func New(stories ...simplestory.Node) *Source {
	s := &Source{
		stories: make(map[string]simplestory.Node),
	}
	for _, story := range stories {
		s.put(story)
	}
	return s
}

// Put stores a copy of story under its full slug
func (s *Source) Put(ctx context.Context, story simplestory.Node) error {
	if slug, _ := story["full_slug"].(string); slug == "" {
		return &simplestory.ValidationError{Field: "full_slug", Err: simplestory.ErrInvalidPayload}
	}
	s.put(story)
	return nil
}

func (s *Source) put(story simplestory.Node) {
	slug, _ := story["full_slug"].(string)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stories[slug] = simplestory.DeepCopy(story).(simplestory.Node)
}

// Delete removes the story stored under slug
func (s *Source) Delete(slug string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.stories, slug)
}

// GetStory returns a copy of the story stored under slug
func (s *Source) GetStory(ctx context.Context, slug string, params simplestory.StoryParams) (simplestory.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	story, exists := s.stories[simplestory.StripStartingSlash(slug)]
	if !exists {
		return nil, simplestory.ErrStoryNotFound
	}
	// Return a copy so callers may mutate the tree
	return simplestory.DeepCopy(story).(simplestory.Node), nil
}

// ListStories returns copies of the matching stories ordered by full slug
func (s *Source) ListStories(ctx context.Context, params simplestory.StoriesParams) ([]simplestory.Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slugs := make([]string, 0, len(s.stories))
	for slug, story := range s.stories {
		if params.Match(story) {
			slugs = append(slugs, slug)
		}
	}
	sort.Strings(slugs)

	stories := make([]simplestory.Node, 0, len(slugs))
	for _, slug := range slugs {
		stories = append(stories, simplestory.DeepCopy(s.stories[slug]).(simplestory.Node))
	}
	return params.Paginate(stories), nil
}

var _ simplestory.StoryWriter = (*Source)(nil)
