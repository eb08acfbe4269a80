package simplestory

import (
	"net/url"
	"regexp"
	"sort"
	"strings"
)

// PageTag returns the cache tag of a single page.
func PageTag(slug string) string {
	return StripEndingSlash(slug)
}

// IndexTag returns the cache tag of a folder listing.
func IndexTag(slug string) string {
	return StripEndingSlash(slug) + ".index"
}

// ContentTypeTag returns the cache tag shared by all stories of a content type.
func ContentTypeTag(component string) string {
	return "type:" + component
}

// PageTags derives the cache-invalidation tags of a story: its uuid, its
// content type, and for each localized path the page tag plus the index tag
// of the parent folder. The result has no duplicates and a stable order.
func PageTags(story Node) []string {
	paths := newTagSet()
	own := stringField(story, "path")
	if own == "" {
		own = stringField(story, "full_slug")
	}
	paths.add(own)
	for _, ts := range TranslatedSlugs(story) {
		paths.add(ts.Path)
	}

	tags := newTagSet()
	tags.add(stringField(story, "uuid"))
	if ct := ContentType(story); ct != "" {
		tags.add(ContentTypeTag(ct))
	}
	for _, p := range paths.list {
		tags.add(PageTag(p))
		tags.add(IndexTag(RemoveLastFolder(p)))
	}
	return tags.list
}

// TagSet returns the tags of all given stories as a set.
func TagSet(stories ...Node) map[string]struct{} {
	set := make(map[string]struct{})
	for _, story := range stories {
		for _, tag := range PageTags(story) {
			set[tag] = struct{}{}
		}
	}
	return set
}

// SortedTags returns the members of a tag set in lexical order.
func SortedTags(set map[string]struct{}) []string {
	tags := make([]string, 0, len(set))
	for tag := range set {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

var storiesPath = regexp.MustCompile(`cdn/stories/(.+)$`)

// RequestTags returns the tags a CMS delivery API response should be cached
// under, derived from the request URL alone.
func RequestTags(u *url.URL) []string {
	tags := newTagSet()
	if m := storiesPath.FindStringSubmatch(u.Path); m != nil {
		tags.add(PageTag(m[1]))
	}
	q := u.Query()
	if ct := q.Get("content_type"); ct != "" {
		tags.add(ContentTypeTag(ct))
	}
	if bySlugs := q.Get("by_slugs"); bySlugs != "" {
		for _, slug := range strings.Split(bySlugs, ",") {
			if strings.Contains(slug, "*") {
				tags.add(IndexTag(strings.ReplaceAll(slug, "/*", "")))
			} else {
				tags.add(PageTag(slug))
			}
		}
	}
	return tags.list
}

type tagSet struct {
	seen map[string]struct{}
	list []string
}

func newTagSet() *tagSet {
	return &tagSet{seen: make(map[string]struct{})}
}

func (s *tagSet) add(tag string) {
	if tag == "" {
		return
	}
	if _, ok := s.seen[tag]; ok {
		return
	}
	s.seen[tag] = struct{}{}
	s.list = append(s.list, tag)
}
