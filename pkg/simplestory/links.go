package simplestory

import (
	"net/url"
	"strings"
)

// DefaultLanguageKeyword is the language code the CMS uses for the default locale.
const DefaultLanguageKeyword = "default"

// LinkRewriter computes public URLs for link-shaped nodes.
type LinkRewriter struct {
	// Prefix is joined in front of every story path.
	Prefix string
	// Params are set on the query string of every story URL.
	Params url.Values
	// DefaultLanguage is the site default language. Stories in this language
	// keep their full slug verbatim.
	DefaultLanguage string
}

// NewLinkRewriter creates a rewriter for the given prefix.
func NewLinkRewriter(prefix string, params url.Values, defaultLanguage string) *LinkRewriter {
	return &LinkRewriter{
		Prefix:          prefix,
		Params:          params,
		DefaultLanguage: defaultLanguage,
	}
}

// RewriteLinks rewrites every link-shaped node in value, recursively.
func (lr *LinkRewriter) RewriteLinks(value interface{}) {
	switch v := value.(type) {
	case []interface{}:
		for _, item := range v {
			lr.RewriteLinks(item)
		}
	case Node:
		lr.RewriteLink(v)
		for _, child := range v {
			lr.RewriteLinks(child)
		}
	}
}

// RewriteLink sets the public URL of a single node. Nodes that are not
// link-shaped are left alone. It never fails and is idempotent: the result
// only depends on the node's source fields.
func (lr *LinkRewriter) RewriteLink(n Node) {
	switch Classify(n) {
	case KindStoryLink:
		if path, ok := StoryLinkPath(n, lr.DefaultLanguage); ok {
			n[FieldPublicURL] = ExtendURL(path, lr.Prefix, lr.Params)
		}
	case KindRichTextLink:
		attrs := n["attrs"].(Node)
		attrs["href"] = ExtendURL(DocLinkStoryPath(attrs["story"].(Node)), lr.Prefix, lr.Params)
	case KindStory:
		lr.RewriteStory(n)
	case KindURLLink:
		n[FieldPublicURL] = n["url"]
	case KindEmailLink:
		n[FieldPublicURL] = "mailto:" + n["email"].(string)
	case KindAssetLink:
		if u := stringField(n, "url"); u != "" {
			n[FieldPublicURL] = u
		} else if u := stringField(n, "cached_url"); u != "" {
			n[FieldPublicURL] = u
		}
	}
}

// RewriteStory sets the public URL of a story node and returns it.
func (lr *LinkRewriter) RewriteStory(story Node) string {
	publicURL := ExtendURL(StoryPath(story, lr.DefaultLanguage), lr.Prefix, lr.Params)
	story[FieldPublicURL] = publicURL
	return publicURL
}

// StoryPath returns the canonical URL path of a story. The first matching
// rule wins: explicit path, published translated slug in the story's
// language, default-locale full slug, full slug for the default language,
// and finally the full slug without its locale folder.
func StoryPath(story Node, defaultLanguage string) string {
	if path := stringField(story, "path"); path != "" {
		return path
	}
	lang := stringField(story, "lang")
	if lang != "" {
		for _, ts := range TranslatedSlugs(story) {
			if ts.Lang == lang && ts.Published {
				return ts.Path
			}
		}
	}
	if dfs := stringField(story, "default_full_slug"); dfs != "" {
		return dfs
	}
	fullSlug := stringField(story, "full_slug")
	if isDefaultLanguage(lang, defaultLanguage) {
		return fullSlug
	}
	return RemoveFirstFolder(fullSlug)
}

func isDefaultLanguage(lang, defaultLanguage string) bool {
	if lang == "" || lang == DefaultLanguageKeyword {
		return true
	}
	return defaultLanguage != "" && lang == defaultLanguage
}

// StoryLinkPath returns the URL path of a story link. Depending on how the
// source resolved links, the path comes from the embedded story's url, the
// embedded story itself, or the cached_url. ok is false for links without a
// selected story.
func StoryLinkPath(link Node, defaultLanguage string) (string, bool) {
	if id := IDString(link["id"]); id == "" {
		return "", false
	}
	if story, ok := link["story"].(Node); ok {
		if u := stringField(story, "url"); u != "" {
			return u, true
		}
		if isString(story["full_slug"]) {
			return StoryPath(story, defaultLanguage), true
		}
	}
	cached, ok := link["cached_url"].(string)
	return cached, ok
}

// DocLinkStoryPath returns the path of a story referenced from a rich text link.
func DocLinkStoryPath(story Node) string {
	fullSlug := stringField(story, "full_slug")
	if stringField(story, "url") == fullSlug {
		return fullSlug
	}
	parts := strings.FieldsFunc(fullSlug, func(r rune) bool { return r == '/' })
	if len(parts) == 0 {
		return ""
	}
	return JoinPath(parts[1:]...)
}
