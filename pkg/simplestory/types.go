package simplestory

import (
	"fmt"
	"strconv"
)

// Node is a mapping node of a decoded story tree.
type Node = map[string]interface{}

// Kind is the closed set of node variants the pipeline dispatches on.
type Kind int

const (
	KindUnknown Kind = iota
	KindBlock
	KindAsset
	KindStory
	KindStoryLink
	KindURLLink
	KindEmailLink
	KindAssetLink
	KindRichTextDoc
	KindRichTextParagraph
	KindRichTextText
	KindRichTextImage
	KindRichTextLink
	KindRichTextBulletList
	KindRichTextListItem
	KindRichTextBlok
	KindRichTextNode
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindBlock:              "block",
	KindAsset:              "asset",
	KindStory:              "story",
	KindStoryLink:          "story_link",
	KindURLLink:            "url_link",
	KindEmailLink:          "email_link",
	KindAssetLink:          "asset_link",
	KindRichTextDoc:        "doc",
	KindRichTextParagraph:  "paragraph",
	KindRichTextText:       "text",
	KindRichTextImage:      "image",
	KindRichTextLink:       "link",
	KindRichTextBulletList: "bullet_list",
	KindRichTextListItem:   "list_item",
	KindRichTextBlok:       "blok",
	KindRichTextNode:       "rich_text_node",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Rich text node type discriminants.
const (
	TypeDoc        = "doc"
	TypeParagraph  = "paragraph"
	TypeText       = "text"
	TypeImage      = "image"
	TypeLink       = "link"
	TypeBulletList = "bullet_list"
	TypeListItem   = "list_item"
	TypeBlok       = "blok"
)

// Link type discriminants.
const (
	LinkTypeStory = "story"
	LinkTypeURL   = "url"
	LinkTypeEmail = "email"
	LinkTypeAsset = "asset"
)

// Fields added to a story during resolution.
const (
	FieldResolvedData    = "resolved_data"
	FieldPublicURL       = "public_url"
	FieldPublicURLPrefix = "public_url_prefix"
	FieldPreviewParams   = "preview_params"
	FieldSVG             = "svg"
)

// Classify decodes a node into its variant. The first matching rule wins, so
// a Block is never treated as a link even if it happens to carry a linktype.
func Classify(n Node) Kind {
	if n == nil {
		return KindUnknown
	}
	if isString(n["component"]) && isString(n["_uid"]) {
		return KindBlock
	}
	if n["fieldtype"] == "asset" && isString(n["filename"]) {
		return KindAsset
	}
	if t, ok := n["type"].(string); ok {
		return classifyRichText(t, n)
	}
	if lt, ok := n["linktype"].(string); ok {
		switch lt {
		case LinkTypeStory:
			return KindStoryLink
		case LinkTypeURL:
			if isString(n["url"]) {
				return KindURLLink
			}
		case LinkTypeEmail:
			if isString(n["email"]) {
				return KindEmailLink
			}
		case LinkTypeAsset:
			return KindAssetLink
		}
		return KindUnknown
	}
	if isStory(n) {
		return KindStory
	}
	return KindUnknown
}

func classifyRichText(t string, n Node) Kind {
	switch t {
	case TypeDoc:
		if isSlice(n["content"]) {
			return KindRichTextDoc
		}
	case TypeParagraph:
		return KindRichTextParagraph
	case TypeText:
		if isString(n["text"]) {
			return KindRichTextText
		}
	case TypeImage:
		if attrs, ok := n["attrs"].(Node); ok && isString(attrs["src"]) {
			return KindRichTextImage
		}
	case TypeLink:
		if attrs, ok := n["attrs"].(Node); ok {
			if story, ok := attrs["story"].(Node); ok && isString(story["full_slug"]) {
				return KindRichTextLink
			}
		}
	case TypeBulletList:
		if isSlice(n["content"]) {
			return KindRichTextBulletList
		}
	case TypeListItem:
		if isSlice(n["content"]) {
			return KindRichTextListItem
		}
	case TypeBlok:
		if attrs, ok := n["attrs"].(Node); ok && isSlice(attrs["body"]) {
			return KindRichTextBlok
		}
	}
	if isSlice(n["content"]) {
		return KindRichTextNode
	}
	return KindUnknown
}

func isStory(n Node) bool {
	if !isString(n["full_slug"]) {
		return false
	}
	content, ok := n["content"].(Node)
	return ok && isString(content["component"])
}

// TranslatedSlug is one per-locale entry of a story's translated_slugs.
type TranslatedSlug struct {
	Path      string
	Name      string
	Lang      string
	Published bool
}

// TranslatedSlugs decodes the translated_slugs list of a story. Entries
// without a path are skipped.
func TranslatedSlugs(story Node) []TranslatedSlug {
	raw, ok := story["translated_slugs"].([]interface{})
	if !ok {
		return nil
	}
	slugs := make([]TranslatedSlug, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(Node)
		if !ok {
			continue
		}
		path, ok := m["path"].(string)
		if !ok {
			continue
		}
		published, _ := m["published"].(bool)
		slugs = append(slugs, TranslatedSlug{
			Path:      path,
			Name:      stringField(m, "name"),
			Lang:      stringField(m, "lang"),
			Published: published,
		})
	}
	return slugs
}

// ContentType returns the component of the story's root block.
func ContentType(story Node) string {
	if content, ok := story["content"].(Node); ok {
		return stringField(content, "component")
	}
	return ""
}

// IDString renders a node id (numeric or string) as a string.
func IDString(v interface{}) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	default:
		return fmt.Sprint(id)
	}
}

func stringField(n Node, key string) string {
	s, _ := n[key].(string)
	return s
}

func isString(v interface{}) bool {
	_, ok := v.(string)
	return ok
}

func isSlice(v interface{}) bool {
	_, ok := v.([]interface{})
	return ok
}
