package simplestory

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Excerpt is the plain content collected from a story tree.
type Excerpt struct {
	Images    []Node
	Headlines []string
	Text      []string
}

var (
	headlineKey    = regexp.MustCompile(`(?i)head|line|title|slogan`)
	textKey        = regexp.MustCompile(`(?i)text|description`)
	sentenceMarker = regexp.MustCompile(`[.!?]`)
)

// DefaultExcerptChars is the default length limit of FullSentences.
const DefaultExcerptChars = 500

// Extract collects images, headlines and text from value. Strings are
// classified by the name of the field holding them. Rich text documents
// contribute all their text and their images. Fields are visited in key order.
func Extract(value interface{}) Excerpt {
	var e Excerpt
	e.collect(value, "")
	return e
}

// CharCount returns the number of characters of headlines and text in value.
func CharCount(value interface{}) int {
	e := Extract(value)
	n := 0
	for _, s := range e.Headlines {
		n += utf8.RuneCountInString(s)
	}
	for _, s := range e.Text {
		n += utf8.RuneCountInString(s)
	}
	return n
}

// FullSentences joins text, truncates it to maxChars characters and drops a
// trailing incomplete sentence. Text without any sentence marker is kept.
func FullSentences(text []string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultExcerptChars
	}
	s := strings.Join(text, "\n")
	if utf8.RuneCountInString(s) > maxChars {
		s = string([]rune(s)[:maxChars])
	}
	marks := sentenceMarker.FindAllStringIndex(s, -1)
	if len(marks) == 0 {
		return s
	}
	return s[:marks[len(marks)-1][1]]
}

func (e *Excerpt) collect(value interface{}, key string) {
	if s, ok := value.(string); ok {
		if key == "" {
			return
		}
		if headlineKey.MatchString(key) {
			e.Headlines = append(e.Headlines, s)
		}
		if textKey.MatchString(key) {
			e.Text = append(e.Text, s)
		}
		return
	}
	switch v := value.(type) {
	case []interface{}:
		for _, item := range v {
			e.collect(item, "")
		}
	case Node:
		switch Classify(v) {
		case KindAsset:
			e.Images = append(e.Images, v)
		case KindRichTextDoc:
			e.collectRichText(v, false)
		default:
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				e.collect(v[k], k)
			}
		}
	}
}

func (e *Excerpt) collectRichText(value interface{}, inHeading bool) {
	switch v := value.(type) {
	case []interface{}:
		for _, item := range v {
			e.collectRichText(item, inHeading)
		}
	case Node:
		if text, ok := v["text"].(string); ok {
			e.Text = append(e.Text, text)
			if inHeading {
				e.Headlines = append(e.Headlines, text)
			}
			return
		}
		if Classify(v) == KindRichTextImage {
			e.Images = append(e.Images, RichTextImageAsset(v))
			return
		}
		t, _ := v["type"].(string)
		if content, ok := v["content"].([]interface{}); ok && t != "" {
			e.collectRichText(content, inHeading || t == "heading")
		}
	}
}

// RichTextImageAsset converts a rich text image into an asset node.
func RichTextImageAsset(img Node) Node {
	attrs, _ := img["attrs"].(Node)
	asset := Node{"fieldtype": "asset"}
	for _, key := range []string{"id", "alt", "title", "copyright", "source", "focus"} {
		if v, ok := attrs[key]; ok {
			asset[key] = v
		}
	}
	asset["filename"] = attrs["src"]
	return asset
}
