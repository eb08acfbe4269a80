// Package richtext restructures rich text documents before rendering.
//
// HoistImages lifts images out of paragraphs so they can be rendered as block
// elements. InlineComponents splices inline component wrappers into the
// surrounding paragraph run. Both return new documents; input nodes are not
// mutated, although unchanged leaves are shared with the input.
package richtext

import (
	"regexp"

	"github.com/gobwas/glob"
	"github.com/tendant/simple-story/pkg/simplestory"
)

// Matcher decides whether an inline component wrapper is spliced into text.
type Matcher interface {
	MatchString(s string) bool
}

// DefaultInlinePattern matches components with "inline" anywhere in their name.
var DefaultInlinePattern Matcher = regexp.MustCompile(`(?i)inline`)

// Glob returns a Matcher for a glob pattern such as "inline_*".
func Glob(pattern string) (Matcher, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return globMatcher{g}, nil
}

type globMatcher struct {
	g glob.Glob
}

func (m globMatcher) MatchString(s string) bool {
	return m.g.Match(s)
}

// Options selects the transforms Apply runs.
type Options struct {
	// HoistImages enables image hoisting.
	HoistImages bool
	// Inline selects inline component wrappers. Nil disables the transform.
	Inline Matcher
	// Transform runs last on the resulting document.
	Transform func(doc simplestory.Node) simplestory.Node
}

// Apply runs hoisting, inlining and the custom transform in that order.
func Apply(doc simplestory.Node, opts Options) simplestory.Node {
	if doc == nil {
		return nil
	}
	if opts.HoistImages {
		doc = HoistImages(doc)
	}
	if opts.Inline != nil {
		doc = InlineComponents(doc, opts.Inline)
	}
	if opts.Transform != nil {
		doc = opts.Transform(doc)
	}
	return doc
}

// HoistImages explodes every direct paragraph child of doc that contains
// images into alternating paragraph and image siblings. The last paragraph
// of an exploded run is always emitted, even when empty.
func HoistImages(doc simplestory.Node) simplestory.Node {
	children, ok := doc["content"].([]interface{})
	if !ok {
		return doc
	}
	out := make([]interface{}, 0, len(children))
	for _, child := range children {
		p, ok := child.(simplestory.Node)
		if !ok || p["type"] != simplestory.TypeParagraph {
			out = append(out, child)
			continue
		}
		pending := emptyLike(p)
		for _, item := range contentOf(p) {
			if isType(item, simplestory.TypeImage) {
				if len(contentOf(pending)) > 0 {
					out = append(out, pending)
				}
				out = append(out, item)
				pending = emptyLike(p)
				continue
			}
			pending["content"] = append(contentOf(pending), item)
		}
		out = append(out, pending)
	}
	return withContent(doc, out)
}

// InlineComponents merges inline component wrappers matched by m, and the
// paragraph following them, into the preceding paragraph. Bullet lists are
// processed item by item; other nested nodes are left alone.
func InlineComponents(node simplestory.Node, m Matcher) simplestory.Node {
	children, ok := node["content"].([]interface{})
	if !ok || m == nil {
		return node
	}
	out := make([]interface{}, 0, len(children))
	for i := 0; i < len(children); i++ {
		child := children[i]
		if isInlineBlok(child, m) && len(out) > 0 && isType(out[len(out)-1], simplestory.TypeParagraph) {
			last := out[len(out)-1].(simplestory.Node)
			last["content"] = append(contentOf(last), child)
			if i+1 < len(children) && isType(children[i+1], simplestory.TypeParagraph) {
				next := children[i+1].(simplestory.Node)
				last["content"] = append(contentOf(last), contentOf(next)...)
				i++
			}
			continue
		}
		switch {
		case isType(child, simplestory.TypeParagraph):
			child = copyParagraph(child.(simplestory.Node))
		case isType(child, simplestory.TypeBulletList):
			child = inlineListItems(child.(simplestory.Node), m)
		}
		out = append(out, child)
	}
	return withContent(node, out)
}

func inlineListItems(list simplestory.Node, m Matcher) simplestory.Node {
	items := contentOf(list)
	out := make([]interface{}, len(items))
	for i, item := range items {
		if n, ok := item.(simplestory.Node); ok && n["type"] == simplestory.TypeListItem {
			out[i] = InlineComponents(n, m)
			continue
		}
		out[i] = item
	}
	return withContent(list, out)
}

// isInlineBlok reports whether n is an inline wrapper whose first body block
// has a component matched by m.
func isInlineBlok(n interface{}, m Matcher) bool {
	node, ok := n.(simplestory.Node)
	if !ok || simplestory.Classify(node) != simplestory.KindRichTextBlok {
		return false
	}
	body := node["attrs"].(simplestory.Node)["body"].([]interface{})
	if len(body) == 0 {
		return false
	}
	first, ok := body[0].(simplestory.Node)
	if !ok {
		return false
	}
	component, ok := first["component"].(string)
	return ok && m.MatchString(component)
}

func isType(n interface{}, t string) bool {
	node, ok := n.(simplestory.Node)
	return ok && node["type"] == t
}

func contentOf(n simplestory.Node) []interface{} {
	c, _ := n["content"].([]interface{})
	return c
}

// withContent returns a shallow copy of n with its content replaced.
func withContent(n simplestory.Node, content []interface{}) simplestory.Node {
	out := make(simplestory.Node, len(n))
	for k, v := range n {
		out[k] = v
	}
	out["content"] = content
	return out
}

func copyParagraph(p simplestory.Node) simplestory.Node {
	return withContent(p, append([]interface{}(nil), contentOf(p)...))
}

func emptyLike(p simplestory.Node) simplestory.Node {
	return withContent(p, []interface{}{})
}
