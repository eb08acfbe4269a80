// Package simplestory resolves headless-CMS stories for server rendering.
//
// A story is a tree of decoded JSON values. Loading a story runs one
// resolution pass over that tree: blocks with a registered Resolver are
// enriched with externally fetched fields, SVG assets are inlined, and every
// link-shaped node gets a public_url. Cache tags derived from the story
// identity drive webhook based invalidation.
//
// Node Model
//
// Nodes stay untyped (map[string]interface{}) so unknown fields survive a
// round trip to the renderer. Classify decodes a node into a closed set of
// kinds once, and the walker, the link rewriter and the asset inliner
// dispatch on that kind instead of inspecting shapes ad hoc.
//
// Concurrency
//
// The walk itself is synchronous. Resolver calls and asset fetches are
// collected as tasks and started only after the walk finished; the pass
// joins them before returning. A failing task never fails the pass.
package simplestory
