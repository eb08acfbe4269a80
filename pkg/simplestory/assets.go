package simplestory

import (
	"context"
	"fmt"
	"strings"
)

// SVGSuffix marks assets whose markup is inlined instead of referenced.
const SVGSuffix = ".svg"

// svgSource returns the source URL and the node that receives the svg field
// for assets and rich text images pointing at an SVG.
func svgSource(n Node, kind Kind) (src string, target Node, ok bool) {
	switch kind {
	case KindAsset:
		src, target = stringField(n, "filename"), n
	case KindRichTextImage:
		target = n["attrs"].(Node)
		src = stringField(target, "src")
	default:
		return "", nil, false
	}
	if !strings.HasSuffix(src, SVGSuffix) {
		return "", nil, false
	}
	return src, target, true
}

// inlineAsset fetches an SVG and returns the mutation storing it on target.
// Failures are logged and leave target without an svg field.
func (p *pass) inlineAsset(ctx context.Context, src string, target Node) func() {
	if p.fetcher == nil {
		return nil
	}
	id := IDString(target["id"])
	if id == "" {
		id = src
	}

	svg, err := p.fetchSVG(ctx, id, src)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to fetch asset", "src", src,
			"err", &AssetError{ID: id, Src: src, Err: err})
		return nil
	}

	return func() {
		target[FieldSVG] = svg
		p.data[id] = Node{FieldSVG: svg}
	}
}

// fetchSVG returns the markup of an asset, consulting the pass memo first.
// A panicking fetcher is reported as an error.
func (p *pass) fetchSVG(ctx context.Context, id, src string) (string, error) {
	if svg, ok := p.memoized(id); ok {
		p.metrics.AssetFetched(AssetMemoHit)
		return svg, nil
	}

	fetch := func() (v interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				v, err = "", fmt.Errorf("panic: %v", r)
			}
		}()
		if svg, ok := p.memoized(id); ok {
			return svg, nil
		}
		body, err := p.fetcher.Fetch(ctx, src)
		if err != nil {
			return "", err
		}
		markup := string(body)
		p.mu.Lock()
		p.memo[id] = markup
		p.mu.Unlock()
		return markup, nil
	}

	if !p.shareFetches {
		v, err := fetch()
		p.recordFetch(err, false)
		return v.(string), err
	}
	v, err, shared := p.group.Do(id, fetch)
	p.recordFetch(err, shared)
	return v.(string), err
}

func (p *pass) memoized(id string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	svg, ok := p.memo[id]
	return svg, ok
}

func (p *pass) recordFetch(err error, shared bool) {
	switch {
	case err != nil:
		p.metrics.AssetFetched(AssetFailed)
	case shared:
		p.metrics.AssetFetched(AssetShared)
	default:
		p.metrics.AssetFetched(AssetFetchedRemote)
	}
}

// inlineNested fetches every SVG asset found in a resolver result and
// returns the mutations that inline them.
func (p *pass) inlineNested(ctx context.Context, value interface{}) []func() {
	var jobs []task
	collectSVGs(value, func(src string, target Node) {
		jobs = append(jobs, func(ctx context.Context) func() {
			return p.inlineAsset(ctx, src, target)
		})
	})
	if len(jobs) == 0 {
		return nil
	}
	return runTasks(ctx, jobs, 0)
}

func collectSVGs(value interface{}, visit func(src string, target Node)) {
	switch v := value.(type) {
	case []interface{}:
		for _, item := range v {
			collectSVGs(item, visit)
		}
	case Node:
		kind := Classify(v)
		if kind == KindAsset || kind == KindRichTextImage {
			if src, target, ok := svgSource(v, kind); ok {
				visit(src, target)
				return
			}
		}
		for _, child := range v {
			collectSVGs(child, visit)
		}
	}
}
