package simplestory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// PassOption configures a single resolution pass
type PassOption func(*pass)

// WithLinkRewriter sets the rewriter applied during the walk and after merge-back
func WithLinkRewriter(lr *LinkRewriter) PassOption {
	return func(p *pass) {
		p.links = lr
	}
}

// WithFetcher sets the fetcher used to inline SVG assets. Without a fetcher
// SVG assets are left untouched.
func WithFetcher(f AssetFetcher) PassOption {
	return func(p *pass) {
		p.fetcher = f
	}
}

// WithPassLogger sets the logger of the pass
func WithPassLogger(logger *slog.Logger) PassOption {
	return func(p *pass) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPassMetrics sets the metrics sink of the pass
func WithPassMetrics(m Metrics) PassOption {
	return func(p *pass) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithTaskLimit bounds the number of tasks running at once. Zero or less
// means no limit.
func WithTaskLimit(n int) PassOption {
	return func(p *pass) {
		p.limit = n
	}
}

// WithSharedAssetFetches controls whether concurrent first requests for the
// same asset id share one fetch. Enabled by default.
func WithSharedAssetFetches(enabled bool) PassOption {
	return func(p *pass) {
		p.shareFetches = enabled
	}
}

// task does the concurrent part of one unit of work and returns the tree
// mutation to apply once every task has finished, or nil.
type task func(ctx context.Context) func()

// pass holds the state of one resolution. Everything here is discarded when
// Resolve returns.
type pass struct {
	id           string
	registry     Registry
	rc           *ResolverContext
	links        *LinkRewriter
	fetcher      AssetFetcher
	logger       *slog.Logger
	metrics      Metrics
	limit        int
	shareFetches bool

	// Tasks only read the tree. data and the tree are written by the joining
	// goroutine after all tasks returned; mu guards memo.
	mu    sync.Mutex
	data  Node
	memo  map[string]string
	group singleflight.Group
	tasks []task
}

// Resolve runs one resolution pass over root. It walks the tree once,
// rewriting links in place and collecting a task for every block with a
// registered resolver and every SVG asset, then runs all tasks concurrently
// and waits for them. Results are merged into the tree in walk order after
// the last task returned. It returns the resolved data keyed by block _uid and
// asset id. Resolve never fails: task errors are logged and leave their node
// unchanged, and a failure of the walk itself yields empty resolved data.
func Resolve(ctx context.Context, root interface{}, registry Registry, rc *ResolverContext, opts ...PassOption) Node {
	if rc == nil {
		rc = &ResolverContext{}
	}
	p := &pass{
		id:           uuid.NewString(),
		registry:     registry,
		rc:           rc,
		logger:       slog.Default(),
		metrics:      NewNoopMetrics(),
		shareFetches: true,
		data:         make(Node),
		memo:         make(map[string]string),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.links == nil {
		p.links = NewLinkRewriter(rc.Prefix, nil, "")
	}
	p.logger = p.logger.With("pass_id", p.id)

	start := time.Now()
	if err := p.collect(root); err != nil {
		p.logger.ErrorContext(ctx, "Failed to resolve data", "err", err)
		p.metrics.PassCompleted(time.Since(start), 0, true)
		return make(Node)
	}
	p.logger.DebugContext(ctx, "Resolve data collected", "tasks", len(p.tasks), "elapsed", time.Since(start))

	p.run(ctx)
	p.logger.DebugContext(ctx, "Resolve data done", "tasks", len(p.tasks), "elapsed", time.Since(start))
	p.metrics.PassCompleted(time.Since(start), len(p.tasks), false)
	return p.data
}

// collect performs the synchronous walk and turns a panic into an error.
func (p *pass) collect(root interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.tasks = nil
			err = fmt.Errorf("walk panicked: %v", r)
		}
	}()
	p.walk(root, nil)
	return nil
}

func (p *pass) walk(value interface{}, ancestors []interface{}) {
	switch v := value.(type) {
	case []interface{}:
		for _, item := range v {
			p.walk(item, ancestors)
		}
	case Node:
		switch kind := Classify(v); kind {
		case KindBlock:
			p.visitBlock(v, ancestors)
		case KindAsset, KindRichTextImage:
			if src, target, ok := svgSource(v, kind); ok {
				p.tasks = append(p.tasks, func(ctx context.Context) func() {
					return p.inlineAsset(ctx, src, target)
				})
			}
		default:
			p.links.RewriteLink(v)
		}

		inner := make([]interface{}, 0, len(ancestors)+1)
		inner = append(inner, v)
		inner = append(inner, ancestors...)
		for _, child := range v {
			p.walk(child, inner)
		}
	}
}

func (p *pass) visitBlock(block Node, ancestors []interface{}) {
	if _, ok := block["locale"]; ok && p.rc.Locale != "" {
		block["locale"] = p.rc.Locale
	}
	component := block["component"].(string)
	resolver, ok := p.registry[component]
	if !ok || resolver == nil {
		return
	}
	p.tasks = append(p.tasks, func(ctx context.Context) func() {
		return p.resolveBlock(ctx, component, block, resolver, ancestors)
	})
}

// run starts every collected task, waits for all of them and applies their
// results.
func (p *pass) run(ctx context.Context) {
	applyAll(runTasks(ctx, p.tasks, p.limit))
}

// runTasks runs tasks concurrently, at most limit at once when limit is
// positive, and returns their mutations in task order.
func runTasks(ctx context.Context, tasks []task, limit int) []func() {
	applies := make([]func(), len(tasks))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, t := range tasks {
		i, t := i, t
		g.Go(func() error {
			applies[i] = t(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return applies
}

func applyAll(applies []func()) {
	for _, apply := range applies {
		if apply != nil {
			apply()
		}
	}
}

// resolveBlock invokes a resolver and inlines the SVGs of its result. The
// returned mutation records the result, deep merges it into the block and
// rewrites the block's links.
func (p *pass) resolveBlock(ctx context.Context, component string, block Node, resolver Resolver, ancestors []interface{}) func() {
	uid := block["_uid"].(string)
	partial, err := p.callResolver(ctx, block, resolver, ancestors)
	p.metrics.ResolverCompleted(component, err)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to resolve data for component",
			"err", &ResolverError{Component: component, UID: uid, Err: err})
		return nil
	}
	if len(partial) == 0 {
		return nil
	}

	nested := p.inlineNested(ctx, partial)
	return func() {
		applyAll(nested)
		p.data[uid] = partial
		DeepMerge(block, partial)
		p.links.RewriteLinks(block)
	}
}

func (p *pass) callResolver(ctx context.Context, block Node, resolver Resolver, ancestors []interface{}) (partial Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			partial = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return resolver(ctx, block, p.rc, ancestors)
}
