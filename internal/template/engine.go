package template

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/conneroisu/tplc/internal/cache"
	"github.com/conneroisu/tplc/internal/errors"
	"github.com/conneroisu/tplc/internal/logging"
)

// Artifact is the compiled form of a page.
type Artifact = cache.Artifact

// Options are the compile switches.
type Options struct {
	// AlwaysRecompile skips cache reads; artifacts are still written.
	AlwaysRecompile bool
	// Minify enables the aggressive whitespace and comment stripping pass.
	Minify bool
	// HTMLEscape validates generated code against html/template.
	HTMLEscape bool
}

// Stats counts pipeline runs and cache hits since the engine was created.
type Stats struct {
	Compiles int64 `json:"compiles" yaml:"compiles"`
	Hits     int64 `json:"hits" yaml:"hits"`
	Failures int64 `json:"failures" yaml:"failures"`
}

// Engine compiles pages and caches the artifacts. It is safe for concurrent
// use; concurrent compiles of one page share a single pipeline run.
type Engine struct {
	resolver *Resolver
	store    cache.Store
	registry *Registry
	opts     Options
	logger   logging.Logger
	now      func() time.Time

	group    singleflight.Group
	compiles atomic.Int64
	hits     atomic.Int64
	failures atomic.Int64
}

func NewEngine(source Source, store cache.Store, registry *Registry, opts Options, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{
		resolver: NewResolver(source),
		store:    store,
		registry: registry,
		opts:     opts,
		logger:   logger.WithComponent("compiler"),
		now:      time.Now,
	}
}

// Registry returns the generator registry. Registrations must happen before
// the first Compile, which freezes it.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Compile returns the artifact for page, running the pipeline when force is
// set, AlwaysRecompile is on or no artifact is cached. Nothing is cached
// unless every stage succeeds.
func (e *Engine) Compile(ctx context.Context, page string, force bool) (*Artifact, error) {
	if !force && !e.opts.AlwaysRecompile {
		artifact, ok, err := e.store.Get(ctx, page)
		if err != nil {
			return nil, err
		}
		if ok {
			e.hits.Add(1)
			e.logger.Debug(ctx, "Serving cached artifact", "page", page)
			return artifact, nil
		}
	}

	// Callers that join the flight share its result, so one caller giving up
	// must not fail the others.
	v, err, shared := e.group.Do(page, func() (any, error) {
		return e.build(context.WithoutCancel(ctx), page)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		e.logger.Debug(ctx, "Joined in-flight compile", "page", page)
	}
	return v.(*Artifact), nil
}

func (e *Engine) build(ctx context.Context, page string) (*Artifact, error) {
	e.registry.Freeze()
	e.compiles.Add(1)

	op := logging.StartOperation(e.logger, "compile")

	artifact, err := e.run(ctx, page)
	if err != nil {
		e.failures.Add(1)
		op.EndWithError(ctx, err, "page", page)
		return nil, err
	}

	if err := e.store.Put(ctx, artifact); err != nil {
		e.failures.Add(1)
		op.EndWithError(ctx, err, "page", page)
		return nil, err
	}

	op.End(ctx, "page", page, "bytes", len(artifact.Code), "fragments", len(artifact.Dependencies))
	return artifact, nil
}

func (e *Engine) run(ctx context.Context, page string) (*Artifact, error) {
	resolved, err := e.resolver.Resolve(ctx, page)
	if err != nil {
		return nil, err
	}

	code, err := Generate(page, resolved.Markup, e.registry, e.opts.Minify)
	if err != nil {
		return nil, err
	}

	if _, err := parse(page, code, e.opts.HTMLEscape); err != nil {
		return nil, errors.GeneratedCode(err).WithPage(page)
	}

	sum := sha256.Sum256([]byte(resolved.Markup))
	return &Artifact{
		Page:         page,
		Code:         code,
		CompiledAt:   e.now(),
		Dependencies: resolved.Dependencies,
		SourceHash:   hex.EncodeToString(sum[:]),
	}, nil
}

// Invalidate drops cached artifacts for the named pages and for every page
// that included a fragment of one of those names. It returns the dropped pages.
func (e *Engine) Invalidate(ctx context.Context, names ...string) ([]string, error) {
	artifacts, err := e.store.List(ctx)
	if err != nil {
		return nil, err
	}

	var dropped []string
	for _, artifact := range artifacts {
		if !affected(artifact, names) {
			continue
		}
		if err := e.store.Delete(ctx, artifact.Page); err != nil {
			return dropped, err
		}
		dropped = append(dropped, artifact.Page)
	}

	if len(dropped) > 0 {
		e.logger.Info(ctx, "Invalidated artifacts", "changed", names, "pages", dropped)
	}
	return dropped, nil
}

func affected(artifact *Artifact, names []string) bool {
	for _, name := range names {
		if artifact.Page == name || artifact.DependsOn(name) {
			return true
		}
	}
	return false
}

// Stats returns the engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Compiles: e.compiles.Load(),
		Hits:     e.hits.Load(),
		Failures: e.failures.Load(),
	}
}
