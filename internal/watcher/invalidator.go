package watcher

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/conneroisu/tplc/internal/logging"
)

// ArtifactInvalidator drops cached artifacts for pages and for pages that
// include the named fragments. *template.Engine satisfies it.
type ArtifactInvalidator interface {
	Invalidate(ctx context.Context, names ...string) ([]string, error)
}

// Forgetter drops memoized parsed templates. *template.Renderer satisfies it.
type Forgetter interface {
	Forget(page string)
}

// NameMapper maps a templates-relative path to the fragment name block
// directives use for it. *source.Dir satisfies it.
type NameMapper interface {
	FragmentName(rel string) (string, bool)
}

// Reload describes one invalidation round.
type Reload struct {
	Changed []string
	Dropped []string
}

// Invalidator is a ChangeHandler that keeps compiled artifacts in step with
// edits under the templates directory.
type Invalidator struct {
	root     string
	names    NameMapper
	engine   ArtifactInvalidator
	renderer Forgetter
	logger   logging.Logger

	mu        sync.RWMutex
	listeners []func(ctx context.Context, reload Reload)
}

// NewInvalidator creates an invalidator for files under root.
func NewInvalidator(root string, names NameMapper, engine ArtifactInvalidator, renderer Forgetter, logger logging.Logger) *Invalidator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Invalidator{
		root:     filepath.Clean(root),
		names:    names,
		engine:   engine,
		renderer: renderer,
		logger:   logger.WithComponent("invalidator"),
	}
}

// OnReload registers fn to run after every round that saw a relevant change.
func (inv *Invalidator) OnReload(fn func(ctx context.Context, reload Reload)) {
	inv.mu.Lock()
	inv.listeners = append(inv.listeners, fn)
	inv.mu.Unlock()
}

// Handle implements ChangeHandler.
func (inv *Invalidator) Handle(ctx context.Context, events []ChangeEvent) error {
	changed, names := inv.collect(events)
	if len(changed) == 0 {
		return nil
	}

	dropped, err := inv.engine.Invalidate(ctx, names...)
	if err != nil {
		return err
	}

	if inv.renderer != nil {
		for _, page := range dropped {
			inv.renderer.Forget(page)
		}
		for _, page := range changed {
			inv.renderer.Forget(page)
		}
	}

	reload := Reload{Changed: changed, Dropped: dropped}
	inv.logger.Info(ctx, "Templates changed", "changed", changed, "dropped", dropped)

	inv.mu.RLock()
	listeners := append(([]func(context.Context, Reload))(nil), inv.listeners...)
	inv.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, reload)
	}
	return nil
}

// collect returns the changed page names and the full set of names to
// invalidate, which adds the fragment form of each page.
func (inv *Invalidator) collect(events []ChangeEvent) (changed, names []string) {
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	for _, event := range events {
		rel, ok := inv.relative(event.Path)
		if !ok {
			continue
		}
		changed = append(changed, rel)
		add(rel)
		if inv.names != nil {
			if fragment, ok := inv.names.FragmentName(rel); ok {
				add(fragment)
			}
		}
	}
	sort.Strings(changed)
	return changed, names
}

func (inv *Invalidator) relative(path string) (string, bool) {
	rel, err := filepath.Rel(inv.root, filepath.Clean(path))
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}
