package services

import (
	"context"
	goerrors "errors"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/tplc/internal/cache"
	"github.com/conneroisu/tplc/internal/errors"
	"github.com/conneroisu/tplc/internal/template"
)

// CompileService compiles pages into the artifact cache.
type CompileService struct {
	container *Container
}

// NewCompileService creates a compile service.
func NewCompileService(container *Container) *CompileService {
	return &CompileService{container: container}
}

// CompileOptions contains options for a compile run.
type CompileOptions struct {
	Pages []string
	All   bool
	Force bool
	// Workers bounds concurrent compiles; zero means one per CPU.
	Workers int
}

// PageFailure is one page that did not compile.
type PageFailure struct {
	Page string
	Err  error
}

// CompileResult contains the outcome of a compile run.
type CompileResult struct {
	Duration  time.Duration
	Artifacts []*cache.Artifact
	Failures  []PageFailure
	// Skipped lists files passed over by All because another file includes
	// them as a fragment.
	Skipped []string
}

// Success reports whether every page compiled.
func (r *CompileResult) Success() bool {
	return len(r.Failures) == 0
}

// Err joins the page failures, or returns nil.
func (r *CompileResult) Err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f.Err)
	}
	return goerrors.Join(errs...)
}

// Compile compiles the requested pages, or every page under the templates
// directory when All is set. All skips files that some other file includes
// with a block directive, since fragments need not be complete pages. A
// failing page does not stop the others.
func (s *CompileService) Compile(ctx context.Context, opts CompileOptions) (*CompileResult, error) {
	start := time.Now()

	result := &CompileResult{}

	pages := opts.Pages
	if opts.All {
		all, err := s.container.Source().Pages()
		if err != nil {
			return nil, err
		}
		pages, result.Skipped, err = s.withoutFragments(ctx, all)
		if err != nil {
			return nil, err
		}
	}
	if len(pages) == 0 {
		return nil, errors.WrapConfig(goerrors.New("no pages given"), "nothing to compile")
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, page := range pages {
		g.Go(func() error {
			artifact, err := s.container.Engine().Compile(gctx, page, opts.Force)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failures = append(result.Failures, PageFailure{Page: page, Err: err})
				return nil
			}
			result.Artifacts = append(result.Artifacts, artifact)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(result.Artifacts, func(i, j int) bool { return result.Artifacts[i].Page < result.Artifacts[j].Page })
	sort.Slice(result.Failures, func(i, j int) bool { return result.Failures[i].Page < result.Failures[j].Page })
	result.Duration = time.Since(start)

	s.container.Logger().Info(ctx, "Compile finished",
		"pages", len(pages),
		"compiled", len(result.Artifacts),
		"failed", len(result.Failures),
		"skipped", len(result.Skipped),
		"duration", result.Duration)

	return result, nil
}

// withoutFragments splits files into pages and the ones included as fragments.
func (s *CompileService) withoutFragments(ctx context.Context, files []string) (pages, fragments []string, err error) {
	src := s.container.Source()

	included := make(map[string]bool)
	for _, file := range files {
		markup, err := src.Page(ctx, file)
		if err != nil {
			return nil, nil, err
		}
		for _, name := range template.Includes(markup) {
			included[name] = true
		}
	}

	for _, file := range files {
		if name, ok := src.FragmentName(file); ok && included[name] {
			fragments = append(fragments, file)
			continue
		}
		pages = append(pages, file)
	}
	return pages, fragments, nil
}
