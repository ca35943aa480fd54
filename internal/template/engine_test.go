package template

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/tplc/internal/errors"
)

var siteFiles = map[string]string{
	"index.tpl":      "<html>{{block=header}}<body>{{text $title}}</body></html>",
	"about.tpl":      "<p>{{text About}}</p>",
	"header.tpl":     "<head>{{text Site}}</head>",
	"users/list.tpl": "{{foreach users}}<li>{{text $value.name}}</li>{{end foreach}}",
	"broken.tpl":     "{{foreach users}}",
	"badif.tpl":      "{{if )}}x{{end if}}",
	"loop.tpl":       "{{block=loop}}",
}

func TestEngine_CacheHitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, siteFiles, Options{})

	first, err := engine.Compile(ctx, "index.tpl", false)
	require.NoError(t, err)

	second, err := engine.Compile(ctx, "index.tpl", false)
	require.NoError(t, err)

	assert.Equal(t, first.Code, second.Code)
	assert.True(t, first.CompiledAt.Equal(second.CompiledAt))
	assert.Equal(t, Stats{Compiles: 1, Hits: 1}, engine.Stats())
}

func TestEngine_ForcedCompilesAreDeterministic(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, siteFiles, Options{})

	first, err := engine.Compile(ctx, "index.tpl", true)
	require.NoError(t, err)
	second, err := engine.Compile(ctx, "index.tpl", true)
	require.NoError(t, err)

	assert.Equal(t, first.Code, second.Code)
	assert.Equal(t, first.SourceHash, second.SourceHash)
	assert.Equal(t, int64(2), engine.Stats().Compiles)
}

func TestEngine_AlwaysRecompile(t *testing.T) {
	ctx := context.Background()
	engine, disk := newTestEngine(t, siteFiles, Options{AlwaysRecompile: true})

	for i := 0; i < 2; i++ {
		_, err := engine.Compile(ctx, "about.tpl", false)
		require.NoError(t, err)
	}

	assert.Equal(t, Stats{Compiles: 2}, engine.Stats())

	// Reads are skipped but the artifact is still written.
	_, ok, err := disk.Get(ctx, "about.tpl")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEngine_Artifact(t *testing.T) {
	ctx := context.Background()
	engine, disk := newTestEngine(t, siteFiles, Options{})
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	engine.now = func() time.Time { return fixed }

	artifact, err := engine.Compile(ctx, "index.tpl", false)
	require.NoError(t, err)

	assert.Equal(t, "index.tpl", artifact.Page)
	assert.Equal(t, `<html><head>{{"Site"}}</head><body>{{$.title}}</body></html>`, artifact.Code)
	assert.Equal(t, []string{"header"}, artifact.Dependencies)
	assert.Len(t, artifact.SourceHash, 64)
	assert.Equal(t, fixed, artifact.CompiledAt)

	stored, ok, err := disk.Get(ctx, "index.tpl")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, artifact.Code, stored.Code)
}

func TestEngine_NestedPageCreatesDirectories(t *testing.T) {
	ctx := context.Background()
	engine, disk := newTestEngine(t, siteFiles, Options{})

	_, err := engine.Compile(ctx, "users/list.tpl", false)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(disk.Root(), "users", "list.tpl.gotmpl"))
}

func TestEngine_FailuresCacheNothing(t *testing.T) {
	ctx := context.Background()
	engine, disk := newTestEngine(t, siteFiles, Options{})

	tests := []struct {
		page   string
		target error
	}{
		{"broken.tpl", errors.ErrUnclosedBlock},
		{"badif.tpl", errors.ErrGeneratedCode},
		{"loop.tpl", errors.ErrBlockRecursion},
		{"missing.tpl", errors.ErrTemplateNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.page, func(t *testing.T) {
			_, err := engine.Compile(ctx, tt.page, false)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)

			var e *errors.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.page, e.Page)

			_, ok, err := disk.Get(ctx, tt.page)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}

	assert.Equal(t, int64(len(tests)), engine.Stats().Failures)
}

func TestEngine_FreezesRegistry(t *testing.T) {
	engine, _ := newTestEngine(t, siteFiles, Options{})
	require.NoError(t, engine.Registry().RegisterAlias("text", "echo"))

	_, err := engine.Compile(context.Background(), "about.tpl", false)
	require.NoError(t, err)

	err = engine.Registry().RegisterAlias("text", "say")
	assert.ErrorIs(t, err, errors.ErrRegistryFrozen)
}

func TestEngine_Invalidate(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, siteFiles, Options{})

	for _, page := range []string{"index.tpl", "about.tpl", "users/list.tpl"} {
		_, err := engine.Compile(ctx, page, false)
		require.NoError(t, err)
	}

	dropped, err := engine.Invalidate(ctx, "header.tpl", "header")
	require.NoError(t, err)
	assert.Equal(t, []string{"index.tpl"}, dropped)

	dropped, err = engine.Invalidate(ctx, "about.tpl", "about")
	require.NoError(t, err)
	assert.Equal(t, []string{"about.tpl"}, dropped)

	before := engine.Stats().Compiles
	_, err = engine.Compile(ctx, "index.tpl", false)
	require.NoError(t, err)
	_, err = engine.Compile(ctx, "users/list.tpl", false)
	require.NoError(t, err)
	assert.Equal(t, before+1, engine.Stats().Compiles)
}

func TestEngine_ConcurrentCompilesOfOnePage(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(t, siteFiles, Options{})

	var wg sync.WaitGroup
	codes := make([]string, 8)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			artifact, err := engine.Compile(ctx, "index.tpl", true)
			if assert.NoError(t, err) {
				codes[i] = artifact.Code
			}
		}(i)
	}
	wg.Wait()

	for _, code := range codes {
		assert.Equal(t, codes[0], code)
	}
	assert.LessOrEqual(t, engine.Stats().Compiles, int64(len(codes)))
}

func TestEngine_SourceChangeNeedsInvalidation(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.tpl"), []byte("{{text one}}"), 0o644))

	engine, _ := newTestEngine(t, nil, Options{})
	engine.resolver = NewResolver(dirSource(dir))

	first, err := engine.Compile(ctx, "page.tpl", false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.tpl"), []byte("{{text two}}"), 0o644))

	cached, err := engine.Compile(ctx, "page.tpl", false)
	require.NoError(t, err)
	assert.Equal(t, first.Code, cached.Code)

	_, err = engine.Invalidate(ctx, "page.tpl")
	require.NoError(t, err)

	fresh, err := engine.Compile(ctx, "page.tpl", false)
	require.NoError(t, err)
	assert.Equal(t, `{{"two"}}`, fresh.Code)
}

func TestEngine_CompileOutlivesCallerCancellation(t *testing.T) {
	engine, disk := newTestEngine(t, map[string]string{"index.tpl": "<p>{{text hi}}</p>"}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	artifact, err := engine.Compile(ctx, "index.tpl", true)
	require.NoError(t, err)
	assert.Equal(t, "index.tpl", artifact.Page)

	_, ok, err := disk.Get(context.Background(), "index.tpl")
	require.NoError(t, err)
	assert.True(t, ok)
}
