package template

import (
	"testing"
	"testing/fstest"

	"github.com/conneroisu/tplc/internal/cache"
	"github.com/conneroisu/tplc/internal/source"
)

func mapSource(files map[string]string) *source.Dir {
	fsys := fstest.MapFS{}
	for name, data := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(data)}
	}
	return source.NewFS(fsys, ".tpl")
}

func dirSource(dir string) *source.Dir {
	return source.NewDir(dir, ".tpl")
}

func newTestEngine(t *testing.T, files map[string]string, opts Options) (*Engine, *cache.Disk) {
	t.Helper()
	disk := cache.NewDisk(t.TempDir(), "Templates")
	engine := NewEngine(mapSource(files), disk, NewDefaultRegistry(""), opts, nil)
	return engine, disk
}

func generate(t *testing.T, markup string) (string, error) {
	t.Helper()
	return Generate("test.tpl", markup, NewDefaultRegistry(""), false)
}
