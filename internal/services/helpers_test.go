package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/tplc/internal/config"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, data := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	}
}

func testConfig(root string) *config.Config {
	templates := filepath.Join(root, "templates")
	return &config.Config{
		Environment: config.EnvironmentLive,
		Templates:   config.TemplatesConfig{Dir: templates, FragmentExt: ".tpl"},
		Cache:       config.CacheConfig{Dir: filepath.Join(root, "cache"), MemoryMaxBytes: 1 << 20, TTL: time.Hour},
		Assets: config.AssetsConfig{
			SourceDir:  filepath.Join(templates, "src", "javascript"),
			Custom:     []string{"app.js"},
			BundleName: "javascript.min.js",
		},
		Server: config.ServerConfig{
			Host:         "127.0.0.1",
			IndexPage:    "index.tpl",
			NotFoundPage: "404.tpl",
		},
	}
}

func newTestContainer(t *testing.T, files map[string]string) *Container {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, filepath.Join(root, "templates"), files)
	return NewContainer(testConfig(root), nil)
}
