package assets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/tplc/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()

	src := filepath.Join(root, "js")
	for path, data := range map[string]string{
		"builtin/md5.js":       "function md5(){}",
		"builtin/dmsf/main.js": "var dmsf = {};\n",
		"custom/app.js":        "dmsf.start();",
	} {
		full := filepath.Join(src, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(data), 0o644))
	}

	return &config.Config{
		Cache: config.CacheConfig{Dir: filepath.Join(root, "cache")},
		Assets: config.AssetsConfig{
			SourceDir:  src,
			Builtin:    []string{"md5.js", "dmsf/main.js", "accordion.js"},
			Custom:     []string{"app.js"},
			BundleName: "javascript.min.js",
		},
	}
}

func TestBundler_Files(t *testing.T) {
	b := NewBundler(testConfig(t), nil)
	assert.Equal(t, []string{
		"builtin/md5.js",
		"builtin/dmsf/main.js",
		"builtin/accordion.js",
		"custom/app.js",
	}, b.Files())
}

func TestBundler_Build(t *testing.T) {
	cfg := testConfig(t)
	b := NewBundler(cfg, nil)

	result, err := b.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cfg.Cache.Dir, "JavaScript", "javascript.min.js"), result.Path)
	assert.Equal(t, []string{"builtin/md5.js", "builtin/dmsf/main.js", "custom/app.js"}, result.Files)
	assert.Equal(t, []string{"builtin/accordion.js"}, result.Missing)
	assert.Len(t, result.Hash, 64)

	data, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	assert.Equal(t, "function md5(){}\nvar dmsf = {};\ndmsf.start();\n", string(data))
	assert.Equal(t, len(data), result.Bytes)
}

func TestBundler_EnsureBuildsOnce(t *testing.T) {
	b := NewBundler(testConfig(t), nil)
	ctx := context.Background()

	built, err := b.Ensure(ctx)
	require.NoError(t, err)
	assert.True(t, built)

	require.NoError(t, os.WriteFile(b.Output(), []byte("kept"), 0o644))

	built, err = b.Ensure(ctx)
	require.NoError(t, err)
	assert.False(t, built)

	data, err := os.ReadFile(b.Output())
	require.NoError(t, err)
	assert.Equal(t, "kept", string(data))
}

func TestBundler_CanceledContext(t *testing.T) {
	b := NewBundler(testConfig(t), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Build(ctx)
	assert.Error(t, err)
	assert.NoFileExists(t, b.Output())
}
