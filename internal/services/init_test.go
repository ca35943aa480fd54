package services

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/tplc/internal/config"
)

func TestInitService_InitProject(t *testing.T) {
	dir := t.TempDir()

	result, err := NewInitService().InitProject(InitOptions{ProjectDir: dir})
	require.NoError(t, err)

	assert.Empty(t, result.Skipped)
	assert.Contains(t, result.Created, ConfigFile)
	assert.Contains(t, result.Created, "templates/index.tpl")
	assert.FileExists(t, filepath.Join(dir, "templates", "404.tpl"))
	assert.FileExists(t, filepath.Join(dir, "templates", "src", "javascript", "custom", "app.js"))
}

func TestInitService_SkipsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	index := filepath.Join(dir, "templates", "index.tpl")
	require.NoError(t, os.MkdirAll(filepath.Dir(index), 0o755))
	require.NoError(t, os.WriteFile(index, []byte("mine"), 0o644))

	result, err := NewInitService().InitProject(InitOptions{ProjectDir: dir})
	require.NoError(t, err)
	assert.Equal(t, []string{"templates/index.tpl"}, result.Skipped)

	data, err := os.ReadFile(index)
	require.NoError(t, err)
	assert.Equal(t, "mine", string(data))

	result, err = NewInitService().InitProject(InitOptions{ProjectDir: dir, Force: true})
	require.NoError(t, err)
	assert.Empty(t, result.Skipped)
	data, err = os.ReadFile(index)
	require.NoError(t, err)
	assert.NotEqual(t, "mine", string(data))
}

// The scaffold must load through the regular configuration path and render.
func TestInitService_ScaffoldRenders(t *testing.T) {
	dir := t.TempDir()
	_, err := NewInitService().InitProject(InitOptions{ProjectDir: dir})
	require.NoError(t, err)

	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.SetConfigFile(filepath.Join(dir, ConfigFile))
	require.NoError(t, viper.ReadInConfig())

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Assets.Builtin)
	assert.Equal(t, []string{"app.js"}, cfg.Assets.Custom)
	assert.True(t, cfg.Compiler.Minify)

	cfg.Templates.Dir = filepath.Join(dir, cfg.Templates.Dir)
	cfg.Cache.Dir = filepath.Join(dir, cfg.Cache.Dir)
	cfg.Assets.SourceDir = filepath.Join(dir, cfg.Assets.SourceDir)
	c := NewContainer(cfg, nil)

	var out bytes.Buffer
	err = NewRenderService(c).Render(context.Background(), &out, RenderOptions{
		Page:     "index.tpl",
		Bindings: map[string]any{"name": "Ada"},
	})
	require.NoError(t, err)
	html := out.String()
	assert.Contains(t, html, "<h1>Hello, Ada!</h1>")
	assert.Contains(t, html, "<li>3</li>")
	assert.Contains(t, html, `<script src="`+cfg.BundlePath()+`">`)
	assert.NotContains(t, html, "Hello from tplc")

	bundle, err := c.Bundler().Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"custom/app.js"}, bundle.Files)
}
