// Package services holds the command-level operations of tplc: compiling
// pages into the artifact cache, rendering a page, serving the development
// server and scaffolding a new project. Container wires the compiler
// components from a loaded configuration so every command shares one setup.
package services

import (
	"github.com/conneroisu/tplc/internal/assets"
	"github.com/conneroisu/tplc/internal/cache"
	"github.com/conneroisu/tplc/internal/config"
	"github.com/conneroisu/tplc/internal/logging"
	"github.com/conneroisu/tplc/internal/source"
	"github.com/conneroisu/tplc/internal/template"
)

// Container owns the compiler components built from one configuration.
type Container struct {
	config   *config.Config
	logger   logging.Logger
	source   *source.Dir
	store    *cache.Tiered
	engine   *template.Engine
	renderer *template.Renderer
	bundler  *assets.Bundler
	caches   *cache.Manager
}

// NewContainer wires the source directory, the tiered artifact cache, the
// engine with the built-in generators, the renderer, the JavaScript bundler
// and the namespace manager.
func NewContainer(cfg *config.Config, logger logging.Logger) *Container {
	if logger == nil {
		logger = logging.Discard()
	}

	src := source.NewDir(cfg.Templates.Dir, cfg.Templates.FragmentExt)
	store := cache.NewTiered(
		cache.NewMemory(cfg.Cache.MemoryMaxBytes, cfg.Cache.TTL),
		cache.NewDisk(cfg.Cache.Dir, config.NamespaceTemplates),
	)
	engine := template.NewEngine(
		src,
		store,
		template.NewDefaultRegistry(cfg.BundlePath()),
		template.Options{
			AlwaysRecompile: cfg.Compiler.AlwaysRecompile,
			Minify:          cfg.Compiler.Minify,
			HTMLEscape:      cfg.Compiler.HTMLEscape,
		},
		logger,
	)

	caches := cache.NewManager(cfg.Cache.Dir, logger)
	caches.OnClear(config.NamespaceTemplates, store.Memory().Purge)

	return &Container{
		config:   cfg,
		logger:   logger,
		source:   src,
		store:    store,
		engine:   engine,
		renderer: template.NewRenderer(cfg.Compiler.HTMLEscape),
		bundler:  assets.NewBundler(cfg, logger),
		caches:   caches,
	}
}

func (c *Container) Config() *config.Config       { return c.config }
func (c *Container) Logger() logging.Logger       { return c.logger }
func (c *Container) Source() *source.Dir          { return c.source }
func (c *Container) Store() *cache.Tiered         { return c.store }
func (c *Container) Engine() *template.Engine     { return c.engine }
func (c *Container) Renderer() *template.Renderer { return c.renderer }
func (c *Container) Bundler() *assets.Bundler     { return c.bundler }
func (c *Container) Caches() *cache.Manager       { return c.caches }

// View returns a fresh per-request view over the shared engine.
func (c *Container) View(page string) *template.View {
	return template.NewView(c.engine, c.renderer).SetPage(page)
}
