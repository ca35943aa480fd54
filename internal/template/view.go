package template

import (
	"context"
	"io"
	"maps"
)

// View is the per-request handle on one page: pick a page, register
// variables, compile, then display.
type View struct {
	engine   *Engine
	renderer *Renderer
	page     string
	vars     map[string]any
	artifact *Artifact
}

func NewView(engine *Engine, renderer *Renderer) *View {
	return &View{
		engine:   engine,
		renderer: renderer,
		vars:     make(map[string]any),
	}
}

// SetPage selects the page to compile and forgets any previous artifact.
func (v *View) SetPage(page string) *View {
	v.page = page
	v.artifact = nil
	return v
}

// Page returns the selected page name.
func (v *View) Page() string {
	return v.page
}

// RegisterVar binds name for the next render.
func (v *View) RegisterVar(name string, value any) *View {
	v.vars[name] = value
	return v
}

// UnsetVar removes a binding.
func (v *View) UnsetVar(name string) *View {
	delete(v.vars, name)
	return v
}

// Vars returns a copy of the bindings.
func (v *View) Vars() map[string]any {
	return maps.Clone(v.vars)
}

// Compile compiles the selected page, reusing the cache when allowed.
func (v *View) Compile(ctx context.Context) error {
	artifact, err := v.engine.Compile(ctx, v.page, false)
	if err != nil {
		return err
	}
	v.artifact = artifact
	return nil
}

// Display renders the page to w, compiling first when needed.
func (v *View) Display(ctx context.Context, w io.Writer) error {
	if err := v.ensureCompiled(ctx); err != nil {
		return err
	}
	return v.renderer.RenderTo(ctx, w, v.artifact, v.vars)
}

// HTML renders the page to a string.
func (v *View) HTML(ctx context.Context) (string, error) {
	if err := v.ensureCompiled(ctx); err != nil {
		return "", err
	}
	return v.renderer.Render(ctx, v.artifact, v.vars)
}

func (v *View) ensureCompiled(ctx context.Context) error {
	if v.artifact != nil {
		return nil
	}
	return v.Compile(ctx)
}
