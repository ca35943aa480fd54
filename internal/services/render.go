package services

import (
	"context"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/tplc/internal/errors"
	"github.com/conneroisu/tplc/internal/template"
)

// RenderService renders one page to a writer.
type RenderService struct {
	container *Container
}

// NewRenderService creates a render service.
func NewRenderService(container *Container) *RenderService {
	return &RenderService{container: container}
}

// RenderOptions contains the page and its bindings.
type RenderOptions struct {
	Page     string
	Bindings map[string]any
	Force    bool
}

// Render compiles the page when needed and writes its output to w.
func (s *RenderService) Render(ctx context.Context, w io.Writer, opts RenderOptions) error {
	// With AlwaysRecompile the view compiles afresh anyway.
	if opts.Force && !s.container.Config().Compiler.AlwaysRecompile {
		if _, err := s.container.Engine().Compile(ctx, opts.Page, true); err != nil {
			return err
		}
	}

	view := s.container.View(opts.Page)
	for name, value := range template.Bindings(opts.Bindings) {
		view.RegisterVar(name, value)
	}
	return view.Display(ctx, w)
}

// LoadBindings reads a YAML or JSON mapping of binding names to values.
func LoadBindings(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeSourceIO, "reading bindings file")
	}

	bindings := map[string]any{}
	if err := yaml.Unmarshal(data, &bindings); err != nil {
		return nil, errors.WrapConfig(err, "parsing bindings file "+path)
	}
	return bindings, nil
}
