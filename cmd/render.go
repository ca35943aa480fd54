package cmd

import (
	"bytes"

	"github.com/spf13/cobra"

	"github.com/conneroisu/tplc/internal/cache"
	"github.com/conneroisu/tplc/internal/services"
)

var (
	renderVars   string
	renderSet    []string
	renderForce  bool
	renderOutput string
)

var renderCmd = &cobra.Command{
	Use:   "render <page>",
	Short: "Render a page with bindings",
	Long: `Render a page and write the output to stdout or a file.

Bindings come from a YAML or JSON file given with --vars and from --set
name=value pairs, which take precedence. Nested mappings can be reached
from the page with $name.field.

Examples:
  tplc render index.tpl
  tplc render index.tpl --set name=Ada
  tplc render report.tpl --vars data.yml --output report.html`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVar(&renderVars, "vars", "", "YAML or JSON file with bindings")
	renderCmd.Flags().StringArrayVar(&renderSet, "set", nil, "binding as name=value (repeatable)")
	renderCmd.Flags().BoolVarP(&renderForce, "force", "f", false, "recompile before rendering")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "write the output to a file instead of stdout")
}

func runRender(cmd *cobra.Command, args []string) error {
	bindings := map[string]any{}
	if renderVars != "" {
		loaded, err := services.LoadBindings(renderVars)
		if err != nil {
			return err
		}
		bindings = loaded
	}
	for _, pair := range renderSet {
		name, value, ok := cutBinding(pair)
		if !ok {
			return errInvalidBinding(pair)
		}
		bindings[name] = value
	}

	container, err := loadContainer()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	err = services.NewRenderService(container).Render(cmd.Context(), &buf, services.RenderOptions{
		Page:     args[0],
		Bindings: bindings,
		Force:    renderForce,
	})
	if err != nil {
		return err
	}

	if renderOutput == "" {
		_, err = cmd.OutOrStdout().Write(buf.Bytes())
		return err
	}
	if err := cache.WriteAtomic(renderOutput, buf.Bytes()); err != nil {
		return err
	}
	printSuccess(cmd.ErrOrStderr(), "wrote %s", renderOutput)
	return nil
}
