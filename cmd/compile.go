package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/tplc/internal/services"
)

var (
	compileAll     bool
	compileForce   bool
	compileWorkers int
)

var compileCmd = &cobra.Command{
	Use:   "compile [pages...]",
	Short: "Compile pages into the artifact cache",
	Long: `Compile pages into executable templates and store them in the cache.

Page names are paths relative to the templates directory. With --all,
files included by another file through a block directive are treated as
fragments and skipped. Up-to-date
artifacts are reused unless --force is given. A page that fails to compile
is reported and the remaining pages are still compiled.

Examples:
  tplc compile index.tpl
  tplc compile --all
  tplc compile --all --force --workers 4`,
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)

	compileCmd.Flags().BoolVarP(&compileAll, "all", "a", false, "compile every page under the templates directory")
	compileCmd.Flags().BoolVarP(&compileForce, "force", "f", false, "recompile even when the cached artifact is current")
	compileCmd.Flags().IntVarP(&compileWorkers, "workers", "w", 0, "concurrent compiles (0 means one per CPU)")
}

func runCompile(cmd *cobra.Command, args []string) error {
	if !compileAll && len(args) == 0 {
		return fmt.Errorf("give at least one page or use --all")
	}

	container, err := loadContainer()
	if err != nil {
		return err
	}

	result, err := services.NewCompileService(container).Compile(cmd.Context(), services.CompileOptions{
		Pages:   args,
		All:     compileAll,
		Force:   compileForce,
		Workers: compileWorkers,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, artifact := range result.Artifacts {
		printSuccess(out, "%s %s", artifact.Page, mutedStyle.Render(artifact.SourceHash[:12]))
	}
	for _, name := range result.Skipped {
		fmt.Fprintln(out, mutedStyle.Render("- "+name+" (fragment)"))
	}
	for _, failure := range result.Failures {
		printFailure(out, "%s: %v", failure.Page, failure.Err)
	}

	summary := fmt.Sprintf("%d compiled, %d failed in %s",
		len(result.Artifacts), len(result.Failures), result.Duration.Round(time.Millisecond))
	if !result.Success() {
		fmt.Fprintln(out, errorStyle.Render(summary))
		return fmt.Errorf("%d page(s) failed to compile", len(result.Failures))
	}
	fmt.Fprintln(out, titleStyle.Render(summary))
	return nil
}
