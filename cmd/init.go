package cmd

import (
	"github.com/spf13/cobra"

	"github.com/conneroisu/tplc/internal/services"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Scaffold a new tplc project",
	Long: `Create starter pages, fragments, a script and a .tplc.yml configuration
file. Existing files are left untouched unless --force is given.

Examples:
  tplc init
  tplc init my-site
  tplc init --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing files")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}

	result, err := services.NewInitService().InitProject(services.InitOptions{
		ProjectDir: dir,
		Force:      initForce,
	})
	out := cmd.OutOrStdout()
	if result != nil {
		for _, name := range result.Created {
			printSuccess(out, "created %s", name)
		}
		for _, name := range result.Skipped {
			printWarning(out, "skipped %s (exists)", name)
		}
	}
	return err
}
