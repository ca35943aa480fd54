package cmd

import (
	"github.com/spf13/cobra"
)

var bundleCmd = &cobra.Command{
	Use:   "bundle",
	Short: "Build the JavaScript bundle",
	Long: `Concatenate the configured built-in and custom scripts into the bundle
file that the js tag points at. Missing scripts are reported and skipped.`,
	Args: cobra.NoArgs,
	RunE: runBundle,
}

func init() {
	rootCmd.AddCommand(bundleCmd)
}

func runBundle(cmd *cobra.Command, _ []string) error {
	container, err := loadContainer()
	if err != nil {
		return err
	}

	result, err := container.Bundler().Build(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, missing := range result.Missing {
		printWarning(out, "missing %s", missing)
	}
	printSuccess(out, "%s (%d files, %d bytes)", result.Path, len(result.Files), result.Bytes)
	return nil
}
