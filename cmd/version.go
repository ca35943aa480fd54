package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/tplc/internal/version"
)

var (
	versionFormat string
	versionShort  bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version and build information for tplc.

Examples:
  tplc version
  tplc version --short
  tplc version --format json`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "output format (text, json)")
	versionCmd.Flags().BoolVarP(&versionShort, "short", "s", false, "show the short version only")
	AddFlagValidation(versionCmd.Flags(), "format", oneOf("text", formatJSON))
}

func runVersion(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	if versionFormat == formatJSON {
		return writeJSON(out, version.GetBuildInfo())
	}
	if versionShort {
		fmt.Fprintln(out, version.GetShortVersion())
		return nil
	}

	fmt.Fprintln(out, titleStyle.Render("tplc "+version.GetShortVersion()))
	fmt.Fprintln(out, mutedStyle.Render(version.GetDetailedVersion()))
	return nil
}
