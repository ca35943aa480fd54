package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/tplc/internal/cache"
	"github.com/conneroisu/tplc/internal/config"
)

var cacheFormat string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and clear the compiled artifact cache",
}

var cacheListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List compiled artifacts",
	Long: `List the artifacts stored in the templates cache namespace.

Examples:
  tplc cache list
  tplc cache list -o json`,
	Args: cobra.NoArgs,
	RunE: runCacheList,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear [namespace...]",
	Short: "Remove cached artifacts",
	Long: `Remove everything stored in the given cache namespaces.

Without arguments the templates namespace is cleared. The namespace "all"
clears both the templates and the JavaScript namespace.

Examples:
  tplc cache clear
  tplc cache clear JavaScript
  tplc cache clear all`,
	RunE: runCacheClear,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show disk usage per cache namespace",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheListCmd, cacheClearCmd, cacheStatsCmd)

	cacheCmd.PersistentFlags().StringVarP(&cacheFormat, "output", "o", formatTable, "output format (table, json, yaml)")
	AddFlagValidation(cacheCmd.PersistentFlags(), "output", oneOf(formatTable, formatJSON, formatYAML))
}

type artifactRow struct {
	Page         string    `json:"page" yaml:"page"`
	CompiledAt   time.Time `json:"compiled_at" yaml:"compiled_at"`
	Dependencies []string  `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	SourceHash   string    `json:"source_hash" yaml:"source_hash"`
	Bytes        int       `json:"bytes" yaml:"bytes"`
}

func runCacheList(cmd *cobra.Command, _ []string) error {
	container, err := loadContainer()
	if err != nil {
		return err
	}

	artifacts, err := container.Store().Disk().List(cmd.Context())
	if err != nil {
		return err
	}

	rows := make([]artifactRow, 0, len(artifacts))
	for _, a := range artifacts {
		rows = append(rows, artifactRow{
			Page:         a.Page,
			CompiledAt:   a.CompiledAt,
			Dependencies: a.Dependencies,
			SourceHash:   a.SourceHash,
			Bytes:        len(a.Code),
		})
	}

	out := cmd.OutOrStdout()
	switch cacheFormat {
	case formatJSON:
		return writeJSON(out, rows)
	case formatYAML:
		return yaml.NewEncoder(out).Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("No compiled artifacts"))
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PAGE\tCOMPILED\tBYTES\tDEPENDENCIES")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n",
			row.Page, row.CompiledAt.Local().Format(time.DateTime), row.Bytes, len(row.Dependencies))
	}
	return w.Flush()
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	namespaces := args
	if len(namespaces) == 0 {
		namespaces = []string{config.NamespaceTemplates}
	}
	if len(namespaces) == 1 && namespaces[0] == "all" {
		namespaces = []string{config.NamespaceTemplates, config.NamespaceJavaScript}
	}

	container, err := loadContainer()
	if err != nil {
		return err
	}

	for _, ns := range namespaces {
		if err := container.Caches().Clear(cmd.Context(), ns); err != nil {
			return err
		}
		printSuccess(cmd.OutOrStdout(), "cleared %s", ns)
	}
	return nil
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	container, err := loadContainer()
	if err != nil {
		return err
	}

	usage := make([]cache.Usage, 0, 2)
	for _, ns := range []string{config.NamespaceTemplates, config.NamespaceJavaScript} {
		u, err := container.Caches().Usage(ns)
		if err != nil {
			return err
		}
		usage = append(usage, u)
	}

	out := cmd.OutOrStdout()
	switch cacheFormat {
	case formatJSON:
		return writeJSON(out, usage)
	case formatYAML:
		return yaml.NewEncoder(out).Encode(usage)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAMESPACE\tFILES\tBYTES")
	for _, u := range usage {
		fmt.Fprintf(w, "%s\t%d\t%d\n", u.Namespace, u.Files, u.Bytes)
	}
	return w.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
