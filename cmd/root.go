// Package cmd provides the tplc command-line interface.
//
// Configuration is read from, highest priority first: command-line flags,
// TPLC_<SECTION>_<OPTION> environment variables, and the configuration file.
// The file is the one given by --config, else TPLC_CONFIG_FILE, else
// .tplc.yml in the current directory.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/tplc/internal/config"
	"github.com/conneroisu/tplc/internal/logging"
	"github.com/conneroisu/tplc/internal/services"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tplc",
	Short: "Compile tag-based page templates into cached executable templates",
	Long: `tplc compiles markup pages written with {{tag}} directives into Go
templates, caches the compiled artifacts on disk and renders them with your
bindings.

Quick Start:
  tplc init                       Scaffold templates and .tplc.yml
  tplc compile --all              Compile every page into the cache
  tplc render index.tpl           Render a page to stdout
  tplc serve                      Start the development server
  tplc cache clear                Drop compiled artifacts`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .tplc.yml, can also use TPLC_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))

	AddFlagValidation(rootCmd.PersistentFlags(), "log-level", func(level string) error {
		_, err := logging.ParseLevel(level)
		return err
	})
}

// initConfig points viper at the configuration file and the environment.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("TPLC_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(strings.TrimSuffix(services.ConfigFile, ".yml"))
	}

	viper.SetEnvPrefix("TPLC")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	// A missing or unreadable file leaves the defaults in place
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, mutedStyle.Render("Using config file: "+viper.ConfigFileUsed()))
	}
}

// loadContainer loads the configuration and wires the compiler components.
func loadContainer() (*services.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Log.Format,
		Output:    os.Stderr,
		Component: "tplc",
	})

	return services.NewContainer(cfg, logger), nil
}
