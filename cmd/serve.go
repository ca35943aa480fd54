package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/tplc/internal/services"
)

var (
	serveWatch    bool
	serveDebounce time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the development server",
	Long: `Serve pages over HTTP, compiling them on demand.

Request paths map to pages under the templates directory and query
parameters become bindings. With --watch, edits to pages and fragments
invalidate the affected artifacts and connected browsers reload when live
reload is enabled.

Examples:
  tplc serve
  tplc serve --port 3000 --host 0.0.0.0
  tplc serve --watch=false`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "port to listen on")
	serveCmd.Flags().String("host", "localhost", "host to bind to")
	serveCmd.Flags().Bool("live-reload", true, "inject the live reload script into served pages")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", true, "invalidate artifacts when templates change")
	serveCmd.Flags().DurationVar(&serveDebounce, "debounce", 300*time.Millisecond, "delay used to group file changes")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.live_reload", serveCmd.Flags().Lookup("live-reload"))
}

func runServe(cmd *cobra.Command, _ []string) error {
	port, _ := cmd.Flags().GetInt("port")
	if err := validatePort(port); err != nil {
		return err
	}

	container, err := loadContainer()
	if err != nil {
		return err
	}

	cfg := container.Config()
	fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render(
		fmt.Sprintf("Serving %s on http://%s:%d", cfg.Templates.Dir, cfg.Server.Host, cfg.Server.Port)))

	return services.NewServeService(container).Serve(cmd.Context(), services.ServeOptions{
		Watch:    serveWatch,
		Debounce: serveDebounce,
	})
}
