package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/folio/internal/app"
	folioerrors "github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/metrics"
	"github.com/conneroisu/folio/internal/paths"
	"github.com/conneroisu/folio/internal/plugins"
)

var devCmd = &cobra.Command{
	Use:   "dev [srcDir]",
	Short: "Start the dev server with live reload",
	Long: `Start the dev server. Pages are rendered on request and connected
browsers reload when a source file changes. Resolution errors are shown
in the browser until the next successful change.

Examples:
  folio dev                  # Serve the current directory
  folio dev docs --port 3000 # Serve ./docs on port 3000
  folio dev --base /docs/    # Serve under a base URL`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: bindRunE(serverBindings, map[string]string{"base": "site.baseUrl"}),
	RunE:    runDev,
}

func init() {
	rootCmd.AddCommand(devCmd)

	addServerFlags(devCmd)
	devCmd.Flags().String("base", "", "Base URL the site is served under")
}

func runDev(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newSession(plugins.CommandDev, args)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	if err := s.app.Init(ctx); err != nil {
		return err
	}

	addr := s.cfg.Server.Addr()
	cmd.Printf("folio dev server running at http://%s\n", addr+paths.WithBase(s.app.Site().BaseURL, "/"))

	err = s.app.Dev(ctx, app.DevOptions{
		Addr:    addr,
		Open:    s.cfg.Server.Open,
		Metrics: metrics.HTTPHandler(s.registry),
	})
	if err != nil && ctx.Err() == nil {
		if suggestions := folioerrors.ServerStartError(err, s.cfg.Server.Port); len(suggestions) > 0 {
			return folioerrors.NewEnhancedError("Failed to start dev server", err, suggestions)
		}
		return err
	}
	return nil
}
