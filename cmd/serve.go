package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/folio/internal/app"
	folioerrors "github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/plugins"
)

var serveCmd = &cobra.Command{
	Use:     "serve [dir]",
	Aliases: []string{"preview"},
	Short:   "Preview a finished build",
	Long: `Serve the output of folio build. dir defaults to the configured output
directory.

Examples:
  folio serve              # Serve .folio/dist
  folio serve public -p 8080`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: bindRunE(serverBindings, map[string]string{"base": "site.baseUrl"}),
	RunE:    runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	addServerFlags(serveCmd)
	serveCmd.Flags().String("base", "", "Base URL the build was made for")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newSession(plugins.CommandServe, nil)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	opts := app.ServeOptions{Addr: s.cfg.Server.Addr(), Open: s.cfg.Server.Open}
	if len(args) > 0 {
		opts.Dir = args[0]
	}
	cmd.Printf("Serving build at http://%s\n", opts.Addr)

	if err := s.app.Serve(ctx, opts); err != nil && ctx.Err() == nil {
		if suggestions := folioerrors.ServerStartError(err, s.cfg.Server.Port); len(suggestions) > 0 {
			return folioerrors.NewEnhancedError("Failed to start server", err, suggestions)
		}
		return err
	}
	return nil
}
