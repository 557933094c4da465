package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/folio/internal/plugins"
)

var buildCmd = &cobra.Command{
	Use:     "build [srcDir]",
	Aliases: []string{"b"},
	Short:   "Build the static site",
	Long: `Build every page into static HTML together with the public directory,
referenced assets and client modules. Output is minified. A sitemap is
written when --hostname is set.

Examples:
  folio build docs                                  # Build ./docs into .folio/dist
  folio build docs -o public --base /docs/           # Custom output and base URL
  folio build docs --hostname https://example.com   # Also write sitemap.xml`,
	Args: cobra.MaximumNArgs(1),
	PreRunE: bindRunE(map[string]string{
		"out":      "outDir",
		"base":     "site.baseUrl",
		"hostname": "hostname",
	}),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringP("out", "o", "", "Output directory (default .folio/dist)")
	buildCmd.Flags().String("base", "", "Base URL the site is deployed under")
	buildCmd.Flags().String("hostname", "", "Absolute site URL used for sitemap.xml")
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newSession(plugins.CommandBuild, args)
	if err != nil {
		return err
	}
	defer s.close(ctx)

	start := time.Now()
	if err := s.app.Init(ctx); err != nil {
		return err
	}
	manifest, err := s.app.Build(ctx)
	if err != nil {
		return err
	}

	cmd.Printf("Built %d pages into %s in %s (build %s)\n",
		len(manifest.Routes), s.app.Dirs().Out, time.Since(start).Round(time.Millisecond), manifest.BuildID)
	return nil
}
