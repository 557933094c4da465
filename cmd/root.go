package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/folio/internal/app"
	"github.com/conneroisu/folio/internal/config"
	folioerrors "github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/metrics"
	"github.com/conneroisu/folio/internal/plugins"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "folio",
	Short: "Documentation sites and component stories from markdown",
	Long: `Folio turns a directory of markdown pages and component stories into a
documentation site. Plugins claim source files, markdown is rendered through
an extensible parser and the result is served with live reload or built into
static HTML.

Quick Start:
  folio dev docs          Start the dev server for ./docs
  folio build docs        Build the site into .folio/dist
  folio serve             Preview the last build
  folio config            Print the effective configuration`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is .folio.yml or folio.config.yaml, can also use FOLIO_CONFIG_FILE)")
	pf.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	pf.BoolP("debug", "d", false, "shorthand for --log-level debug")
	bindPersistentFlags()
}

func bindPersistentFlags() {
	pf := rootCmd.PersistentFlags()
	_ = viper.BindPFlag("logLevel", pf.Lookup("log-level"))
	_ = viper.BindPFlag("debug", pf.Lookup("debug"))
}

// initConfig picks the config file: --config, then FOLIO_CONFIG_FILE, then
// .folio.yml or folio.config.yaml in the working directory. A missing file
// leaves the defaults in place.
func initConfig() {
	viper.SetEnvPrefix("FOLIO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	explicit := cfgFile
	if explicit == "" {
		explicit = os.Getenv("FOLIO_CONFIG_FILE")
	}
	if explicit != "" {
		viper.SetConfigFile(explicit)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to read config file:", err)
		}
		return
	}

	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")
	for _, name := range []string{".folio", "folio.config"} {
		viper.SetConfigName(name)
		err := viper.ReadInConfig()
		if err == nil {
			return
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "Failed to read config file:", err)
			return
		}
	}
}

// configPath names the file the user should look at when configuration
// fails.
func configPath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return ".folio.yml"
}

// session is one App with the logger and metrics registry built from the
// loaded configuration.
type session struct {
	cfg      *config.Config
	app      *app.App
	logger   logging.Logger
	registry *prometheus.Registry
}

// newSession loads the configuration, with the optional positional source
// directory applied, and constructs the App for command.
func newSession(command plugins.Command, args []string) (*session, error) {
	if len(args) > 0 {
		viper.Set("srcDir", args[0])
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, folioerrors.NewEnhancedError(
			"Failed to load configuration",
			err,
			folioerrors.ConfigurationError(err.Error(), configPath()),
		)
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     logging.ParseLevel(cfg.LogLevel),
		Format:    "text",
		Output:    os.Stderr,
		Component: "folio",
	})
	reg := prometheus.NewRegistry()
	a, err := app.New(cfg, command,
		app.WithLogger(logger),
		app.WithRecorder(metrics.NewPrometheusRecorder(reg)),
	)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, app: a, logger: logger, registry: reg}, nil
}

// close runs the plugin close hooks even when ctx is already canceled.
func (s *session) close(ctx context.Context) {
	if err := s.app.Close(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, folioerrors.ErrClosed) {
		s.logger.Error(ctx, err, "Failed to close plugins")
	}
}
