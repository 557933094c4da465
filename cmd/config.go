package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/folio/internal/config"
	folioerrors "github.com/conneroisu/folio/internal/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Print the configuration folio runs with after merging defaults, the
config file, FOLIO_ environment variables and flags.

Examples:
  folio config                # YAML
  folio config --format json  # JSON
  folio config validate       # Check .folio.yml
  folio config validate -f site.yml`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var (
	configFormat string
	configFile   string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)

	configCmd.Flags().StringVar(&configFormat, "format", "yaml", "Output format (yaml, json)")
	configValidateCmd.Flags().StringVarP(&configFile, "file", "f", "", "Configuration file to validate (default: the loaded config file)")
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return folioerrors.NewEnhancedError("Failed to load configuration", err,
			folioerrors.ConfigurationError(err.Error(), configPath()))
	}

	var out []byte
	switch configFormat {
	case "yaml":
		out, err = yaml.Marshal(cfg)
	case "json":
		out, err = json.MarshalIndent(cfg, "", "  ")
		out = append(out, '\n')
	default:
		return fmt.Errorf("unsupported format: %s (supported: yaml, json)", configFormat)
	}
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	target := configFile
	if target == "" {
		target = viper.ConfigFileUsed()
	}
	if target == "" {
		return fmt.Errorf("no configuration file found, use --file to name one")
	}

	v := viper.New()
	v.SetConfigFile(target)
	if err := v.ReadInConfig(); err != nil {
		return folioerrors.NewEnhancedError("Failed to read configuration", err,
			folioerrors.ConfigurationError(err.Error(), target))
	}
	if _, err := config.LoadFrom(v); err != nil {
		return folioerrors.NewEnhancedError("Configuration is invalid", err,
			folioerrors.ConfigurationError(err.Error(), target))
	}
	cmd.Printf("%s is valid\n", target)
	return nil
}
