package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// serverBindings maps the shared server flags onto config keys.
var serverBindings = map[string]string{
	"port": "server.port",
	"host": "server.host",
	"open": "server.open",
}

// addServerFlags registers --port, --host and --open on cmd.
func addServerFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("port", "p", 5173, "Port to serve on")
	cmd.Flags().String("host", "localhost", "Host to bind to")
	cmd.Flags().Bool("open", false, "Open the browser on start")
	AddFlagValidation(cmd, "port", ValidatePort)
}

// bindFlags binds flags of cmd to config keys. Binding happens when the
// command runs so commands sharing a flag name do not steal each other's
// binding on the global viper instance.
func bindFlags(cmd *cobra.Command, bindings map[string]string) error {
	for flagName, key := range bindings {
		flag := cmd.Flags().Lookup(flagName)
		if flag == nil {
			continue
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", flagName, err)
		}
	}
	return nil
}

// bindRunE returns a PreRunE binding every map in bindings.
func bindRunE(bindings ...map[string]string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		for _, b := range bindings {
			if err := bindFlags(cmd, b); err != nil {
				return err
			}
		}
		return nil
	}
}

// AddFlagValidation makes the flag reject values validator refuses at
// parse time.
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		return
	}
	flag.Value = &validatingValue{Value: flag.Value, validator: validator}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if err := v.validator(val); err != nil {
		return err
	}
	return v.Value.Set(val)
}

// ValidatePort accepts ports 1-65535.
func ValidatePort(portStr string) error {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return fmt.Errorf("invalid port number: %s", portStr)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}
