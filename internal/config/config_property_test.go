//go:build property

package config

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/spf13/viper"
)

// TestConfigurationProperties tests configuration loading and validation properties
func TestConfigurationProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	// Property: every port in range loads without error
	properties.Property("valid ports load", prop.ForAll(
		func(port int) bool {
			v := viper.New()
			v.Set("server.port", port)
			cfg, err := LoadFrom(v)
			return err == nil && cfg.Server.Port == port
		},
		gen.IntRange(0, 65535),
	))

	// Property: the base URL always starts and ends with a slash
	properties.Property("base url is normalized", prop.ForAll(
		func(segments []string) bool {
			base := ""
			for _, s := range segments {
				base += "/" + s
			}
			v := viper.New()
			v.Set("site.baseUrl", base)
			cfg, err := LoadFrom(v)
			if err != nil {
				return false
			}
			b := cfg.Site.BaseURL
			return len(b) >= 1 && b[0] == '/' && b[len(b)-1] == '/'
		},
		gen.SliceOf(gen.AlphaString()),
	))

	// Property: relative directories that climb out of the root are rejected
	properties.Property("traversal is rejected", prop.ForAll(
		func(depth int) bool {
			dir := ""
			for i := 0; i < depth; i++ {
				dir += "../"
			}
			v := viper.New()
			v.Set("outDir", fmt.Sprintf("%sout", dir))
			_, err := LoadFrom(v)
			return err != nil
		},
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t)
}
