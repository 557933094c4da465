package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/folio/internal/version"
)

var (
	versionFormat   string
	versionShort    bool
	versionDetailed bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display the folio version, git commit, build time, Go version and
platform.

Examples:
  folio version               # Version and commit
  folio version --detailed    # Every build field
  folio version --format json # JSON`,
	Args: cobra.NoArgs,
	RunE: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "Output format (text, json)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show the version only")
	versionCmd.Flags().BoolVar(&versionDetailed, "detailed", false, "Show every build field")
}

func runVersion(cmd *cobra.Command, _ []string) error {
	info := version.Get()
	out := cmd.OutOrStdout()

	switch versionFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case "text":
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", versionFormat)
	}

	switch {
	case versionShort:
		fmt.Fprintln(out, info.Version)
	case versionDetailed:
		fmt.Fprintln(out, info.String())
	default:
		fmt.Fprintln(out, "folio "+info.Short())
	}
	return nil
}
