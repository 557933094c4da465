// Package cmd implements the folio command-line interface with Cobra.
//
// # Commands
//
//   - dev [srcDir]: serve the site with live reload
//   - build [srcDir]: write the static site
//   - serve [dir]: preview a build
//   - config: print or validate the effective configuration
//   - version: print build information
//
// # Configuration
//
// Settings are read by Viper, highest precedence first:
//
//  1. Command-line flags (--port, --base, --out, ...)
//  2. FOLIO_<SECTION>_<KEY> environment variables, e.g. FOLIO_SERVER_PORT
//  3. The config file: --config, FOLIO_CONFIG_FILE, or .folio.yml /
//     folio.config.yaml in the working directory
//  4. Built-in defaults
//
// Errors are returned to main, which exits non-zero.
package cmd
