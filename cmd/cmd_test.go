package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// execute runs the root command with args against fresh viper and flag
// state and returns everything it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	viper.Reset()
	cfgFile = ""
	configFormat, configFile = "yaml", ""
	versionFormat, versionShort, versionDetailed = "text", false, false
	resetFlags(rootCmd)
	bindPersistentFlags()
	t.Cleanup(viper.Reset)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"dev", "build", "serve", "config", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "folio ")

	out, err = execute(t, "version", "--format", "json")
	require.NoError(t, err)
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "goVersion")

	_, err = execute(t, "version", "--format", "xml")
	assert.Error(t, err)
}

func TestConfigShow(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFiles(t, dir, map[string]string{
		".folio.yml": "srcDir: docs\nsite:\n  title: Handbook\nserver:\n  port: 4000\n",
	})
	t.Setenv("FOLIO_SERVER_HOST", "0.0.0.0")

	out, err := execute(t, "config")
	require.NoError(t, err)

	var shown map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &shown))
	assert.Equal(t, "docs", shown["srcDir"])
	assert.Equal(t, "Handbook", shown["site"].(map[string]interface{})["title"])
	server := shown["server"].(map[string]interface{})
	assert.Equal(t, 4000, server["port"])
	assert.Equal(t, "0.0.0.0", server["host"])
}

func TestConfigShowAlternateFileName(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFiles(t, dir, map[string]string{
		"folio.config.yaml": "outDir: public\n",
	})

	out, err := execute(t, "config", "--format", "json")
	require.NoError(t, err)
	var shown map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, "public", shown["OutDir"])
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFiles(t, dir, map[string]string{
		"good.yml": "site:\n  baseUrl: /docs/\n",
		"bad.yml":  "server:\n  port: 70000\n",
	})

	out, err := execute(t, "config", "validate", "-f", "good.yml")
	require.NoError(t, err)
	assert.Contains(t, out, "good.yml is valid")

	_, err = execute(t, "config", "validate", "-f", "bad.yml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Configuration is invalid")

	_, err = execute(t, "config", "validate")
	assert.Error(t, err, "no config file in the directory")
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFiles(t, dir, map[string]string{
		"docs/index.md": "# Home\n\nWelcome.\n",
		"docs/guide.md": "---\ntitle: Guide\n---\n\nRead [home](./index.md).\n",
	})

	out, err := execute(t, "build", "docs", "--out", "site", "--hostname", "https://example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Built 3 pages")

	for _, f := range []string{"index.html", "guide.html", "404.html", "sitemap.xml"} {
		assert.FileExists(t, filepath.Join(dir, "site", f))
	}
	guide, err := os.ReadFile(filepath.Join(dir, "site", "guide.html"))
	require.NoError(t, err)
	assert.Contains(t, string(guide), "Guide")
}

func TestBuildRejectsBadBase(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFiles(t, dir, map[string]string{"index.md": "# Home\n"})

	_, err := execute(t, "build", "--base", "/docs?v=1")
	assert.Error(t, err)
}

func TestPortValidation(t *testing.T) {
	_, err := execute(t, "dev", "--port", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port must be between 1 and 65535")
}

func TestValidatePort(t *testing.T) {
	assert.NoError(t, ValidatePort("5173"))
	assert.Error(t, ValidatePort("http"))
	assert.Error(t, ValidatePort("65536"))
}
