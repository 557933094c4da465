package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/paths"
)

// Validate checks cfg for values that would make a run fail later.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("port %d is not in valid range 0-65535", cfg.Server.Port))
	}
	if strings.ContainsAny(cfg.Server.Host, dangerousChars) {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid,
			fmt.Sprintf("host %q contains invalid characters", cfg.Server.Host))
	}

	for name, dir := range map[string]string{
		"srcDir": cfg.SrcDir, "outDir": cfg.OutDir, "cacheDir": cfg.CacheDir,
		"tmpDir": cfg.TmpDir, "publicDir": cfg.PublicDir, "configDir": cfg.ConfigDir,
	} {
		if err := validatePath(dir); err != nil {
			return errors.NewConfigError(errors.ErrCodeConfigInvalid, fmt.Sprintf("%s: %v", name, err))
		}
	}

	if err := ValidateOutDir(cfg.Dirs()); err != nil {
		return err
	}

	if len(cfg.Include) == 0 {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "include must list at least one pattern")
	}
	if _, err := paths.NewMatcher(cfg.Include, cfg.Exclude); err != nil {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, err.Error())
	}

	if cfg.Hostname != "" {
		u, err := url.Parse(cfg.Hostname)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return errors.NewConfigError(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("hostname %q must be an absolute http(s) URL", cfg.Hostname))
		}
	}

	seen := make(map[string]bool, len(cfg.Plugins))
	for _, name := range cfg.Plugins {
		if strings.TrimSpace(name) == "" {
			return errors.NewConfigError(errors.ErrCodeUnknownPlugin, "plugin name cannot be empty")
		}
		if seen[name] {
			return errors.NewConfigError(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("plugin %q listed twice", name))
		}
		seen[name] = true
	}

	if err := cfg.Site.Validate(); err != nil {
		return errors.NewConfigError(errors.ErrCodeInvalidBaseURL, err.Error())
	}

	return nil
}

const dangerousChars = ";&|$`<>\"'\\"

// validatePath rejects paths with shell metacharacters. Traversal outside
// the root is allowed only through absolute paths.
func validatePath(p string) error {
	if p == "" {
		return nil
	}
	if strings.ContainsAny(p, dangerousChars) {
		return fmt.Errorf("path %q contains invalid characters", p)
	}
	if !filepath.IsAbs(p) {
		clean := filepath.ToSlash(filepath.Clean(p))
		if clean == ".." || strings.HasPrefix(clean, "../") {
			return fmt.Errorf("path %q escapes the project root", p)
		}
	}
	return nil
}

// ValidateOutDir rejects an output directory that equals or contains the
// root, source, public or temp directory. Builds clear the output directory
// first.
func ValidateOutDir(d Dirs) error {
	for _, other := range []struct{ name, dir string }{
		{"root", d.Root},
		{"srcDir", d.Src},
		{"publicDir", d.Public},
		{"tmpDir", d.Temp},
	} {
		if within(d.Out, other.dir) {
			return errors.NewConfigError(errors.ErrCodeConfigInvalid,
				fmt.Sprintf("outDir %q would remove %s %q on build", d.Out, other.name, other.dir))
		}
	}
	return nil
}

// within reports whether child is dir or lies below it.
func within(dir, child string) bool {
	rel, err := filepath.Rel(dir, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
