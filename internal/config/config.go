// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"

	"cargo-pod/internal/issue"
	"cargo-pod/pkg/cueutil"
)

const (
	// AppName is the application name.
	AppName = "cargo-pod"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// LocalConfigFile is looked up in the working directory when the user
	// config dir has no config file.
	LocalConfigFile = AppName + "." + ConfigFileExt
	// EnvPrefix prefixes environment overrides, e.g. CARGO_POD_ARCHIVE_FORMAT.
	EnvPrefix = "CARGO_POD"
)

//go:embed config_schema.cue
var configSchema []byte

// ConfigDir returns $XDG_CONFIG_HOME/cargo-pod or the platform equivalent.
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// CacheDir returns $XDG_CACHE_HOME/cargo-pod or the platform equivalent.
func CacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// ConfigFilePath returns the user config file path.
func ConfigFilePath(configDir string) string {
	if configDir == "" {
		configDir = ConfigDir()
	}
	return filepath.Join(configDir, ConfigFileName+"."+ConfigFileExt)
}

// loadWithOptions resolves the config file, merges it over the defaults,
// applies CARGO_POD_* environment overrides and validates the result.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath, err := resolveConfigFile(opts)
	if err != nil {
		return nil, "", err
	}
	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithIssue(issue.ConfigLoadFailedId).
			WithSuggestion("Check " + EnvPrefix + "_* environment variables as well as the config file").
			Wrap(errs[0]).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper, defaults *Config) {
	v.SetDefault("jobs", defaults.Jobs)
	v.SetDefault("fail_fast", defaults.FailFast)
	v.SetDefault("profile", string(defaults.Profile))
	v.SetDefault("missing_toolchain", string(defaults.MissingToolchain))
	v.SetDefault("targets", defaults.Targets)
	v.SetDefault("archive.enabled", defaults.Archive.Enabled)
	v.SetDefault("archive.format", string(defaults.Archive.Format))
	v.SetDefault("verify.enabled", defaults.Verify.Enabled)
	v.SetDefault("verify.timeout", defaults.Verify.Timeout)
	v.SetDefault("deployment_targets.ios", defaults.DeploymentTargets.IOS)
	v.SetDefault("deployment_targets.macos", defaults.DeploymentTargets.MacOS)
	v.SetDefault("work_dir", defaults.WorkDir)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
}

// resolveConfigFile returns the explicit file, the user config file, or the
// local cargo-pod.cue, in that order. "" means defaults only.
func resolveConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithIssue(issue.ConfigLoadFailedId).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Use 'cargo-pod config show' to see the default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	if p := ConfigFilePath(opts.ConfigDirPath); fileExists(p) {
		return p, nil
	}

	localDir := opts.LocalDir
	if localDir == "" {
		localDir = "."
	}
	if p := filepath.Join(localDir, LocalConfigFile); fileExists(p) {
		return p, nil
	}
	return "", nil
}

// loadCUEIntoViper validates a CUE file against #Config and merges it into
// Viper. Fields are optional, so values are not required to be concrete.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	res, err := cueutil.ParseAndDecode[map[string]any](configSchema, data, "#Config",
		cueutil.WithFilename(path),
		cueutil.WithConcrete(false),
	)
	if err != nil {
		return err
	}

	// Merge preserves defaults and still lets the environment win.
	if err := v.MergeConfigMap(*res.Value); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes the default configuration to path unless a file
// already exists there. It reports whether a file was written.
func CreateDefaultConfig(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}
	return true, nil
}

// GenerateCUE renders cfg as a config file accepted by #Config.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// cargo-pod configuration\n\n")
	fmt.Fprintf(&sb, "jobs: %d\n", cfg.Jobs)
	fmt.Fprintf(&sb, "fail_fast: %v\n", cfg.FailFast)
	fmt.Fprintf(&sb, "profile: %q\n", cfg.Profile)
	fmt.Fprintf(&sb, "missing_toolchain: %q\n", cfg.MissingToolchain)

	quoted := make([]string, 0, len(cfg.Targets))
	for _, t := range cfg.Targets {
		quoted = append(quoted, fmt.Sprintf("%q", t))
	}
	fmt.Fprintf(&sb, "targets: [%s]\n", strings.Join(quoted, ", "))

	sb.WriteString("\narchive: {\n")
	fmt.Fprintf(&sb, "\tenabled: %v\n", cfg.Archive.Enabled)
	fmt.Fprintf(&sb, "\tformat:  %q\n", cfg.Archive.Format)
	sb.WriteString("}\n")

	sb.WriteString("\nverify: {\n")
	fmt.Fprintf(&sb, "\tenabled: %v\n", cfg.Verify.Enabled)
	fmt.Fprintf(&sb, "\ttimeout: %q\n", formatDuration(cfg.Verify.Timeout))
	sb.WriteString("}\n")

	sb.WriteString("\ndeployment_targets: {\n")
	fmt.Fprintf(&sb, "\tios:   %q\n", cfg.DeploymentTargets.IOS)
	fmt.Fprintf(&sb, "\tmacos: %q\n", cfg.DeploymentTargets.MacOS)
	sb.WriteString("}\n")

	if cfg.WorkDir != "" {
		fmt.Fprintf(&sb, "\nwork_dir: %q\n", cfg.WorkDir)
	}

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}

// formatDuration renders d in the ms|s|m form the schema accepts.
func formatDuration(d time.Duration) string {
	switch {
	case d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute)
	case d%time.Second == 0:
		return fmt.Sprintf("%ds", d/time.Second)
	default:
		return fmt.Sprintf("%dms", d/time.Millisecond)
	}
}
